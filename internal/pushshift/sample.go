package pushshift

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/meigma/nastydata/internal/decompress"
	"github.com/meigma/nastydata/internal/jsonl"
	"github.com/meigma/nastydata/internal/progress"
)

// SampleThreshold is how often a key must have been seen before a document
// made only of such keys is left out of a sample.
const SampleThreshold = 100

// AllSamples is the file all samples of a directory are concatenated into.
const AllSamples = "all.sample"

// Sample writes a "<dump>.sample" next to every dump file in dir, then
// concatenates them into dir/all.sample. A sample keeps each document that
// has at least one key seen at most SampleThreshold times so far, so rare
// fields are represented. Existing samples are reused.
func (c *Client) Sample(ctx context.Context, dir string) error {
	c.logger.Info("sampling Pushshift dumps", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dump directory: %w", err)
	}

	var samples []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, _, ok := MatchFile(entry.Name()); !ok {
			continue
		}
		sample, err := c.sampleDump(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		samples = append(samples, sample)
	}

	c.logger.Info("concatenating individual samples", "count", len(samples))
	return c.concatSamples(filepath.Join(dir, AllSamples), samples)
}

func (c *Client) sampleDump(ctx context.Context, dump string) (string, error) {
	sample := dump + ".sample"
	if _, err := os.Stat(sample); err == nil {
		c.logger.Debug("sample already exists, skipping", "file", filepath.Base(dump))
		return sample, nil
	}

	tmp := sample + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create sample: %w", err)
	}

	read, written, err := c.writeSample(ctx, dump, out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("sample %s: %w", filepath.Base(dump), err)
	}

	if err := os.Rename(tmp, sample); err != nil {
		return "", fmt.Errorf("rename sample: %w", err)
	}
	c.logger.Debug("wrote sample", "file", filepath.Base(sample), "read", read, "documents", written)
	return sample, nil
}

// writeSample returns the number of documents read from dump and written to w.
func (c *Client) writeSample(ctx context.Context, dump string, w io.Writer) (int64, int, error) {
	var size int64 = -1
	if info, err := os.Stat(dump); err == nil {
		size = info.Size()
	}
	bar := c.bars(
		progress.WithDescription(filepath.Base(dump)),
		progress.WithTotal(size),
		progress.WithUnit("B"),
		progress.WithUnitScale(true),
		progress.WithUnitDivisor(1024),
	)
	defer bar.Close()

	enc := jsonl.NewEncoder(w)
	counts := make(map[string]int)
	written := 0

	src := Load(ctx, dump,
		decompress.WithLogger(c.logger),
		decompress.WithProgress(func(consumed, _ int64) { bar.Set(consumed) }),
	)
	read := progress.NoBars(progress.WithUnit("docs"))
	for doc, err := range progress.Iterate2(src, read) {
		if err != nil {
			return read.N(), written, err
		}

		keep := false
		for key := range doc {
			counts[key]++
		}
		for key := range doc {
			if counts[key] <= SampleThreshold {
				keep = true
				break
			}
		}
		if !keep {
			continue
		}

		if err := enc.Encode(doc); err != nil {
			return read.N(), written, err
		}
		written++
	}

	return read.N(), written, enc.Flush()
}

func (c *Client) concatSamples(dest string, files []string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dest), err)
	}

	bar := c.bars(
		progress.WithDescription(filepath.Base(dest)),
		progress.WithTotal(int64(len(files))),
		progress.WithUnit("files"),
	)
	for file := range progress.Iterate(slices.Values(files), bar) {
		if err := appendFile(out, file); err != nil {
			out.Close()
			return err
		}
	}
	return out.Close()
}

func appendFile(w io.Writer, file string) error {
	in, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open sample: %w", err)
	}
	defer in.Close()

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("append %s: %w", filepath.Base(file), err)
	}
	return nil
}
