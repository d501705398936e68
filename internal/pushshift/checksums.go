package pushshift

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Checksums maps dump file names to their published SHA-256 digest.
type Checksums map[string]digest.Digest

// ParseChecksums parses sha256sum output: one "<hex> <file>" pair per line.
// Blank lines are skipped.
func ParseChecksums(r io.Reader) (Checksums, error) {
	sums := make(Checksums)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("checksum line %d: expected 2 fields, got %d", lineNo, len(fields))
		}
		d := digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(fields[0]))
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("checksum line %d: %w", lineNo, err)
		}
		// sha256sum marks binary mode with a leading '*'.
		sums[strings.TrimPrefix(fields[1], "*")] = d
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checksums: %w", err)
	}
	return sums, nil
}
