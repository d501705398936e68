// Package state persists which dumps were downloaded and which files were
// indexed, so repeated runs can skip completed work.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/opencontainers/go-digest"
	bolt "go.etcd.io/bbolt"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/jsonl"
)

var (
	bucketDownloads = []byte("downloads")
	bucketIndexed   = []byte("indexed")
)

// keySep separates index name and file path in indexed keys. Neither can contain NUL.
const keySep = "\x00"

// Download records a verified dump download.
type Download struct {
	// Dir is the directory the dump was downloaded into.
	Dir         string        `json:"dir"`
	File        string        `json:"file"`
	Type        string        `json:"type"`
	Month       string        `json:"month"`
	Digest      digest.Digest `json:"digest,omitempty"`
	Size        int64         `json:"size"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Indexed records a file indexed into an index.
type Indexed struct {
	Index       string          `json:"index"`
	File        string          `json:"file"`
	Kind        string          `json:"kind"`
	Stats       core.IndexStats `json:"stats"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Store is a bbolt-backed state database.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketDownloads, bucketIndexed} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create state buckets: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// RecordDownload stores d keyed by the absolute path of the dump, so the
// same month downloaded into two directories keeps two records.
// CompletedAt defaults to now.
func (s *Store) RecordDownload(d Download) error {
	if d.File == "" {
		return errors.New("record download: empty file name")
	}
	d.Dir = absPath(d.Dir)
	if d.CompletedAt.IsZero() {
		d.CompletedAt = s.now().UTC()
	}
	return s.put(bucketDownloads, filepath.Join(d.Dir, d.File), d)
}

// Download returns the record for the dump at path.
func (s *Store) Download(path string) (Download, bool, error) {
	var d Download
	ok, err := s.get(bucketDownloads, absPath(path), &d)
	return d, ok, err
}

// Downloads returns all download records sorted by path.
func (s *Store) Downloads() ([]Download, error) {
	var out []Download
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDownloads).ForEach(func(_, v []byte) error {
			var d Download
			if err := jsonl.JSON.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	return out, nil
}

// RecordIndexed stores that file was indexed into index.
func (s *Store) RecordIndexed(index, file, kind string, stats core.IndexStats) error {
	file = absPath(file)
	rec := Indexed{
		Index:       index,
		File:        file,
		Kind:        kind,
		Stats:       stats,
		CompletedAt: s.now().UTC(),
	}
	return s.put(bucketIndexed, indexedKey(index, file), rec)
}

// Indexed returns the record for file in index.
func (s *Store) Indexed(index, file string) (Indexed, bool, error) {
	var rec Indexed
	ok, err := s.get(bucketIndexed, indexedKey(index, absPath(file)), &rec)
	return rec, ok, err
}

// IndexedAll returns all indexed records sorted by index, then file.
func (s *Store) IndexedAll() ([]Indexed, error) {
	var out []Indexed
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndexed).ForEach(func(_, v []byte) error {
			var rec Indexed
			if err := jsonl.JSON.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list indexed files: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].File < out[j].File
	})
	return out, nil
}

func indexedKey(index, file string) string {
	return index + keySep + file
}

func absPath(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return file
}

func (s *Store) put(bucket []byte, key string, value any) error {
	data, err := jsonl.JSON.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode state record: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("write state record: %w", err)
	}
	return nil
}

func (s *Store) get(bucket []byte, key string, dest any) (bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read state record: %w", err)
	}
	if data == nil {
		return false, nil
	}
	if err := jsonl.JSON.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode state record: %w", err)
	}
	return true, nil
}
