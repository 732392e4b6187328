// Package manifest records build provenance for n-gram databases: the
// content hashes of the corpus and vocabulary a database was built
// from, the build parameters used, and when the build ran. It is a
// BoltDB-backed audit log, NOT an incremental update mechanism — the
// spec's "no incremental/online database updates" Non-goal still
// applies; rebuilding a database always reprocesses the full corpus.
//
// Adapted from the teacher's internal/watcher.HashStore, which used
// BoltDB the same way (one bucket of JSON-encoded records keyed by
// path) to track file hashes for change detection.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketBuilds = "builds"

// BuildRecord describes one build-db invocation.
type BuildRecord struct {
	CorpusHash string    `json:"corpus_hash"`
	VocabHash  string    `json:"vocab_hash"`
	LabelKind  string    `json:"label_kind"`
	Size       int       `json:"size"`
	TopK       int       `json:"topk"`
	Flanking   bool      `json:"flanking"`
	Strip      bool      `json:"strip"`
	OutputPath string    `json:"output_path"`
	BuiltAt    time.Time `json:"built_at"`
}

// Store is a BoltDB-backed manifest of build provenance records.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the manifest database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketBuilds))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying BoltDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores rec keyed by its OutputPath, overwriting any prior
// record for the same output.
func (s *Store) Record(rec BuildRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("manifest: encode record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketBuilds))
		return bucket.Put([]byte(rec.OutputPath), data)
	})
}

// Get returns the build record for outputPath, or ok=false if none
// exists.
func (s *Store) Get(outputPath string) (rec BuildRecord, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketBuilds))
		data := bucket.Get([]byte(outputPath))
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &rec)
	})
	return rec, ok, err
}

// All returns every recorded build, keyed by output path.
func (s *Store) All() (map[string]BuildRecord, error) {
	out := make(map[string]BuildRecord)
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketBuilds))
		return bucket.ForEach(func(k, v []byte) error {
			var rec BuildRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out[string(k)] = rec
			return nil
		})
	})
	return out, err
}

// HashFile returns the hex-encoded SHA-256 digest of path's contents,
// used to stamp CorpusHash/VocabHash on a BuildRecord.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("manifest: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
