// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"
)

const sidecarDir = ".taskgraph"
const sidecarBucket = "hashes"

// sidecarRecord is the persisted {size, mtime, hash, earliest-mtime-with-
// this-hash} tuple spec.md §4.1/§6 describes, one per absolute path.
type sidecarRecord struct {
	Size              int64   `yaml:"size"`
	MTime             float64 `yaml:"mtime"`
	Hash              string  `yaml:"hash"`
	EarliestMTimeSame float64 `yaml:"earliest_mtime_same_hash"`
}

// hashSidecar persists sidecarRecord entries in an embedded bbolt database
// so content-preserving rewrites don't propagate a newer mtime to
// dependents (spec.md §4.1). Each localBackend opens its own *hashSidecar
// on its first hashed lookup; instances are not shared between backends.
type hashSidecar struct {
	mu sync.Mutex
	db *bbolt.DB
}

func openSidecar(baseDir string) (*hashSidecar, error) {
	dir := filepath.Join(baseDir, sidecarDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(filepath.Join(dir, "hashes.db"), 0o644, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sidecarBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &hashSidecar{db: db}, nil
}

func (s *hashSidecar) get(path string) (sidecarRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rec sidecarRecord
	var found bool
	_ = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sidecarBucket))
		v := b.Get([]byte(path))
		if v == nil {
			return nil
		}
		if err := yaml.Unmarshal(v, &rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	return rec, found
}

func (s *hashSidecar) put(path string, rec sidecarRecord) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sidecarBucket))
		return b.Put([]byte(path), data)
	})
}

func (s *hashSidecar) close() error {
	return s.db.Close()
}

// localBackend is the always-present "file" scheme resource backend.
type localBackend struct {
	baseDir string

	onceSidecar sync.Once
	sidecar     *hashSidecar
	sidecarErr  error
}

func newLocalBackend(baseDir string) *localBackend {
	return &localBackend{baseDir: baseDir}
}

func (b *localBackend) ensureSidecar() (*hashSidecar, error) {
	b.onceSidecar.Do(func() {
		b.sidecar, b.sidecarErr = openSidecar(b.baseDir)
	})
	return b.sidecar, b.sidecarErr
}

// Close releases the sidecar's database handle, if one was opened.
func (b *localBackend) Close() error {
	if b.sidecar != nil {
		return b.sidecar.close()
	}
	return nil
}

func (b *localBackend) MTime(_ context.Context, u URI, _ string, useHash bool) (float64, error) {
	path := u.Path
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, newErr(KindNotFound, u.String(), "stat %s: %w", path, err)
		}
		return 0, newErr(KindIOError, u.String(), "stat %s: %w", path, err)
	}

	mtime := float64(info.ModTime().UnixNano()) / 1e9
	if !useHash {
		return mtime, nil
	}

	sidecar, err := b.ensureSidecar()
	if err != nil {
		return 0, newErr(KindIOError, u.String(), "open hash sidecar: %w", err)
	}

	h, err := hashFile(path)
	if err != nil {
		return 0, newErr(KindIOError, u.String(), "hash %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	prev, found := sidecar.get(abs)
	earliest := mtime
	if found && prev.Hash == h {
		// Content-preserving rewrite: keep the earliest mtime ever observed
		// with this hash, so dependents don't see a newer timestamp.
		earliest = prev.EarliestMTimeSame
	}

	if err := sidecar.put(abs, sidecarRecord{
		Size:              info.Size(),
		MTime:             mtime,
		Hash:              h,
		EarliestMTimeSame: earliest,
	}); err != nil {
		return 0, newErr(KindIOError, u.String(), "update hash sidecar: %w", err)
	}

	return earliest, nil
}

func (b *localBackend) Remove(_ context.Context, u URI, _ string) error {
	err := os.Remove(u.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // absence is not an error for the caller, spec.md §4.1
		}
		return newErr(KindIOError, u.String(), "remove %s: %w", u.Path, err)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
