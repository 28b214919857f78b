package database

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"git.mills.io/prologic/bitcask"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a key is not found in the database.
var ErrNotFound = errors.New("key not found")

// gzipMagicBytes are the first two bytes of a gzip stream.
var gzipMagicBytes = []byte{0x1f, 0x8b}

// maxKeySize leaves room for JournalKeyPrefix plus a hex BLAKE3 fingerprint.
const maxKeySize = 128

// DB wraps a bitcask store. Values are gzip-compressed on write.
type DB struct {
	db *bitcask.Bitcask
	mu sync.RWMutex
}

// Open opens or creates the store at path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	inner, err := bitcask.Open(path, bitcask.WithMaxKeySize(maxKeySize))
	if err != nil {
		return nil, fmt.Errorf("failed to open bitcask database at %s: %w", path, err)
	}
	log.Debugf("Database opened at %s", path)
	return &DB{db: inner}, nil
}

// Close closes the store once in-flight operations finished.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}

// Has reports whether key exists.
func (d *DB) Has(key []byte) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.Has(key)
}

// Get returns the decompressed value stored under key.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	value, err := d.db.Get(key)
	d.mu.RUnlock()
	if err != nil {
		if errors.Is(err, bitcask.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting key %s: %w", string(key), err)
	}
	return decompressIfGzipped(value)
}

// Put compresses value and stores it under key.
func (d *DB) Put(key, value []byte) error {
	compressed, err := compressGzip(value, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("error compressing value for key %s: %w", string(key), err)
	}

	d.mu.Lock()
	err = d.db.Put(key, compressed)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("error putting key %s: %w", string(key), err)
	}
	return nil
}

// Delete removes key. A missing key yields ErrNotFound.
func (d *DB) Delete(key []byte) error {
	if !d.Has(key) {
		return ErrNotFound
	}
	d.mu.Lock()
	err := d.db.Delete(key)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("error deleting key %s: %w", string(key), err)
	}
	return nil
}

// Fold calls fn for every key with its decompressed value. Unreadable values
// are logged and skipped. Returning an error from fn stops the iteration.
func (d *DB) Fold(fn func(key, value []byte) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.db.Fold(func(key []byte) error {
		raw, err := d.db.Get(key)
		if err != nil {
			log.WithError(err).Warnf("Fold: error getting value for key %s", string(key))
			return nil
		}
		value, err := decompressIfGzipped(raw)
		if err != nil {
			log.WithError(err).Warnf("Fold: error decompressing value for key %s", string(key))
			return nil
		}
		return fn(key, value)
	})
}

func decompressIfGzipped(value []byte) ([]byte, error) {
	if !bytes.HasPrefix(value, gzipMagicBytes) {
		return value, nil
	}
	gr, err := gzip.NewReader(bytes.NewReader(value))
	if err != nil {
		log.WithError(err).Warn("Value looks gzipped but is not, returning raw data")
		return value, nil
	}
	defer gr.Close()

	out, err := io.ReadAll(gr)
	if err != nil {
		log.WithError(err).Warn("Error decompressing value, returning raw data")
		return value, nil
	}
	return out, nil
}

func compressGzip(value []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("error creating gzip writer: %w", err)
	}
	if _, err := gw.Write(value); err != nil {
		_ = gw.Close()
		return nil, fmt.Errorf("error writing compressed data: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("error closing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}
