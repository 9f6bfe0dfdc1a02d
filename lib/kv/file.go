// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/atrium-foundation/atrium/lib/codec"
)

// zstdEncoder and zstdDecoder are shared across all File stores.
// Both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("kv: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("kv: zstd decoder initialization failed: " + err.Error())
	}
}

// record is the on-disk envelope for one key. The digest covers the
// raw (uncompressed) value, so it stays valid if the compression
// choice changes between writes.
type record struct {
	Key        string `cbor:"key"`
	Compressed bool   `cbor:"compressed"`
	RawSize    int    `cbor:"raw_size"`
	Digest     []byte `cbor:"digest"`
	Payload    []byte `cbor:"payload"`
}

// File is a Store persisting each record as its own file inside a
// directory. Writes go through a temp file plus rename, so a crash
// mid-write leaves the previous record intact.
type File struct {
	directory string
}

// NewFile opens (creating if needed) a file store rooted at directory.
func NewFile(directory string) (*File, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("kv: creating store directory: %w", err)
	}
	return &File{directory: directory}, nil
}

// recordPath maps a key to its file. The name is a BLAKE3 digest of
// the key, so arbitrary key strings (slashes, dots) cannot escape the
// store directory.
func (f *File) recordPath(key string) string {
	sum := blake3.Sum256([]byte(key))
	return filepath.Join(f.directory, hex.EncodeToString(sum[:16])+".rec")
}

// Get implements Store. A record whose digest does not match its
// payload is reported as an error, not silently returned.
func (f *File) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.recordPath(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv: reading record for %q: %w", key, err)
	}

	var rec record
	if err := codec.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("kv: corrupt record envelope for %q: %w", key, err)
	}

	value := rec.Payload
	if rec.Compressed {
		value, err = zstdDecoder.DecodeAll(rec.Payload, make([]byte, 0, rec.RawSize))
		if err != nil {
			return nil, false, fmt.Errorf("kv: decompressing record for %q: %w", key, err)
		}
	}
	if len(value) != rec.RawSize {
		return nil, false, fmt.Errorf("kv: record for %q has %d bytes, envelope says %d", key, len(value), rec.RawSize)
	}

	digest := blake3.Sum256(value)
	if !bytes.Equal(digest[:], rec.Digest) {
		return nil, false, fmt.Errorf("kv: digest mismatch for %q (corrupt record)", key)
	}
	return value, true, nil
}

// Put implements Store.
func (f *File) Put(key string, value []byte) error {
	digest := blake3.Sum256(value)
	rec := record{
		Key:     key,
		RawSize: len(value),
		Digest:  digest[:],
		Payload: value,
	}

	// Keep compression only when it actually shrinks the payload;
	// tiny counter records usually stay raw.
	compressed := zstdEncoder.EncodeAll(value, nil)
	if len(compressed) < len(value) {
		rec.Compressed = true
		rec.Payload = compressed
	}

	data, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kv: encoding record for %q: %w", key, err)
	}

	path := f.recordPath(key)
	temp, err := os.CreateTemp(f.directory, ".write-*")
	if err != nil {
		return fmt.Errorf("kv: creating temp file for %q: %w", key, err)
	}
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(temp.Name())
		return fmt.Errorf("kv: writing record for %q: %w", key, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(temp.Name())
		return fmt.Errorf("kv: closing record for %q: %w", key, err)
	}
	if err := os.Rename(temp.Name(), path); err != nil {
		os.Remove(temp.Name())
		return fmt.Errorf("kv: installing record for %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (f *File) Delete(key string) error {
	err := os.Remove(f.recordPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("kv: deleting record for %q: %w", key, err)
	}
	return nil
}

// Keys implements Store. Every record file is opened to recover its
// key; these stores hold at most a few hundred small records, so the
// scan is cheap.
func (f *File) Keys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.directory)
	if err != nil {
		return nil, fmt.Errorf("kv: listing store directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rec") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.directory, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("kv: reading record %s: %w", entry.Name(), err)
		}
		var rec record
		if err := codec.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("kv: corrupt record envelope in %s: %w", entry.Name(), err)
		}
		if strings.HasPrefix(rec.Key, prefix) {
			keys = append(keys, rec.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
