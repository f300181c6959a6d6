// Package storage defines the pluggable backend contract the write
// dispatcher and backup mirror write sub-arrays through, plus a local
// filesystem implementation and an S3-compatible implementation.
//
// The on-disk layout realized here is a chunked, multi-variable store:
// one sub-directory per variable holding a ".zarray" shape/chunk-shape
// sidecar and one file per inner chunk — concrete enough to make the
// shape and round-trip properties checkable without depending on a
// real HDF5 or zarr codec.
package storage

import (
	"context"
	"io"
	"time"
)

// Metadata describes one stored object.
type Metadata struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Object is one entry returned by a prefix listing.
type Object struct {
	Key  string
	Size int64
}

// Backend is the storage contract the placement engine writes sub-arrays
// through. Implementations must serialize concurrent writes to distinct
// keys correctly; the core never writes two jobs to the same key
// concurrently, so Backend implementations need not serialize across keys.
type Backend interface {
	// Put writes data at key, overwriting any existing object (the
	// dispatcher's truncate-overwrite write mode).
	Put(ctx context.Context, key string, data []byte) error

	// PutReader streams size bytes from r into key.
	PutReader(ctx context.Context, key string, r io.Reader, size int64) error

	// Get reads the full contents of key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix recursively removes every object whose key has the
	// given prefix, used by the backup mirror's overwrite-then-copy and
	// confirmed-deletion passes.
	DeletePrefix(ctx context.Context, prefix string) error

	// CopyPrefix recursively copies every object under srcPrefix to the
	// equivalent key under dstPrefix, used by the backup mirror.
	CopyPrefix(ctx context.Context, srcPrefix, dstPrefix string) error

	// List returns the keys present under prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
}
