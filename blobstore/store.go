// Package blobstore abstracts where checkpoint artifacts live.
//
// Checkpoints are written and read wholesale: a sketch snapshot is one framed,
// compressed blob that is decoded sequentially on restore. The Store interface
// is therefore deliberately narrow (whole-blob put/get) rather than exposing
// random-access reads.
//
// Built-in implementations cover in-memory (tests), the local file system,
// MinIO/S3-compatible endpoints (subpackage minio) and AWS S3 with an optional
// DynamoDB commit log (subpackage s3).
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for storing immutable checkpoint blobs.
type Store interface {
	// Put writes a blob atomically under the given name, replacing any
	// previous blob of that name.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads the blob stored under the given name.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}
