// Package storage provides blob backends keyed by opaque references.
// Only encrypted bytes ever reach a backend.
package storage

import (
	"context"
	"io"
)

// Blob is the byte-storage contract the pipeline depends on. Delete is
// best-effort: deleting a missing reference is not an error.
type Blob interface {
	Save(ctx context.Context, ref string, data io.Reader) error
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}
