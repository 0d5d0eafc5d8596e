// Package blob abstracts where uploaded pay files live. The pipeline only
// ever needs a local path to hand to the workbook reader, so Fetch always
// materializes the file on local disk.
package blob

import (
	"context"
	"io"
)

// Storage is the upload bucket the pipeline reads pay files from.
type Storage interface {
	// Put stores the contents of r under name and returns the stored key.
	Put(ctx context.Context, name string, r io.Reader) (string, error)

	// Fetch retrieves the file named key and returns a local filesystem
	// path to it. The caller owns cleanup of returned temp files.
	Fetch(ctx context.Context, key string) (string, error)
}
