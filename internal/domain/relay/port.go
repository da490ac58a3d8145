package relay

import (
	"context"
	"io"
)

// Catalog resolves file identifiers to readable files under a fixed root.
// Implementations must treat the root as read-only.
type Catalog interface {
	// Resolve returns ErrNotFound for missing files and for identifiers
	// that would escape the root.
	Resolve(ctx context.Context, fileID string) (ResolvedFile, error)
	Open(ctx context.Context, f ResolvedFile) (io.ReadCloser, error)
	List(ctx context.Context) ([]FileEntry, error)
}

// Document is an opened file handed to an Analyzer.
type Document struct {
	File ResolvedFile
	Body io.Reader
}

// Analyzer sends a document and a question to the remote analysis service
// and returns the raw text it answered with.
type Analyzer interface {
	Analyze(ctx context.Context, doc Document, question string) (string, error)
}
