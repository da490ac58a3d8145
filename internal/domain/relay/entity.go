package relay

import (
	"strings"
	"time"
)

// ContentTypeCSV is sent as the content type of every relayed file part.
const ContentTypeCSV = "text/csv"

// FallbackAnswer is returned when the remote service answers with a blank body.
const FallbackAnswer = "no answer returned"

// Request is a validated (file identifier, question) pair.
type Request struct {
	FileID   string
	Question string
}

// NewRequest trims both fields and rejects the pair if either one is empty.
func NewRequest(fileID, question string) (Request, error) {
	req := Request{
		FileID:   strings.TrimSpace(fileID),
		Question: sanitize(question),
	}
	if req.FileID == "" || req.Question == "" {
		return Request{}, &Error{Kind: KindInvalidInput}
	}
	return req, nil
}

// ResolvedFile is a file identifier resolved against a catalog root.
type ResolvedFile struct {
	Name        string // identifier as supplied by the caller
	Location    string // canonical path (local) or object key (minio)
	ContentType string
	Size        int64
}

// FileEntry describes one selectable file.
type FileEntry struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Result is the successful outcome of a relay.
type Result struct {
	Answer string `json:"answer"`
}

// NewResult trims the remote body and substitutes FallbackAnswer for blank content.
func NewResult(body string) Result {
	answer := strings.TrimSpace(body)
	if answer == "" {
		answer = FallbackAnswer
	}
	return Result{Answer: answer}
}

// sanitize drops NUL and control characters (keeping tab and newline) and trims.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 || r == '\t' || r == '\n' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
