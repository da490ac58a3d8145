package storage

import (
	"path/filepath"
	"strings"

	"github.com/bryanwahyu/csvask/internal/domain/relay"
)

// validName reports whether id is a bare file name: no separators, no parent
// segments, no NUL bytes. Identifiers failing this never touch storage.
func validName(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, `/\`+"\x00") {
		return false
	}
	return filepath.Base(id) == id
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func notFound(id string) error {
	return relay.Wrap(relay.KindNotFound, &notFoundError{id: id})
}

type notFoundError struct{ id string }

func (e *notFoundError) Error() string { return "no such file: " + e.id }
