// Package storage defines the vault file-system abstraction card files live in.
package storage

import (
	"path"
	"strings"

	"github.com/starford/cardweb/internal/models"
)

// CardExt is the extension of card files.
const CardExt = ".md"

// Provider is the interface for vault file operations. Paths are relative
// to the vault root.
type Provider interface {
	// List returns metadata for every card file under dir.
	List(dir string) ([]models.FileMetadata, error)
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	Delete(path string) error
	Move(oldPath, newPath string) error
	Exists(path string) bool
}

// CardPath returns the default vault path of a card id.
func CardPath(id string) string {
	return id + CardExt
}

// IDFromPath derives a card id from a vault path: the file name without extension.
func IDFromPath(p string) string {
	return strings.TrimSuffix(path.Base(strings.ReplaceAll(p, "\\", "/")), CardExt)
}
