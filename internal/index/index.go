package index

import (
	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/references"
	"github.com/starford/cardweb/internal/snapshot"
)

// CardIndex is the persistence surface used by the card service.
// Consumers depend on this interface rather than *DB.
type CardIndex interface {
	UpsertCard(row CardRow, card *models.Card) error
	DeleteCard(path string) error
	GetChecksum(path string) (string, error)
	GetCard(id string) (*models.Card, snapshot.Flags, error)
	ApplyReferencesDiff(source string, d references.Diff) error
	Inbound(target string) ([]ReferenceRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	LoadSnapshot() (*snapshot.Snapshot, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ CardIndex = (*DB)(nil)
