package index

import (
	"log/slog"
	"time"

	"github.com/starford/cardweb/internal/checksum"
	"github.com/starford/cardweb/internal/parser"
	"github.com/starford/cardweb/internal/snapshot"
	"github.com/starford/cardweb/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed card files are parsed and upserted
//   - files removed from disk are deleted from the index
//
// It reports whether anything changed.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (bool, error) {
	metas, err := store.List("")
	if err != nil {
		return false, err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return false, err
	}

	changed := false
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		changed = true
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteCard(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		changed = true
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	return changed, nil
}

// indexFile parses a card file and upserts it. The file name supplies the
// card id unless the frontmatter names one.
func indexFile(db *DB, path string, data []byte, modTime time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	card, flags := parser.ToCard(storage.IDFromPath(path), res)
	if card.UpdatedAt.IsZero() {
		card.UpdatedAt = modTime
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = card.UpdatedAt
	}

	row := CardRow{
		Path:      path,
		Checksum:  checksum.Sum(data),
		Flags:     snapshot.Flags(flags),
		UpdatedAt: card.UpdatedAt,
	}
	return db.UpsertCard(row, card)
}
