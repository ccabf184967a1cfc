package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/cardweb/internal/apperr"
	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/references"
	"github.com/starford/cardweb/internal/snapshot"
)

// CardRow carries the file-level columns stored next to a card.
type CardRow struct {
	Path      string
	Checksum  string
	Flags     snapshot.Flags
	UpdatedAt time.Time
}

// ReferenceRow is one stored edge.
type ReferenceRow struct {
	Source string               `json:"source"`
	Target string               `json:"target"`
	Type   models.ReferenceType `json:"type"`
	Value  string               `json:"value,omitempty"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// UpsertCard inserts or replaces a card, its FTS entry, and its outbound
// references within a transaction.
func (db *DB) UpsertCard(row CardRow, card *models.Card) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stored := *card
	stored.Path = row.Path
	stored.Checksum = row.Checksum
	stored.References = models.ReferenceBlock{}
	stored.InboundReferences = models.ReferenceBlock{}
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("index: marshal card: %w", err)
	}
	tagsJSON, _ := json.Marshal(card.Tags)

	// A card id moving to a new path replaces the old row.
	_, _ = tx.Exec(`DELETE FROM cards WHERE path = ? AND id <> ?`, row.Path, card.ID)

	_, err = tx.Exec(`
		INSERT INTO cards (id, path, type, title, checksum, tags, body, starred, read, reading_list, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path         = excluded.path,
			type         = excluded.type,
			title        = excluded.title,
			checksum     = excluded.checksum,
			tags         = excluded.tags,
			body         = excluded.body,
			starred      = excluded.starred,
			read         = excluded.read,
			reading_list = excluded.reading_list,
			data         = excluded.data,
			updated_at   = excluded.updated_at
	`, card.ID, row.Path, string(card.Type), card.Title, row.Checksum, string(tagsJSON), card.Body,
		row.Flags.Starred, row.Flags.Read, row.Flags.ReadingList, string(data), row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert card: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, card.ID, row.Path, card.Title, card.Body, card.Tags); err != nil {
		return err
	}

	// Replace references: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM card_references WHERE source = ?`, card.ID)
	if card.References.Len() > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO card_references (source, target, type, value) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare reference insert: %w", err)
		}
		defer stmt.Close()
		for target, types := range card.References.Targets {
			for typ, value := range types {
				if _, err := stmt.Exec(card.ID, target, string(typ), value); err != nil {
					return fmt.Errorf("index: insert reference: %w", err)
				}
			}
		}
	}

	return tx.Commit()
}

// DeleteCard removes the card stored at path, its FTS entry, and its
// outbound references.
func (db *DB) DeleteCard(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id string
	err = tx.QueryRow(`SELECT id FROM cards WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("index: lookup card: %w", err)
	}

	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	_, _ = tx.Exec(`DELETE FROM card_references WHERE source = ?`, id)
	_, _ = tx.Exec(`DELETE FROM cards WHERE id = ?`, id)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a path, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM cards WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums maps every indexed path to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// AllPaths returns every indexed card path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// GetCard loads one card with its outbound references.
func (db *DB) GetCard(id string) (*models.Card, snapshot.Flags, error) {
	var (
		data  string
		flags snapshot.Flags
	)
	err := db.conn.QueryRow(`SELECT data, starred, read, reading_list FROM cards WHERE id = ?`, id).
		Scan(&data, &flags.Starred, &flags.Read, &flags.ReadingList)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, flags, fmt.Errorf("index: card %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, flags, fmt.Errorf("index: get card: %w", err)
	}
	var card models.Card
	if err := json.Unmarshal([]byte(data), &card); err != nil {
		return nil, flags, fmt.Errorf("index: decode card %q: %w", id, err)
	}

	refs, err := db.referencesWhere(`source = ?`, id)
	if err != nil {
		return nil, flags, err
	}
	card.References = blockFrom(refs)
	return &card, flags, nil
}

// ApplyReferencesDiff patches the stored outbound references of source.
func (db *DB) ApplyReferencesDiff(source string, d references.Diff) error {
	if d.Empty() {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for target := range d.CardDeletions {
		if _, err := tx.Exec(`DELETE FROM card_references WHERE source = ? AND target = ?`, source, target); err != nil {
			return fmt.Errorf("index: delete references: %w", err)
		}
	}
	for target, types := range d.LeafDeletions {
		for typ := range types {
			if _, err := tx.Exec(`DELETE FROM card_references WHERE source = ? AND target = ? AND type = ?`,
				source, target, string(typ)); err != nil {
				return fmt.Errorf("index: delete reference: %w", err)
			}
		}
	}
	for _, set := range []map[string]map[models.ReferenceType]string{d.Additions, d.Modifications} {
		for target, types := range set {
			for typ, value := range types {
				if _, err := tx.Exec(`
					INSERT INTO card_references (source, target, type, value) VALUES (?, ?, ?, ?)
					ON CONFLICT(source, target, type) DO UPDATE SET value = excluded.value
				`, source, target, string(typ), value); err != nil {
					return fmt.Errorf("index: put reference: %w", err)
				}
			}
		}
	}

	return tx.Commit()
}

// Inbound returns every stored reference that points at target.
func (db *DB) Inbound(target string) ([]ReferenceRow, error) {
	return db.referencesWhere(`target = ?`, target)
}

// LoadSnapshot builds a snapshot from every indexed card.
func (db *DB) LoadSnapshot() (*snapshot.Snapshot, error) {
	refs, err := db.referencesWhere(`1 = 1`)
	if err != nil {
		return nil, err
	}
	bySource := make(map[string][]ReferenceRow)
	for _, r := range refs {
		bySource[r.Source] = append(bySource[r.Source], r)
	}

	rows, err := db.conn.Query(`SELECT data, starred, read, reading_list FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("index: load cards: %w", err)
	}
	defer rows.Close()

	b := snapshot.NewBuilder()
	for rows.Next() {
		var (
			data  string
			flags snapshot.Flags
		)
		if err := rows.Scan(&data, &flags.Starred, &flags.Read, &flags.ReadingList); err != nil {
			return nil, err
		}
		card := new(models.Card)
		if err := json.Unmarshal([]byte(data), card); err != nil {
			return nil, fmt.Errorf("index: decode card: %w", err)
		}
		card.References = blockFrom(bySource[card.ID])
		b.Add(card, flags)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func (db *DB) referencesWhere(cond string, args ...any) ([]ReferenceRow, error) {
	rows, err := db.conn.Query(`SELECT source, target, type, value FROM card_references WHERE `+cond+
		` ORDER BY source, target, type`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: references: %w", err)
	}
	defer rows.Close()

	var out []ReferenceRow
	for rows.Next() {
		var r ReferenceRow
		if err := rows.Scan(&r.Source, &r.Target, &r.Type, &r.Value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func blockFrom(rows []ReferenceRow) models.ReferenceBlock {
	targets := make(map[string]map[models.ReferenceType]string)
	for _, r := range rows {
		if targets[r.Target] == nil {
			targets[r.Target] = make(map[models.ReferenceType]string)
		}
		targets[r.Target][r.Type] = r.Value
	}
	return references.FromTargets(targets)
}
