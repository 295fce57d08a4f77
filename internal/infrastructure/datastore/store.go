package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("document not found")

// Store is the persistence contract the ingestion pipeline runs against.
type Store interface {
	GetByID(ctx context.Context, location, collection, id string, out any) error
	GetByName(ctx context.Context, location, collection, name string, out any) error
	GetAll(ctx context.Context, location, collection string, out any) error
	Insert(ctx context.Context, location, collection string, docs ...any) (int, error)
	Upsert(ctx context.Context, location, collection string, docs ...any) error
	Clear(ctx context.Context, location, collection string) error
	WipeAndStore(ctx context.Context, location, collection string, docs ...any) error
	// UpdatePart atomically sets a single field on one document, creating
	// the document when missing, and unmarshals the updated document into
	// out. Concurrent updates to different fields must both survive.
	UpdatePart(ctx context.Context, location, collection, id, field string, value any, out any) error
	// ReplaceWhereNull replaces the whole document only while nullField is
	// still null in the stored copy. Returns false when the guard no longer
	// holds.
	ReplaceWhereNull(ctx context.Context, location, collection, id, nullField string, doc any) (bool, error)
}

// SQLStore implements Store on a Manager's SQLite handles.
type SQLStore struct {
	manager *Manager
	logger  *slog.Logger
}

func NewSQLStore(manager *Manager, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{manager: manager, logger: logger}
}

// encode marshals a document and determines its id, minting one when the
// document has none (derived collections like summaries carry no natural
// key).
func encode(doc any) (id string, body []byte, err error) {
	body, err = json.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("marshal document: %w", err)
	}

	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.ID == "" {
		return uuid.NewString(), body, nil
	}
	return probe.ID, body, nil
}

func (s *SQLStore) GetByID(ctx context.Context, location, collection, id string, out any) error {
	db, err := s.manager.Handle(location)
	if err != nil {
		return err
	}

	var body []byte
	err = db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal(body, out)
}

func (s *SQLStore) GetByName(ctx context.Context, location, collection, name string, out any) error {
	db, err := s.manager.Handle(location)
	if err != nil {
		return err
	}

	var body []byte
	err = db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND json_extract(body, '$.name') = ?`,
		collection, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s named %q", ErrNotFound, collection, name)
	}
	if err != nil {
		return fmt.Errorf("get %s named %q: %w", collection, name, err)
	}
	return json.Unmarshal(body, out)
}

// GetAll unmarshals every document in a collection into out, which must be a
// pointer to a slice.
func (s *SQLStore) GetAll(ctx context.Context, location, collection string, out any) error {
	db, err := s.manager.Handle(location)
	if err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT body FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return fmt.Errorf("get all %s: %w", collection, err)
	}
	defer rows.Close()

	var bodies []json.RawMessage
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return fmt.Errorf("scan %s: %w", collection, err)
		}
		bodies = append(bodies, body)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s: %w", collection, err)
	}

	merged, err := json.Marshal(bodies)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, out)
}

func (s *SQLStore) Insert(ctx context.Context, location, collection string, docs ...any) (int, error) {
	db, err := s.manager.Handle(location)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	for _, doc := range docs {
		id, body, err := encode(doc)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`,
			collection, id, body); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", collection, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.Debug("inserted documents", "location", location, "collection", collection, "count", inserted)
	return inserted, nil
}

func (s *SQLStore) Upsert(ctx context.Context, location, collection string, docs ...any) error {
	db, err := s.manager.Handle(location)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, doc := range docs {
		id, body, err := encode(doc)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
			 ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`,
			collection, id, body); err != nil {
			return fmt.Errorf("upsert into %s: %w", collection, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("upserted documents", "location", location, "collection", collection, "count", len(docs))
	return nil
}

func (s *SQLStore) Clear(ctx context.Context, location, collection string) error {
	db, err := s.manager.Handle(location)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}
	return nil
}

// WipeAndStore fully replaces a collection in one transaction. Common and
// summary collections are derived data, rebuilt on every successful load.
func (s *SQLStore) WipeAndStore(ctx context.Context, location, collection string, docs ...any) error {
	db, err := s.manager.Handle(location)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("wipe %s: %w", collection, err)
	}
	for _, doc := range docs {
		id, body, err := encode(doc)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`,
			collection, id, body); err != nil {
			return fmt.Errorf("store into %s: %w", collection, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("wiped and stored", "location", location, "collection", collection, "count", len(docs))
	return nil
}

func (s *SQLStore) UpdatePart(ctx context.Context, location, collection, id, field string, value any, out any) error {
	db, err := s.manager.Handle(location)
	if err != nil {
		return err
	}

	fieldJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal field %s: %w", field, err)
	}
	var fieldValue any
	if err := json.Unmarshal(fieldJSON, &fieldValue); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doc := map[string]any{}
	var body []byte
	err = tx.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		doc["id"] = id
	case err != nil:
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	default:
		if err := json.Unmarshal(body, &doc); err != nil {
			return fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
	}

	doc[field] = fieldValue
	updated, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`,
		collection, id, updated); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("updated document part", "location", location, "collection", collection, "id", id, "field", field)
	if out == nil {
		return nil
	}
	return json.Unmarshal(updated, out)
}

func (s *SQLStore) ReplaceWhereNull(ctx context.Context, location, collection, id, nullField string, doc any) (bool, error) {
	db, err := s.manager.Handle(location)
	if err != nil {
		return false, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var body []byte
	err = tx.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return false, fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}

	stored := map[string]any{}
	if err := json.Unmarshal(body, &stored); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	if stored[nullField] != nil {
		// Guard lost: someone else already set the field.
		return false, nil
	}

	_, replacement, err := encode(doc)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`,
		replacement, collection, id); err != nil {
		return false, fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
