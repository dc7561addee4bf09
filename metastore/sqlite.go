package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/ccvec/codec"
	"github.com/hupe1980/ccvec/model"
)

// SQLite is a metadata store backed by a pure-Go SQLite database.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the database at path. Use ":memory:" for a
// private in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLite{db: db, path: path}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS transcripts (
			transcript_id TEXT PRIMARY KEY,
			batch_id      TEXT NOT NULL DEFAULT '',
			entity_name   TEXT NOT NULL DEFAULT '',
			scenario      TEXT NOT NULL DEFAULT '',
			csat          REAL NOT NULL DEFAULT 0,
			fcr           INTEGER NOT NULL DEFAULT 0,
			aht           INTEGER NOT NULL DEFAULT 0,
			sentiment     TEXT NOT NULL DEFAULT '',
			customer_id   TEXT NOT NULL DEFAULT '',
			agent_id      TEXT NOT NULL DEFAULT '',
			timestamp     TEXT NOT NULL DEFAULT '',
			s3_key        TEXT NOT NULL DEFAULT '',
			fields        TEXT
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

// Get returns the row for id.
func (s *SQLite) Get(ctx context.Context, id model.RecordID) (model.Metadata, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT transcript_id, batch_id, entity_name, scenario, csat, fcr, aht,
		       sentiment, customer_id, agent_id, timestamp, s3_key, fields
		FROM transcripts WHERE transcript_id = ?`, id)

	var (
		md        model.Metadata
		sentiment string
		fields    sql.NullString
	)
	err := row.Scan(&md.ID, &md.BatchID, &md.EntityName, &md.Scenario, &md.CSAT, &md.Resolved, &md.AHT,
		&sentiment, &md.CustomerID, &md.AgentID, &md.Timestamp, &md.SourceKey, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Metadata{}, false, nil
	}
	if err != nil {
		return model.Metadata{}, false, fmt.Errorf("metastore: get %s: %w", id, err)
	}

	md.Sentiment = model.Sentiment(sentiment)
	if fields.Valid && fields.String != "" {
		if err := codec.Default.Unmarshal([]byte(fields.String), &md.Fields); err != nil {
			return model.Metadata{}, false, fmt.Errorf("metastore: decode fields of %s: %w", id, err)
		}
	}
	return md, true, nil
}

// Put inserts or replaces the row of md.ID.
func (s *SQLite) Put(ctx context.Context, md model.Metadata) error {
	if md.ID == "" {
		return ErrEmptyID
	}

	var fields sql.NullString
	if len(md.Fields) > 0 {
		b, err := codec.Default.Marshal(md.Fields)
		if err != nil {
			return fmt.Errorf("metastore: encode fields of %s: %w", md.ID, err)
		}
		fields = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO transcripts (
			transcript_id, batch_id, entity_name, scenario, csat, fcr, aht,
			sentiment, customer_id, agent_id, timestamp, s3_key, fields
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		md.ID, md.BatchID, md.EntityName, md.Scenario, md.CSAT, md.Resolved, md.AHT,
		string(md.Sentiment), md.CustomerID, md.AgentID, md.Timestamp, md.SourceKey, fields)
	if err != nil {
		return fmt.Errorf("metastore: put %s: %w", md.ID, err)
	}
	return nil
}

// Count returns the number of stored rows.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transcripts").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
