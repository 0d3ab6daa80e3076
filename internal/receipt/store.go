package receipt

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/laminar/internal/errs"
)

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
	batch_id        TEXT PRIMARY KEY,
	timestamp       TEXT NOT NULL,
	network         TEXT NOT NULL,
	total_zatoshis  INTEGER NOT NULL,
	recipient_count INTEGER NOT NULL,
	payload_hash    TEXT NOT NULL,
	segments        INTEGER NOT NULL,
	body            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS receipts_timestamp ON receipts(timestamp);
`

// Store archives receipts in a local SQLite database. It only ever receives
// completed receipts; it holds no key material and no drafts.
type Store struct {
	db     *sql.DB
	logger *logrus.Entry
}

// Summary is one row of the archive listing.
type Summary struct {
	BatchID        uuid.UUID `json:"batch_id"`
	Timestamp      string    `json:"timestamp"`
	Network        string    `json:"network"`
	TotalZat       uint64    `json:"total_zatoshis"`
	RecipientCount int       `json:"recipient_count"`
	PayloadHash    string    `json:"zip321_payload_hash"`
	Segments       int       `json:"segments"`
}

// OpenStore opens (creating if needed) the archive at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(err, errs.CodeIO, "failed to create archive directory")
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "failed to open receipt archive")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, errs.CodeIO, "failed to initialize receipt archive")
	}
	return &Store{
		db:     db,
		logger: logrus.WithField("component", "receipt-store"),
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save archives r. Saving a receipt whose batch id is already archived is a
// no-op and reports false; receipts are never overwritten.
func (s *Store) Save(ctx context.Context, r *Receipt) (bool, error) {
	body, err := Marshal(r)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO receipts (batch_id, timestamp, network, total_zatoshis, recipient_count, payload_hash, segments, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO NOTHING`,
		r.BatchID.String(), r.Timestamp, string(r.Network), int64(r.TotalZat),
		r.RecipientCount, r.PayloadHash, r.Segments, string(body))
	if err != nil {
		return false, errs.Wrap(err, errs.CodeIO, "failed to archive receipt")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.Wrap(err, errs.CodeIO, "failed to archive receipt")
	}
	s.logger.WithFields(logrus.Fields{
		"batch_id": r.BatchID,
		"inserted": n == 1,
	}).Debug("Receipt archived")
	return n == 1, nil
}

// List returns archived receipts, newest first. A limit of zero or less
// returns every row.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT batch_id, timestamp, network, total_zatoshis, recipient_count, payload_hash, segments
		FROM receipts ORDER BY timestamp DESC, batch_id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "failed to query receipt archive")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sm    Summary
			id    string
			total int64
		)
		if err := rows.Scan(&id, &sm.Timestamp, &sm.Network, &total, &sm.RecipientCount, &sm.PayloadHash, &sm.Segments); err != nil {
			return nil, errs.Wrap(err, errs.CodeIO, "failed to read receipt archive")
		}
		if sm.BatchID, err = uuid.Parse(id); err != nil {
			return nil, errs.Wrap(err, errs.CodeInternal, "archive holds a malformed batch id")
		}
		sm.TotalZat = uint64(total)
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "failed to read receipt archive")
	}
	return out, nil
}

// Get loads one archived receipt.
func (s *Store) Get(ctx context.Context, batchID uuid.UUID) (*Receipt, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM receipts WHERE batch_id = ?`, batchID.String()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.CodeIO, "no archived receipt for batch %s", batchID)
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "failed to query receipt archive")
	}
	var r Receipt
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "archived receipt is not valid JSON")
	}
	return &r, nil
}
