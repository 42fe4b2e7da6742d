package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the outcome of one archive.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record is one ledger row.
type Record struct {
	ID              int64
	RunID           string
	Source          string
	Destination     string
	Status          Status
	ErrorKind       string
	ErrorMessage    string
	Histogram       map[string]uint64
	Encodings       map[string]int
	Files           int
	Bytes           int64
	ExtractFailures int
	Converted       int
	ConvertFailed   int
	// Digest is the BLAKE3 hex digest of the rebuilt archive.
	Digest     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the archive took.
func (r Record) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const recordColumns = "id, run_id, source_path, destination_path, status, error_kind, error_message, histogram_json, encodings_json, files, bytes, extract_failures, converted, convert_failed, digest, started_at, finished_at"

// Insert appends a record and returns its id.
func (s *Store) Insert(ctx context.Context, rec Record) (int64, error) {
	if rec.RunID == "" || rec.Source == "" {
		return 0, errors.New("history record requires run id and source")
	}
	if rec.Status == "" {
		rec.Status = StatusSucceeded
	}
	histogramJSON, err := marshalOptional(rec.Histogram)
	if err != nil {
		return 0, fmt.Errorf("marshal histogram: %w", err)
	}
	encodingsJSON, err := marshalOptional(rec.Encodings)
	if err != nil {
		return 0, fmt.Errorf("marshal encodings: %w", err)
	}
	finished := rec.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	started := rec.StartedAt
	if started.IsZero() {
		started = finished
	}

	res, err := s.execWithRetry(ctx,
		`INSERT INTO archive_runs (`+recordColumns[len("id, "):]+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Source,
		nullableString(rec.Destination),
		string(rec.Status),
		nullableString(rec.ErrorKind),
		nullableString(rec.ErrorMessage),
		histogramJSON,
		encodingsJSON,
		rec.Files,
		rec.Bytes,
		rec.ExtractFailures,
		rec.Converted,
		rec.ConvertFailed,
		nullableString(rec.Digest),
		started.UTC().Format(timeLayout),
		finished.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert history record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit records, newest first. A limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM archive_runs ORDER BY finished_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// ForRun returns the records written by one run in insertion order.
func (s *Store) ForRun(ctx context.Context, runID string) ([]Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM archive_runs WHERE run_id = ? ORDER BY id`, runID)
}

// ForSource returns every record for a source archive, newest first.
func (s *Store) ForSource(ctx context.Context, source string) ([]Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM archive_runs WHERE source_path = ? ORDER BY id DESC`, source)
}

// Prune deletes records finished before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM archive_runs WHERE finished_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec           Record
		status        string
		destination   sql.NullString
		errorKind     sql.NullString
		errorMessage  sql.NullString
		histogramJSON sql.NullString
		encodingsJSON sql.NullString
		digest        sql.NullString
		startedRaw    string
		finishedRaw   string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.Source,
		&destination,
		&status,
		&errorKind,
		&errorMessage,
		&histogramJSON,
		&encodingsJSON,
		&rec.Files,
		&rec.Bytes,
		&rec.ExtractFailures,
		&rec.Converted,
		&rec.ConvertFailed,
		&digest,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	rec.Destination = destination.String
	rec.ErrorKind = errorKind.String
	rec.ErrorMessage = errorMessage.String
	rec.Digest = digest.String
	if histogramJSON.Valid && histogramJSON.String != "" {
		if err := json.Unmarshal([]byte(histogramJSON.String), &rec.Histogram); err != nil {
			return Record{}, fmt.Errorf("decode histogram: %w", err)
		}
	}
	if encodingsJSON.Valid && encodingsJSON.String != "" {
		if err := json.Unmarshal([]byte(encodingsJSON.String), &rec.Encodings); err != nil {
			return Record{}, fmt.Errorf("decode encodings: %w", err)
		}
	}
	if t, err := time.Parse(timeLayout, startedRaw); err == nil {
		rec.StartedAt = t
	}
	if t, err := time.Parse(timeLayout, finishedRaw); err == nil {
		rec.FinishedAt = t
	}
	return rec, nil
}

func marshalOptional[M ~map[K]V, K comparable, V any](m M) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
