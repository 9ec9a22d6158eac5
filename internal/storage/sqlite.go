package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shohag/hookrelay/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			secret TEXT NOT NULL DEFAULT '',
			event_types TEXT NOT NULL DEFAULT '[]',
			active INTEGER NOT NULL DEFAULT 1,
			timeout_ms INTEGER NOT NULL DEFAULT 0,
			retry INTEGER NOT NULL DEFAULT 0,
			retry_delay_ms INTEGER NOT NULL DEFAULT 0,
			headers TEXT NOT NULL DEFAULT '{}',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			endpoint_id TEXT NOT NULL,
			event TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			status_code INTEGER NOT NULL DEFAULT 0,
			response_body TEXT NOT NULL DEFAULT '',
			attempts INTEGER NOT NULL DEFAULT 0,
			idempotency_key TEXT NOT NULL DEFAULT '',
			succeeded_at DATETIME,
			failed_at DATETIME,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS failures (
			id TEXT PRIMARY KEY,
			endpoint_id TEXT,
			endpoint_url TEXT NOT NULL,
			event TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			options TEXT NOT NULL DEFAULT '{}',
			total_attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			last_status_code INTEGER NOT NULL DEFAULT 0,
			last_response_body TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT NOT NULL DEFAULT '',
			retried_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_endpoints_active ON endpoints(active)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_endpoint ON deliveries(endpoint_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_key ON deliveries(idempotency_key)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_pending ON failures(retried_at) WHERE retried_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_failures_event ON failures(event)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Endpoints ---

func (s *SQLiteStorage) CreateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	eventTypes, _ := json.Marshal(orEmptySlice(ep.EventTypes))
	headers, _ := json.Marshal(orEmptyMap(ep.Headers))
	metadata, _ := json.Marshal(orEmptyMap(ep.Metadata))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO endpoints (id, url, secret, event_types, active, timeout_ms, retry, retry_delay_ms, headers, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, ep.URL, ep.Secret, string(eventTypes), ep.Active,
		ep.Timeout.Milliseconds(), ep.Retry, ep.RetryDelay.Milliseconds(),
		string(headers), string(metadata), ep.CreatedAt, ep.UpdatedAt,
	)
	return err
}

const endpointColumns = `id, url, secret, event_types, active, timeout_ms, retry, retry_delay_ms, headers, metadata, created_at, updated_at`

func scanEndpoint(row interface{ Scan(...any) error }) (*models.Endpoint, error) {
	var (
		ep         models.Endpoint
		eventTypes string
		headers    string
		metadata   string
		timeoutMs  int64
		retryDelay int64
	)
	err := row.Scan(&ep.ID, &ep.URL, &ep.Secret, &eventTypes, &ep.Active,
		&timeoutMs, &ep.Retry, &retryDelay, &headers, &metadata,
		&ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ep.Timeout = time.Duration(timeoutMs) * time.Millisecond
	ep.RetryDelay = time.Duration(retryDelay) * time.Millisecond
	_ = json.Unmarshal([]byte(eventTypes), &ep.EventTypes)
	_ = json.Unmarshal([]byte(headers), &ep.Headers)
	_ = json.Unmarshal([]byte(metadata), &ep.Metadata)
	return &ep, nil
}

func (s *SQLiteStorage) GetEndpoint(ctx context.Context, id string) (*models.Endpoint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+endpointColumns+` FROM endpoints WHERE id = ?`, id)
	ep, err := scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ep, err
}

func (s *SQLiteStorage) ListEndpoints(ctx context.Context) ([]models.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+endpointColumns+` FROM endpoints ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eps []models.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		eps = append(eps, *ep)
	}
	return eps, rows.Err()
}

func (s *SQLiteStorage) UpdateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	eventTypes, _ := json.Marshal(orEmptySlice(ep.EventTypes))
	headers, _ := json.Marshal(orEmptyMap(ep.Headers))
	metadata, _ := json.Marshal(orEmptyMap(ep.Metadata))

	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET url = ?, secret = ?, event_types = ?, active = ?, timeout_ms = ?, retry = ?, retry_delay_ms = ?, headers = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		ep.URL, ep.Secret, string(eventTypes), ep.Active,
		ep.Timeout.Milliseconds(), ep.Retry, ep.RetryDelay.Milliseconds(),
		string(headers), string(metadata), time.Now().UTC(), ep.ID,
	)
	return err
}

func (s *SQLiteStorage) DeleteEndpoint(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) ToggleEndpoint(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
	return err
}

// MatchEndpoints filters in Go because event patterns are globs, which
// SQLite LIKE cannot express faithfully.
func (s *SQLiteStorage) MatchEndpoints(ctx context.Context, event string) ([]models.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+endpointColumns+` FROM endpoints WHERE active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []models.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		if ep.ShouldReceive(event) {
			matched = append(matched, *ep)
		}
	}
	return matched, rows.Err()
}

// --- Deliveries ---

func (s *SQLiteStorage) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	payload := d.Payload
	if payload == nil {
		payload = []byte(`{}`)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, endpoint_id, event, payload, status_code, response_body, attempts, idempotency_key, succeeded_at, failed_at, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.EndpointID, d.Event, string(payload), d.StatusCode, d.ResponseBody,
		d.Attempts, d.IdempotencyKey, d.SucceededAt, d.FailedAt, d.Error, d.CreatedAt,
	)
	return err
}

const deliveryColumns = `id, endpoint_id, event, payload, status_code, response_body, attempts, idempotency_key, succeeded_at, failed_at, error, created_at`

func scanDelivery(row interface{ Scan(...any) error }) (*models.Delivery, error) {
	var (
		d           models.Delivery
		payload     string
		succeededAt sql.NullTime
		failedAt    sql.NullTime
	)
	err := row.Scan(&d.ID, &d.EndpointID, &d.Event, &payload, &d.StatusCode,
		&d.ResponseBody, &d.Attempts, &d.IdempotencyKey, &succeededAt, &failedAt,
		&d.Error, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Payload = json.RawMessage(payload)
	if succeededAt.Valid {
		d.SucceededAt = &succeededAt.Time
	}
	if failedAt.Valid {
		d.FailedAt = &failedAt.Time
	}
	return &d, nil
}

func (s *SQLiteStorage) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id)
	d, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *SQLiteStorage) ListDeliveries(ctx context.Context, endpointID string, limit, offset int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + deliveryColumns + ` FROM deliveries`
	args := []any{}
	if endpointID != "" {
		query += ` WHERE endpoint_id = ?`
		args = append(args, endpointID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ds []models.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		ds = append(ds, *d)
	}
	return ds, rows.Err()
}

// --- Failures ---

func (s *SQLiteStorage) CreateFailure(ctx context.Context, f *models.Failure) error {
	payload := f.Payload
	if payload == nil {
		payload = []byte(`{}`)
	}
	options := f.Options
	if options == nil {
		options = []byte(`{}`)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (id, endpoint_id, endpoint_url, event, payload, options, total_attempts, last_error, last_status_code, last_response_body, idempotency_key, retried_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.EndpointID, f.EndpointURL, f.Event, string(payload), string(options),
		f.TotalAttempts, f.LastError, f.LastStatusCode, f.LastResponseBody,
		f.IdempotencyKey, f.RetriedAt, f.CreatedAt,
	)
	return err
}

const failureColumns = `id, endpoint_id, endpoint_url, event, payload, options, total_attempts, last_error, last_status_code, last_response_body, idempotency_key, retried_at, created_at`

func scanFailure(row interface{ Scan(...any) error }) (*models.Failure, error) {
	var (
		f          models.Failure
		endpointID sql.NullString
		payload    string
		options    string
		retriedAt  sql.NullTime
	)
	err := row.Scan(&f.ID, &endpointID, &f.EndpointURL, &f.Event, &payload, &options,
		&f.TotalAttempts, &f.LastError, &f.LastStatusCode, &f.LastResponseBody,
		&f.IdempotencyKey, &retriedAt, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if endpointID.Valid {
		f.EndpointID = &endpointID.String
	}
	f.Payload = json.RawMessage(payload)
	f.Options = json.RawMessage(options)
	if retriedAt.Valid {
		f.RetriedAt = &retriedAt.Time
	}
	return &f, nil
}

func (s *SQLiteStorage) GetFailure(ctx context.Context, id string) (*models.Failure, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+failureColumns+` FROM failures WHERE id = ?`, id)
	f, err := scanFailure(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

func (s *SQLiteStorage) ListFailures(ctx context.Context, filter FailureFilter) ([]models.Failure, error) {
	query := `SELECT ` + failureColumns + ` FROM failures WHERE 1=1`
	args := []any{}

	switch filter.Status {
	case FailureStatusPending:
		query += ` AND retried_at IS NULL`
	case FailureStatusRetried:
		query += ` AND retried_at IS NOT NULL`
	}
	if filter.Event != "" {
		query += ` AND event = ?`
		args = append(args, filter.Event)
	}

	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fs []models.Failure
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, err
		}
		fs = append(fs, *f)
	}
	return fs, rows.Err()
}

func (s *SQLiteStorage) MarkFailureRetried(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE failures SET retried_at = ? WHERE id = ?`, at, id)
	return err
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
