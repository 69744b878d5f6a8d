package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/oumiche/impact-auto-plus-sub006/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements domain.InterventionRepository, domain.CodeFormatRepository
// and domain.SequenceStore on a single SQLite database.
type Store struct {
	db *sql.DB
}

// Compile-time checks against the domain ports.
var (
	_ domain.InterventionRepository = (*Store)(nil)
	_ domain.CodeFormatRepository   = (*Store)(nil)
	_ domain.SequenceStore          = (*Store)(nil)
)

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows a single writer; one pooled connection also keeps
	// ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready store. Use this when the *sql.DB has been pre-configured
// (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (s *Store) DB() *sql.DB {
	return s.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// formatNullTime maps a nil timestamp to SQL NULL.
func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

const interventionColumns = `id, tenant_id, vehicle_id, title, priority, status, version, assigned_to,
	 code, quote_code, authorization_code, invoice_code,
	 reported_date, started_date, completed_date, closed_date, invoiced_at,
	 created_at, updated_at`

func (s *Store) Create(ctx context.Context, iv domain.Intervention) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interventions (`+interventionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.TenantID, iv.VehicleID, iv.Title, string(iv.Priority), string(iv.Status),
		iv.Version, iv.AssignedTo,
		iv.Code, iv.QuoteCode, iv.AuthorizationCode, iv.InvoiceCode,
		formatTime(iv.ReportedDate),
		formatNullTime(iv.StartedDate),
		formatNullTime(iv.CompletedDate),
		formatNullTime(iv.ClosedDate),
		formatNullTime(iv.InvoicedAt),
		formatTime(iv.CreatedAt),
		formatTime(iv.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting intervention: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Intervention, error) {
	return s.scanIntervention(s.db.QueryRowContext(ctx,
		`SELECT `+interventionColumns+` FROM interventions WHERE id = ?`, id,
	))
}

func (s *Store) List(ctx context.Context, filter domain.ListFilter) ([]domain.Intervention, error) {
	query := `SELECT ` + interventionColumns + ` FROM interventions`
	var conds []string
	var args []any

	if filter.TenantID != "" {
		conds = append(conds, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}

	query += ` ORDER BY created_at DESC, id`

	if filter.Limit > 0 || filter.Offset > 0 {
		// SQLite requires LIMIT before OFFSET; -1 means unbounded.
		limit := -1
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing interventions: %w", err)
	}
	defer rows.Close()

	var out []domain.Intervention
	for rows.Next() {
		iv, err := s.scanInterventionFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}

	return out, rows.Err()
}

func (s *Store) UpdateWithVersion(ctx context.Context, iv domain.Intervention, expectedVersion int64) error {
	result, err := s.db.ExecContext(ctx, updateInterventionSQL, updateInterventionArgs(iv, expectedVersion)...)
	if err != nil {
		return fmt.Errorf("updating intervention: %w", err)
	}
	return checkVersionedUpdate(ctx, s.db, result, iv.ID)
}

// ApplyTransition writes the versioned update and the audit record in one
// transaction, so a status change never lands without its history entry.
func (s *Store) ApplyTransition(ctx context.Context, iv domain.Intervention, expectedVersion int64, rec domain.TransitionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.ExecContext(ctx, updateInterventionSQL, updateInterventionArgs(iv, expectedVersion)...)
	if err != nil {
		return fmt.Errorf("updating intervention: %w", err)
	}
	if err := checkVersionedUpdate(ctx, tx, result, iv.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO intervention_transitions (intervention_id, from_status, to_status, actor, comment, forced, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.InterventionID, string(rec.From), string(rec.To), rec.Actor, rec.Comment,
		boolToInt(rec.Forced), formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting transition record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transition: %w", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, interventionID string) ([]domain.TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, intervention_id, from_status, to_status, actor, comment, forced, created_at
		 FROM intervention_transitions
		 WHERE intervention_id = ?
		 ORDER BY id`,
		interventionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing transition records: %w", err)
	}
	defer rows.Close()

	var out []domain.TransitionRecord
	for rows.Next() {
		var rec domain.TransitionRecord
		var from, to, createdAt string
		var forced int
		if err := rows.Scan(&rec.ID, &rec.InterventionID, &from, &to, &rec.Actor, &rec.Comment, &forced, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transition record: %w", err)
		}
		rec.From = domain.Status(from)
		rec.To = domain.Status(to)
		rec.Forced = forced != 0
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, rec)
	}

	return out, rows.Err()
}

const updateInterventionSQL = `UPDATE interventions
	 SET status = ?, version = ?, assigned_to = ?,
	     quote_code = ?, authorization_code = ?, invoice_code = ?,
	     started_date = ?, completed_date = ?, closed_date = ?, invoiced_at = ?,
	     updated_at = ?
	 WHERE id = ? AND version = ?`

func updateInterventionArgs(iv domain.Intervention, expectedVersion int64) []any {
	return []any{
		string(iv.Status), iv.Version, iv.AssignedTo,
		iv.QuoteCode, iv.AuthorizationCode, iv.InvoiceCode,
		formatNullTime(iv.StartedDate),
		formatNullTime(iv.CompletedDate),
		formatNullTime(iv.ClosedDate),
		formatNullTime(iv.InvoicedAt),
		formatTime(iv.UpdatedAt),
		iv.ID, expectedVersion,
	}
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkVersionedUpdate distinguishes a missing row from a version
// mismatch when a guarded update touched nothing. The existence check
// must run on the caller's querier: inside a transaction the pool's
// single connection is already held, so going back through s.db would
// wait on ourselves.
func checkVersionedUpdate(ctx context.Context, q rowQuerier, result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = q.QueryRowContext(ctx, `SELECT COUNT(*) FROM interventions WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking intervention existence: %w", err)
	}
	if exists == 0 {
		return domain.ErrInterventionNotFound
	}
	return domain.ErrVersionConflict
}

func (s *Store) scanIntervention(row *sql.Row) (domain.Intervention, error) {
	var iv domain.Intervention
	var priority, status, reportedDate, createdAt, updatedAt string
	var startedDate, completedDate, closedDate, invoicedAt sql.NullString

	err := row.Scan(
		&iv.ID, &iv.TenantID, &iv.VehicleID, &iv.Title, &priority, &status, &iv.Version, &iv.AssignedTo,
		&iv.Code, &iv.QuoteCode, &iv.AuthorizationCode, &iv.InvoiceCode,
		&reportedDate, &startedDate, &completedDate, &closedDate, &invoicedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Intervention{}, domain.ErrInterventionNotFound
		}
		return domain.Intervention{}, fmt.Errorf("scanning intervention: %w", err)
	}

	fillIntervention(&iv, priority, status, reportedDate, createdAt, updatedAt,
		startedDate, completedDate, closedDate, invoicedAt)
	return iv, nil
}

func (s *Store) scanInterventionFromRows(rows *sql.Rows) (domain.Intervention, error) {
	var iv domain.Intervention
	var priority, status, reportedDate, createdAt, updatedAt string
	var startedDate, completedDate, closedDate, invoicedAt sql.NullString

	err := rows.Scan(
		&iv.ID, &iv.TenantID, &iv.VehicleID, &iv.Title, &priority, &status, &iv.Version, &iv.AssignedTo,
		&iv.Code, &iv.QuoteCode, &iv.AuthorizationCode, &iv.InvoiceCode,
		&reportedDate, &startedDate, &completedDate, &closedDate, &invoicedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Intervention{}, fmt.Errorf("scanning intervention row: %w", err)
	}

	fillIntervention(&iv, priority, status, reportedDate, createdAt, updatedAt,
		startedDate, completedDate, closedDate, invoicedAt)
	return iv, nil
}

func fillIntervention(iv *domain.Intervention, priority, status, reportedDate, createdAt, updatedAt string,
	startedDate, completedDate, closedDate, invoicedAt sql.NullString,
) {
	iv.Priority = domain.Priority(priority)
	iv.Status = domain.Status(status)
	iv.ReportedDate = parseTime(reportedDate)
	iv.StartedDate = parseNullTime(startedDate)
	iv.CompletedDate = parseNullTime(completedDate)
	iv.ClosedDate = parseNullTime(closedDate)
	iv.InvoicedAt = parseNullTime(invoicedAt)
	iv.CreatedAt = parseTime(createdAt)
	iv.UpdatedAt = parseTime(updatedAt)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
