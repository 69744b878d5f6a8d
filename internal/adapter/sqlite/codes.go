package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oumiche/impact-auto-plus-sub006/internal/domain"
)

func (s *Store) CreateFormat(ctx context.Context, f domain.CodeFormat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO code_formats (id, tenant_id, entity_type, template, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.TenantID, string(f.EntityType), f.Template, boolToInt(f.Active), formatTime(f.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting code format: %w", err)
	}
	return nil
}

func (s *Store) ListActiveFormats(ctx context.Context, tenantID string, entityType domain.EntityType) ([]domain.CodeFormat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, entity_type, template, active, created_at
		 FROM code_formats
		 WHERE tenant_id = ? AND entity_type = ? AND active = 1
		 ORDER BY created_at DESC, id DESC`,
		tenantID, string(entityType),
	)
	if err != nil {
		return nil, fmt.Errorf("listing active code formats: %w", err)
	}
	defer rows.Close()

	return scanFormats(rows)
}

func (s *Store) ListFormats(ctx context.Context, tenantID string) ([]domain.CodeFormat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, entity_type, template, active, created_at
		 FROM code_formats
		 WHERE tenant_id = ?
		 ORDER BY created_at DESC, id DESC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing code formats: %w", err)
	}
	defer rows.Close()

	return scanFormats(rows)
}

func (s *Store) DeactivateFormat(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE code_formats SET active = 0 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("deactivating code format: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrFormatNotFound
	}
	return nil
}

// Next allocates the next sequence value for (tenant, entityType, period)
// as one atomic increment-and-fetch statement. Concurrent callers on the
// same key each get a distinct, strictly increasing value; there is no
// separate read-then-write window to lose an update in.
func (s *Store) Next(ctx context.Context, tenantID string, entityType domain.EntityType, period string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sequence_counters (tenant_id, entity_type, period, last_value)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT (tenant_id, entity_type, period)
		 DO UPDATE SET last_value = last_value + 1
		 RETURNING last_value`,
		tenantID, string(entityType), period,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("incrementing sequence counter: %w", err)
	}
	return value, nil
}

func scanFormats(rows *sql.Rows) ([]domain.CodeFormat, error) {
	var out []domain.CodeFormat
	for rows.Next() {
		var f domain.CodeFormat
		var entityType, createdAt string
		var active int
		if err := rows.Scan(&f.ID, &f.TenantID, &entityType, &f.Template, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning code format: %w", err)
		}
		f.EntityType = domain.EntityType(entityType)
		f.Active = active != 0
		f.CreatedAt = parseTime(createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}
