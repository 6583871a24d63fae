package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"travel-concierge/internal/models"
)

// AdminTables are the tables the admin API may read. Anything else is refused.
var AdminTables = []string{
	"orders",
	"schengen_applications",
	"trip_profiles",
	"chat_conversations",
	"chat_messages",
	"audit_log",
}

const (
	DefaultPageSize = 25
	MaxPageSize     = 200
	MaxExportRows   = 10000
)

type AdminStore struct {
	db *sql.DB
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{db: db}
}

func IsAdminTable(name string) bool {
	for _, t := range AdminTables {
		if t == name {
			return true
		}
	}
	return false
}

func (s *AdminStore) ListTables(ctx context.Context) ([]models.TableInfo, error) {
	out := make([]models.TableInfo, 0, len(AdminTables))
	for _, name := range AdminTables {
		var count int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+pq.QuoteIdentifier(name)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		out = append(out, models.TableInfo{Name: name, RowCount: count})
	}
	return out, nil
}

// Rows returns one page (1-based) of table, newest rows first.
func (s *AdminStore) Rows(ctx context.Context, table string, page, pageSize int) (*models.TablePage, error) {
	if !IsAdminTable(table) {
		return nil, fmt.Errorf("%w: table %s", ErrNotFound, table)
	}
	page, pageSize = normalizePage(page, pageSize)
	quoted := pq.QuoteIdentifier(table)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoted).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}

	columns, rows, err := s.query(ctx,
		`SELECT * FROM `+quoted+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	return &models.TablePage{
		Table:    table,
		Columns:  columns,
		Rows:     rows,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// Export returns up to MaxExportRows rows of table for download.
func (s *AdminStore) Export(ctx context.Context, table string) ([]string, []map[string]interface{}, error) {
	if !IsAdminTable(table) {
		return nil, nil, fmt.Errorf("%w: table %s", ErrNotFound, table)
	}
	return s.query(ctx,
		`SELECT * FROM `+pq.QuoteIdentifier(table)+` ORDER BY created_at DESC LIMIT $1`,
		MaxExportRows)
}

func (s *AdminStore) query(ctx context.Context, q string, args ...interface{}) ([]string, []map[string]interface{}, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}

	out := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = displayValue(values[i])
		}
		out = append(out, row)
	}
	return columns, out, rows.Err()
}

// displayValue turns driver values into JSON-friendly ones. JSONB columns
// arrive as bytes and are passed through as raw JSON when they parse.
func displayValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		if json.Valid(val) {
			return json.RawMessage(append([]byte(nil), val...))
		}
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return val
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
