package store

import (
	"context"
	"database/sql"
	"time"

	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
)

// AuditLog writes audit_log rows. Writes are best-effort.
type AuditLog struct {
	db     *sql.DB
	logger logger.Logger
}

func NewAuditLog(db *sql.DB, log logger.Logger) *AuditLog {
	return &AuditLog{db: db, logger: log}
}

func (a *AuditLog) Record(ctx context.Context, entry models.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.EventType,
		entry.ResourceType,
		entry.ResourceID,
		mustJSON(entry.Details),
		entry.CreatedAt,
	)
	if err != nil {
		a.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":      err.Error(),
			"eventType":  entry.EventType,
			"resourceId": entry.ResourceID,
		})
	}
}
