package models

import "time"

type TableInfo struct {
	Name     string `json:"name"`
	RowCount int64  `json:"rowCount"`
}

// TablePage is one page of rows from an admin-visible table.
type TablePage struct {
	Table    string                   `json:"table"`
	Columns  []string                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"pageSize"`
	Total    int64                    `json:"total"`
}

type AuditEntry struct {
	EventType    string                 `json:"eventType"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   string                 `json:"resourceId"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}
