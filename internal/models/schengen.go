package models

import (
	"encoding/json"
	"time"
)

// SchengenApplication is an auto-saved Schengen visa form snapshot.
type SchengenApplication struct {
	ID          string          `json:"id"`
	Version     int64           `json:"version"`
	CurrentStep int             `json:"currentStep"`
	FormData    json.RawMessage `json:"formData"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
