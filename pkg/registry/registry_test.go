package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegistry = `{
  "version": "1.0.0",
  "lastUpdated": "2026-01-05",
  "activities": [
    {
      "id": "validate-booking-data",
      "taskType": "validate-booking-data",
      "implementationStatus": "implemented",
      "timeout": "10s",
      "inputSchema": {"type": "object", "required": ["contact"]}
    },
    {
      "id": "index-order",
      "taskType": "index-order",
      "implementationStatus": "planned",
      "timeout": "soon"
    }
  ]
}`

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.json")
	require.NoError(t, os.WriteFile(path, []byte(testRegistry), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", reg.Version)
	require.Len(t, reg.Activities, 2)

	a, ok := reg.Find("validate-booking-data")
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, a.TimeoutDuration(time.Minute))
	assert.Equal(t, []interface{}{"contact"}, reg.InputSchema("validate-booking-data")["required"])

	b, ok := reg.Find("index-order")
	require.True(t, ok)
	assert.Equal(t, time.Minute, b.TimeoutDuration(time.Minute))
	assert.Equal(t, StatusPlanned, b.Status)
	assert.Nil(t, reg.InputSchema("index-order"))

	_, ok = reg.Find("unknown")
	assert.False(t, ok)
	assert.Equal(t, []string{"validate-booking-data"}, reg.Implemented())
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, Status("implemented").Valid())
	assert.False(t, Status("done").Valid())
	assert.False(t, Status("").Valid())
}

func TestLoadRegistry_Missing(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `{"activities": [`},
		{"missing task type", `{"activities": [{"id": "a"}]}`},
		{"duplicate task type", `{"activities": [{"id": "a", "taskType": "x"}, {"id": "b", "taskType": "x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestFind_NilRegistry(t *testing.T) {
	var reg *ActivityRegistry
	_, ok := reg.Find("validate-booking-data")
	assert.False(t, ok)
	assert.Nil(t, reg.InputSchema("validate-booking-data"))
}
