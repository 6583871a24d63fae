// pkg/registry/schema.go
package registry

// Status tracks how far an activity's worker has come.
type Status string

const (
	StatusPlanned     Status = "planned"
	StatusInProgress  Status = "in-progress"
	StatusImplemented Status = "implemented"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusImplemented:
		return true
	}
	return false
}

// ActivityRegistry is the decoded configs/activities.json: one entry per Zeebe
// task type the worker-manager can serve.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one service task. Timeout is a Go duration string and
// takes precedence over the worker config; InputSchema is enforced on the job
// variables before the handler runs.
type Activity struct {
	ID          string `json:"id"`
	TaskType    string `json:"taskType"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Version     string `json:"version"`
	Status      Status `json:"implementationStatus"`

	Timeout string `json:"timeout"`
	Retries int    `json:"retries"`

	InputSchema  map[string]interface{} `json:"inputSchema,omitempty"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`

	// ErrorCodes are the BPMN error codes the task may throw.
	ErrorCodes []string `json:"errorCodes"`
	// Workflows are the BPMN process ids that call the task.
	Workflows []string `json:"workflows"`
	Tags      []string `json:"tags,omitempty"`
}
