package coordinator

import uuid "github.com/hashicorp/go-uuid"

// NewCallerID returns a fresh caller identifier for one protected-work
// execution. Caller adapters that already carry a workflow execution id
// should use that instead; the id must never be shared by two concurrent
// executions.
func NewCallerID() (string, error) {
	return uuid.GenerateUUID()
}
