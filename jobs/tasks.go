package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPurgeExpiredOverrides removes permission overrides past their expiry.
	TaskPurgeExpiredOverrides = "authz:purge_expired_overrides"
	// TaskSessionSweep removes expired session rows from the database.
	TaskSessionSweep = "auth:session_sweep"
)

// PurgeExpiredOverridesPayload bounds a single purge run.
type PurgeExpiredOverridesPayload struct {
	BatchSize int `json:"batch_size"`
}

// NewPurgeExpiredOverridesTask constructs an Asynq task.
func NewPurgeExpiredOverridesTask(batchSize int) (*asynq.Task, error) {
	data, err := json.Marshal(PurgeExpiredOverridesPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurgeExpiredOverrides, data), nil
}

// NewSessionSweepTask constructs an Asynq task.
func NewSessionSweepTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskSessionSweep, nil), nil
}
