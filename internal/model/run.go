package model

import "time"

type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// ImportRun tracks one submitted workbook through ingestion.
type ImportRun struct {
	ID           string    `json:"id" db:"id"`
	ObjectKey    string    `json:"object_key" db:"object_key"`
	FileName     string    `json:"file_name" db:"file_name"`
	Status       RunStatus `json:"status" db:"status"`
	ErrorMessage *string   `json:"error_message,omitempty" db:"error_message"`
	Tables       string    `json:"tables,omitempty" db:"table_names"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
