package model

import "time"

type ImportJob struct {
	RunID     string `json:"run_id"`
	ObjectKey string `json:"object_key"`
	FileName  string `json:"file_name"`
}

// ImportResult summarises a finished workbook import.
type ImportResult struct {
	Tables     []TableLoad `json:"tables"`
	DailyRows  int64       `json:"daily_rows"`
	Skipped    []string    `json:"skipped_sheets,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

type TableLoad struct {
	Sheet string `json:"sheet"`
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

func (r *ImportResult) TableNames() []string {
	names := make([]string, len(r.Tables))
	for i, t := range r.Tables {
		names[i] = t.Table
	}
	return names
}

type ExportRequest struct {
	DataType       string    `json:"data_type" form:"data_type"`
	Market         string    `json:"market" form:"market"`
	CalculatedFrom time.Time `json:"calculated_from" form:"calculated_from" time_format:"2006-01-02"`
}

type ImportResponse struct {
	Run    *ImportRun    `json:"run"`
	Result *ImportResult `json:"result,omitempty"`
}
