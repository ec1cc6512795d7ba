package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Storage keeps submitted workbooks and export bundles.
type Storage interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, data io.Reader) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ImportKey places a submitted workbook under imports/YYYY/MM/DD/<run id><ext>.
func ImportKey(at time.Time, runID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = ".xlsx"
	}
	return fmt.Sprintf("imports/%s/%s%s", at.Format("2006/01/02"), runID, ext)
}

// ExportKey places an export bundle under exports/YYYY/MM/DD/<name>.
func ExportKey(at time.Time, name string) string {
	return fmt.Sprintf("exports/%s/%s", at.Format("2006/01/02"), path.Base(name))
}
