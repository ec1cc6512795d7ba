package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"dosage-management/internal/config"
	"dosage-management/internal/db"
	"dosage-management/internal/model"
	"dosage-management/internal/storage"
	"dosage-management/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type JobQueue interface {
	EnqueueImportJob(ctx context.Context, job model.ImportJob) error
}

type WorkbookImporter interface {
	ImportWorkbook(ctx context.Context, r io.Reader) (*model.ImportResult, error)
}

type BundleExporter interface {
	Export(ctx context.Context, req model.ExportRequest) (string, error)
}

type Handler struct {
	repo     db.Repository
	queue    JobQueue
	storage  storage.Storage
	importer WorkbookImporter
	exporter BundleExporter
	cfg      *config.Config
	now      func() time.Time
	log      zerolog.Logger
}

func NewHandler(
	repo db.Repository,
	queue JobQueue,
	storage storage.Storage,
	importer WorkbookImporter,
	exporter BundleExporter,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		repo:     repo,
		queue:    queue,
		storage:  storage,
		importer: importer,
		exporter: exporter,
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
}

// UploadImport accepts a workbook as multipart field "file". By default the
// run is queued for the ingestion worker; mode=sync imports it inline.
func (h *Handler) UploadImport(c *gin.Context) {
	ctx := c.Request.Context()

	if h.cfg.Server.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Server.MaxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A workbook must be uploaded in field 'file'"})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != ".xlsx" && ext != ".xlsm" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only .xlsx and .xlsm workbooks are supported"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to open uploaded file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded file could not be read"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded file could not be read"})
		return
	}

	run := &model.ImportRun{
		ID:       uuid.NewString(),
		FileName: filepath.Base(fileHeader.Filename),
		Status:   model.RunStatusQueued,
	}
	log := h.log.With().Str("run_id", run.ID).Str("file_name", run.FileName).Logger()

	if c.Query("mode") == "sync" {
		h.importInline(c, run, data, log)
		return
	}

	run.ObjectKey = storage.ImportKey(h.now(), run.ID, run.FileName)
	if err := h.storage.Upload(ctx, run.ObjectKey, bytes.NewReader(data)); err != nil {
		log.Error().Err(err).Msg("Failed to store workbook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store workbook"})
		return
	}

	if err := h.repo.CreateRun(ctx, run); err != nil {
		log.Error().Err(err).Msg("Failed to create import run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	job := model.ImportJob{RunID: run.ID, ObjectKey: run.ObjectKey, FileName: run.FileName}
	if err := h.queue.EnqueueImportJob(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue import job")
		msg := "import could not be queued"
		if uerr := h.repo.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed, "", &msg); uerr != nil {
			log.Error().Err(uerr).Msg("Failed to mark run as failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue import job"})
		return
	}

	log.Info().Str("object_key", run.ObjectKey).Msg("Import job enqueued")
	c.JSON(http.StatusAccepted, model.ImportResponse{Run: run})
}

func (h *Handler) importInline(c *gin.Context, run *model.ImportRun, data []byte, log zerolog.Logger) {
	ctx := c.Request.Context()

	run.Status = model.RunStatusRunning
	if err := h.repo.CreateRun(ctx, run); err != nil {
		log.Error().Err(err).Msg("Failed to create import run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	result, err := h.importer.ImportWorkbook(ctx, bytes.NewReader(data))
	if err != nil {
		msg := err.Error()
		run.Status, run.ErrorMessage = model.RunStatusFailed, &msg
		if uerr := h.repo.UpdateRunStatus(ctx, run.ID, run.Status, "", run.ErrorMessage); uerr != nil {
			log.Error().Err(uerr).Msg("Failed to mark run as failed")
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg, "run": run})
		return
	}

	run.Status, run.Tables = model.RunStatusSucceeded, strings.Join(result.TableNames(), ",")
	if err := h.repo.UpdateRunStatus(ctx, run.ID, run.Status, run.Tables, nil); err != nil {
		log.Error().Err(err).Msg("Failed to update run status")
	}

	c.JSON(http.StatusOK, model.ImportResponse{Run: run, Result: result})
}

func (h *Handler) GetImport(c *gin.Context) {
	runID := c.Param("id")
	if _, err := uuid.Parse(runID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	run, err := h.repo.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, errors.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Import run not found"})
			return
		}
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get import run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, model.ImportResponse{Run: run})
}

// Export builds the result bundle and streams it back as an attachment.
func (h *Handler) Export(c *gin.Context) {
	var req model.ExportRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.DataType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data_type is required"})
		return
	}

	bundle, err := h.exporter.Export(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Export failed, please contact support!"})
		return
	}

	c.FileAttachment(bundle, filepath.Base(bundle))
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}
