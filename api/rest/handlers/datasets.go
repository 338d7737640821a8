package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"ml-orchestrator/core/analyzer"
	"ml-orchestrator/core/frame"
	"ml-orchestrator/core/logging"
	"ml-orchestrator/core/models"
	"ml-orchestrator/core/monitoring"
	"ml-orchestrator/storage"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const previewRows = 5

// DatasetStore is the dataset half of the artifact store
type DatasetStore interface {
	PutDataset(ctx context.Context, tenant string, data []byte, filename string) (*models.DatasetMetadata, *frame.Frame, error)
	GetDataset(ctx context.Context, tenant, id string) (*frame.Frame, error)
	GetDatasetMetadata(ctx context.Context, tenant, id string) (*models.DatasetMetadata, error)
	ListDatasets(ctx context.Context, tenant string) ([]*models.DatasetMetadata, error)
	DeleteDataset(ctx context.Context, tenant, id string) (storage.DeleteOutcome, error)
}

// DatasetHandler handles dataset upload, inspection and analysis
type DatasetHandler struct {
	store     DatasetStore
	maxUpload int64
	metrics   *monitoring.Metrics
}

// NewDatasetHandler creates a new dataset handler. Uploads larger than maxUpload
// bytes are rejected.
func NewDatasetHandler(store DatasetStore, maxUpload int64, metrics *monitoring.Metrics) *DatasetHandler {
	return &DatasetHandler{store: store, maxUpload: maxUpload, metrics: metrics}
}

// DatasetUploadResponse describes a freshly stored dataset
type DatasetUploadResponse struct {
	DatasetID   string                        `json:"dataset_id"`
	TenantID    string                        `json:"tenant_id"`
	Filename    string                        `json:"filename"`
	Rows        int                           `json:"rows"`
	Columns     int                           `json:"columns"`
	Preview     []map[string]interface{}      `json:"preview"`
	ColumnStats map[string]models.ColumnStats `json:"column_stats"`
}

// AnalyzeRequest selects the analyses to run on a stored dataset
type AnalyzeRequest struct {
	TenantID   string   `json:"tenant_id"`
	DatasetID  string   `json:"dataset_id"`
	Operations []string `json:"operations"`
}

type datasetDeleteResponse struct {
	DatasetID string `json:"dataset_id"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

// UploadDataset handles POST /upload-dataset
func (h *DatasetHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, models.Invalid("file", "exceeds the %d byte upload limit", tooLarge.Limit))
			return
		}
		writeError(w, r, models.Invalid("file", "multipart field is required: %v", err))
		return
	}
	defer file.Close()

	format, err := frame.DetectFormat(header.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, models.Invalid("file", "read upload: %v", err))
		return
	}

	meta, f, err := h.store.PutDataset(r.Context(), tenant, data, header.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.RecordUpload(string(format))

	logging.FromContext(r.Context()).Info("Dataset uploaded",
		zap.String("dataset_id", meta.DatasetID),
		zap.String("filename", meta.Filename),
		zap.Int("rows", meta.RowCount),
	)

	writeJSON(w, http.StatusOK, DatasetUploadResponse{
		DatasetID:   meta.DatasetID,
		TenantID:    tenant,
		Filename:    meta.Filename,
		Rows:        meta.RowCount,
		Columns:     meta.ColumnCount,
		Preview:     f.Head(previewRows),
		ColumnStats: meta.ColumnStats,
	})
}

// AnalyzeDataset handles POST /analyze-dataset
func (h *DatasetHandler) AnalyzeDataset(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tenant, err := bodyTenant(r, req.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	f, err := h.store.GetDataset(r.Context(), tenant, req.DatasetID)
	if err != nil {
		writeLookupError(w, r, err, "Dataset not found")
		return
	}

	// an explicit empty list runs nothing; only an absent one falls back to the defaults
	ops := req.Operations
	if ops == nil {
		ops = analyzer.DefaultOperations
	}
	writeJSON(w, http.StatusOK, analyzer.Analyze(f, ops))
}

// ListDatasets handles GET /datasets
func (h *DatasetHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	datasets, err := h.store.ListDatasets(r.Context(), tenant)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasets)
}

// GetDataset handles GET /datasets/{dataset_id}
func (h *DatasetHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	meta, err := h.store.GetDatasetMetadata(r.Context(), tenant, mux.Vars(r)["dataset_id"])
	if err != nil {
		writeLookupError(w, r, err, "Dataset not found")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// GetColumnValues handles GET /datasets/{dataset_id}/columns/{column}/values
func (h *DatasetHandler) GetColumnValues(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := analyzer.DefaultValuesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, models.Invalid("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	vars := mux.Vars(r)
	f, err := h.store.GetDataset(r.Context(), tenant, vars["dataset_id"])
	if err != nil {
		writeLookupError(w, r, err, "Dataset not found")
		return
	}
	values, err := analyzer.ColumnValues(f, vars["column"], limit)
	if err != nil {
		writeLookupError(w, r, err, fmt.Sprintf("Column %s not found in dataset", vars["column"]))
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// DeleteDataset handles DELETE /datasets/{dataset_id}
func (h *DatasetHandler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["dataset_id"]
	outcome, err := h.store.DeleteDataset(r.Context(), tenant, id)
	if outcome == storage.OutcomeNotFound {
		writeLookupError(w, r, err, "Dataset not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("Dataset removal failed", zap.String("dataset_id", id), zap.Error(err))
	}
	success, message := deleteResult(outcome, "dataset")
	writeJSON(w, http.StatusOK, datasetDeleteResponse{DatasetID: id, Success: success, Message: message})
}
