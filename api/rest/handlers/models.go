package handlers

import (
	"context"
	"net/http"
	"time"

	"ml-orchestrator/core/logging"
	"ml-orchestrator/core/models"
	"ml-orchestrator/storage"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ModelStore is the model half of the artifact store
type ModelStore interface {
	GetModelMetadata(ctx context.Context, tenant, id string) (*models.ModelInfo, error)
	ListModels(ctx context.Context, tenant string) ([]*models.ModelInfo, error)
	DeleteModel(ctx context.Context, tenant, id string) (storage.DeleteOutcome, error)
}

// Predictor scores rows against a tenant's model
type Predictor interface {
	Predict(ctx context.Context, tenant, modelID string, rows []map[string]interface{}) ([]interface{}, error)
	Invalidate(tenant, modelID string)
}

// ModelHandler handles prediction and model management requests
type ModelHandler struct {
	store     ModelStore
	predictor Predictor
	now       func() time.Time
}

// NewModelHandler creates a new model handler
func NewModelHandler(store ModelStore, predictor Predictor) *ModelHandler {
	return &ModelHandler{store: store, predictor: predictor, now: time.Now}
}

// PredictionRequest carries the rows to score
type PredictionRequest struct {
	TenantID string                   `json:"tenant_id"`
	ModelID  string                   `json:"model_id"`
	Data     []map[string]interface{} `json:"data"`
}

// PredictionResponse holds one prediction per input row, in input order
type PredictionResponse struct {
	Predictions    []interface{} `json:"predictions"`
	ModelID        string        `json:"model_id"`
	PredictionTime string        `json:"prediction_time"`
}

type modelDeleteResponse struct {
	ModelID string `json:"model_id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Predict handles POST /predict
func (h *ModelHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tenant, err := bodyTenant(r, req.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	predictions, err := h.predictor.Predict(r.Context(), tenant, req.ModelID, req.Data)
	if err != nil {
		writeLookupError(w, r, err, "Model not found")
		return
	}
	writeJSON(w, http.StatusOK, PredictionResponse{
		Predictions:    predictions,
		ModelID:        req.ModelID,
		PredictionTime: h.now().Format(time.RFC3339Nano),
	})
}

// ListModels handles GET /models
func (h *ModelHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.store.ListModels(r.Context(), tenant)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetModel handles GET /models/{model_id}
func (h *ModelHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	info, err := h.store.GetModelMetadata(r.Context(), tenant, mux.Vars(r)["model_id"])
	if err != nil {
		writeLookupError(w, r, err, "Model not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// DeleteModel handles DELETE /models/{model_id}. The cached pipeline is dropped
// whatever the outcome.
func (h *ModelHandler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	tenant, err := tenantOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["model_id"]
	outcome, err := h.store.DeleteModel(r.Context(), tenant, id)
	h.predictor.Invalidate(tenant, id)
	if outcome == storage.OutcomeNotFound {
		writeLookupError(w, r, err, "Model not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("Model removal failed", zap.String("model_id", id), zap.Error(err))
	}
	success, message := deleteResult(outcome, "model")
	writeJSON(w, http.StatusOK, modelDeleteResponse{ModelID: id, Success: success, Message: message})
}
