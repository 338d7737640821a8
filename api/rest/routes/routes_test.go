package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ml-orchestrator/core/auth"
	"ml-orchestrator/core/executor"
	"ml-orchestrator/core/monitoring"
	"ml-orchestrator/core/prediction"
	"ml-orchestrator/core/repository"
	"ml-orchestrator/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	keyTenant1  = "t1-key"
	keyTenant2  = "t2-key"
	keyReadOnly = "t1-read"
)

// runNow trains enqueued jobs synchronously so a test can observe the finished job
type runNow struct {
	exec *executor.TrainingExecutor
	ids  []string
}

func (r *runNow) Enqueue(jobID string, _ time.Time) {
	r.ids = append(r.ids, jobID)
	if r.exec != nil {
		r.exec.Run(context.Background(), jobID)
	}
}

type testServer struct {
	t      *testing.T
	router *mux.Router
	queue  *runNow
}

func newTestServer(t *testing.T, train bool) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := repository.Open("", filepath.Join(dir, "jobs.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	blobs, err := storage.NewFSBlobStore(filepath.Join(dir, "artifacts"))
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	store := storage.NewArtifactStore(blobs, zap.NewNop())
	jobs := repository.NewJobRepository(db)
	metrics := monitoring.NewMetrics()

	predictor, err := prediction.NewService(store, 4, metrics, zap.NewNop())
	if err != nil {
		t.Fatalf("prediction service: %v", err)
	}

	queue := &runNow{}
	if train {
		queue.exec = executor.NewTrainingExecutor(jobs, store, metrics, zap.NewNop())
	}

	keys := auth.NewKeyStore(map[string]auth.APIKey{
		"t1":      {Key: keyTenant1, TenantID: "tenant_1", Permissions: []string{auth.PermissionRead, auth.PermissionWrite}},
		"t2":      {Key: keyTenant2, TenantID: "tenant_2", Permissions: []string{auth.PermissionRead, auth.PermissionWrite}},
		"t1-read": {Key: keyReadOnly, TenantID: "tenant_1", Permissions: []string{auth.PermissionRead}},
	})

	r := mux.NewRouter()
	SetupRoutes(r, Dependencies{
		DB:             db,
		Jobs:           jobs,
		Events:         repository.NewEventRepository(db),
		Scheduler:      queue,
		Store:          store,
		Predictor:      predictor,
		Keys:           keys,
		Metrics:        metrics,
		Logger:         zap.NewNop(),
		MaxUploadBytes: 1 << 20,
	})
	return &testServer{t: t, router: r, queue: queue}
}

func (s *testServer) do(method, path, key string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(key, filename, content string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		s.t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload-dataset", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", key)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) uploadID(key, content string) string {
	s.t.Helper()
	rec := s.upload(key, "data.csv", content)
	if rec.Code != http.StatusOK {
		s.t.Fatalf("upload: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		DatasetID string `json:"dataset_id"`
	}
	decode(s.t, rec, &resp)
	return resp.DatasetID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}

func expectMessage(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decode(t, rec, &body)
	if body.Message != want {
		t.Errorf("message = %q, want %q", body.Message, want)
	}
}

func trainBody(tenant, datasetID string) map[string]interface{} {
	return map[string]interface{}{
		"tenant_id":  tenant,
		"model_name": "linear",
		"model_type": "regression",
		"dataset_id": datasetID,
		"columns": []map[string]interface{}{
			{"name": "x", "data_type": "numeric"},
			{"name": "y", "data_type": "numeric", "is_target": true},
		},
	}
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodGet, "/", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var banner map[string]string
	decode(t, rec, &banner)
	if banner["message"] != "ML Service is operational" || banner["version"] != "1.0.0" {
		t.Errorf("banner = %v", banner)
	}

	rec = s.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "ml_service_http_requests_total") {
		t.Errorf("metrics exposition lacks request counter")
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodGet, "/models", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
	expectMessage(t, rec, "API key required")

	rec = s.do(http.MethodGet, "/models", "nope", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
	expectMessage(t, rec, "invalid API key")

	rec = s.do(http.MethodGet, "/models", keyReadOnly, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodPost, "/train", keyReadOnly, trainBody("tenant_1", uuid.NewString()))
	expectStatus(t, rec, http.StatusForbidden)
}

func TestReadOnlyKeyScoresAndAnalyzes(t *testing.T) {
	s := newTestServer(t, false)
	id := s.uploadID(keyTenant1, "v\n1\n2\n3\n")

	rec := s.do(http.MethodPost, "/analyze-dataset", keyReadOnly, map[string]interface{}{
		"tenant_id": "tenant_1", "dataset_id": id,
	})
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodPost, "/predict", keyReadOnly, map[string]interface{}{
		"tenant_id": "tenant_1",
		"model_id":  uuid.NewString(),
		"data":      []map[string]interface{}{{"v": 1}},
	})
	expectStatus(t, rec, http.StatusNotFound)
	expectMessage(t, rec, "Model not found")

	rec = s.upload(keyReadOnly, "data.csv", "v\n1\n")
	expectStatus(t, rec, http.StatusForbidden)
	rec = s.do(http.MethodDelete, "/datasets/"+id, keyReadOnly, nil)
	expectStatus(t, rec, http.StatusForbidden)
	rec = s.do(http.MethodGet, "/datasets/"+id, keyReadOnly, nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestSubmitTrainingValidation(t *testing.T) {
	s := newTestServer(t, false)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		status int
	}{
		{"tenant mismatch", func(b map[string]interface{}) { b["tenant_id"] = "tenant_2" }, http.StatusForbidden},
		{"missing tenant", func(b map[string]interface{}) { delete(b, "tenant_id") }, http.StatusBadRequest},
		{"unknown model type", func(b map[string]interface{}) { b["model_type"] = "ranking" }, http.StatusBadRequest},
		{"unknown config key", func(b map[string]interface{}) {
			b["training_config"] = map[string]interface{}{"learning_rate": 0.1}
		}, http.StatusBadRequest},
		{"ill-typed config value", func(b map[string]interface{}) {
			b["training_config"] = map[string]interface{}{"n_estimators": "many"}
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := trainBody("tenant_1", uuid.NewString())
			tt.mutate(body)
			rec := s.do(http.MethodPost, "/train", keyTenant1, body)
			expectStatus(t, rec, tt.status)
		})
	}
	if len(s.queue.ids) != 0 {
		t.Errorf("rejected requests enqueued %d jobs", len(s.queue.ids))
	}
}

func TestTrainingJobTenantIsolation(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodPost, "/train", keyTenant1, trainBody("tenant_1", uuid.NewString()))
	expectStatus(t, rec, http.StatusAccepted)
	var accepted map[string]string
	decode(t, rec, &accepted)
	if accepted["status"] != "queued" || accepted["model_id"] != "pending" {
		t.Errorf("accepted = %v", accepted)
	}
	jobID := accepted["training_job_id"]
	if len(s.queue.ids) != 1 || s.queue.ids[0] != jobID {
		t.Fatalf("enqueued %v, want [%s]", s.queue.ids, jobID)
	}

	rec = s.do(http.MethodGet, "/training-status/"+jobID, keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodGet, "/training-status/"+jobID, keyTenant2, nil)
	expectStatus(t, rec, http.StatusForbidden)
	expectMessage(t, rec, "Access denied to this training job")

	rec = s.do(http.MethodGet, "/training-status/"+jobID+"/events", keyTenant2, nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(http.MethodGet, "/training-status/"+uuid.NewString(), keyTenant1, nil)
	expectStatus(t, rec, http.StatusNotFound)
	expectMessage(t, rec, "Training job not found")

	var listed []map[string]interface{}
	rec = s.do(http.MethodGet, "/training-jobs", keyTenant2, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &listed)
	if len(listed) != 0 {
		t.Errorf("tenant_2 sees %d jobs", len(listed))
	}
}

func TestTrainPredictAndDeleteModel(t *testing.T) {
	s := newTestServer(t, true)
	datasetID := s.uploadID(keyTenant1, "x,y\n1,10\n2,20\n3,30\n")

	rec := s.do(http.MethodPost, "/train", keyTenant1, trainBody("tenant_1", datasetID))
	expectStatus(t, rec, http.StatusAccepted)
	var accepted map[string]string
	decode(t, rec, &accepted)
	jobID := accepted["training_job_id"]

	rec = s.do(http.MethodGet, "/training-status/"+jobID, keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	var status struct {
		Status   string             `json:"status"`
		Progress float64            `json:"progress"`
		ModelID  *string            `json:"model_id"`
		Metrics  map[string]float64 `json:"metrics"`
		EndTime  *time.Time         `json:"end_time"`
	}
	decode(t, rec, &status)
	if status.Status != "completed" || status.Progress != 1.0 || status.ModelID == nil || status.EndTime == nil {
		t.Fatalf("status = %+v", status)
	}
	if _, ok := status.Metrics["r2_score"]; !ok {
		t.Errorf("metrics = %v, want r2_score", status.Metrics)
	}
	modelID := *status.ModelID

	rec = s.do(http.MethodGet, "/training-status/"+jobID+"/events", keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	var events struct {
		Items []struct {
			ToStatus string `json:"to_status"`
		} `json:"items"`
	}
	decode(t, rec, &events)
	var path []string
	for _, e := range events.Items {
		path = append(path, e.ToStatus)
	}
	if strings.Join(path, ",") != "queued,in_progress,completed" {
		t.Errorf("event path = %v", path)
	}

	rec = s.do(http.MethodPost, "/predict", keyTenant1, map[string]interface{}{
		"tenant_id": "tenant_1",
		"model_id":  modelID,
		"data":      []map[string]interface{}{{"x": 2}},
	})
	expectStatus(t, rec, http.StatusOK)
	var predicted struct {
		Predictions []interface{} `json:"predictions"`
		ModelID     string        `json:"model_id"`
	}
	decode(t, rec, &predicted)
	if len(predicted.Predictions) != 1 || predicted.ModelID != modelID {
		t.Fatalf("prediction = %+v", predicted)
	}
	if _, ok := predicted.Predictions[0].(float64); !ok {
		t.Errorf("prediction %v is %T, want a number", predicted.Predictions[0], predicted.Predictions[0])
	}

	rec = s.do(http.MethodPost, "/predict", keyTenant1, map[string]interface{}{
		"tenant_id": "tenant_1",
		"model_id":  modelID,
		"data":      []map[string]interface{}{{"z": 2}},
	})
	expectStatus(t, rec, http.StatusBadRequest)

	// another tenant cannot see the model at all
	rec = s.do(http.MethodGet, "/models/"+modelID, keyTenant2, nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = s.do(http.MethodPost, "/predict", keyTenant2, map[string]interface{}{
		"tenant_id": "tenant_2",
		"model_id":  modelID,
		"data":      []map[string]interface{}{{"x": 2}},
	})
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(http.MethodGet, "/models", keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	var models []map[string]interface{}
	decode(t, rec, &models)
	if len(models) != 1 || models[0]["model_id"] != modelID {
		t.Errorf("models = %v", models)
	}

	rec = s.do(http.MethodDelete, "/models/"+modelID, keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	var deleted map[string]interface{}
	decode(t, rec, &deleted)
	if deleted["success"] != true || deleted["message"] != "Model deleted successfully" {
		t.Errorf("delete = %v", deleted)
	}

	rec = s.do(http.MethodPost, "/predict", keyTenant1, map[string]interface{}{
		"tenant_id": "tenant_1",
		"model_id":  modelID,
		"data":      []map[string]interface{}{{"x": 2}},
	})
	expectStatus(t, rec, http.StatusNotFound)
	expectMessage(t, rec, "Model not found")

	rec = s.do(http.MethodDelete, "/models/"+modelID, keyTenant1, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestTrainingConfigFractionSurvivesToModelMetadata(t *testing.T) {
	s := newTestServer(t, true)
	datasetID := s.uploadID(keyTenant1, "x,y\n1,10\n2,20\n3,30\n")

	body := `{"tenant_id": "tenant_1", "model_name": "linear", "model_type": "regression",
		"dataset_id": "` + datasetID + `",
		"columns": [{"name": "x", "data_type": "numeric"}, {"name": "y", "data_type": "numeric", "is_target": true}],
		"training_config": {"n_estimators": 5, "max_features": 1.0}}`
	rec := s.do(http.MethodPost, "/train", keyTenant1, json.RawMessage(body))
	expectStatus(t, rec, http.StatusAccepted)
	var accepted map[string]string
	decode(t, rec, &accepted)

	rec = s.do(http.MethodGet, "/training-status/"+accepted["training_job_id"], keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	var status struct {
		Status  string  `json:"status"`
		ModelID *string `json:"model_id"`
	}
	decode(t, rec, &status)
	if status.Status != "completed" || status.ModelID == nil {
		t.Fatalf("status = %+v", status)
	}

	rec = s.do(http.MethodGet, "/models/"+*status.ModelID, keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	var info struct {
		TrainingConfig map[string]json.RawMessage `json:"training_config"`
	}
	decode(t, rec, &info)
	if got := string(info.TrainingConfig["max_features"]); got != "1.0" {
		t.Errorf("max_features = %s, want 1.0", got)
	}
}

func TestTrainingOnMissingDatasetFailsAsynchronously(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(http.MethodPost, "/train", keyTenant1, trainBody("tenant_1", uuid.NewString()))
	expectStatus(t, rec, http.StatusAccepted)
	var accepted map[string]string
	decode(t, rec, &accepted)

	rec = s.do(http.MethodGet, "/training-status/"+accepted["training_job_id"], keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	var status struct {
		Status       string  `json:"status"`
		ErrorMessage *string `json:"error_message"`
	}
	decode(t, rec, &status)
	if status.Status != "failed" || status.ErrorMessage == nil || !strings.Contains(*status.ErrorMessage, "not found") {
		t.Errorf("status = %+v", status)
	}
}

func TestRandomModelIDIsNotFound(t *testing.T) {
	s := newTestServer(t, false)

	for _, key := range []string{keyTenant1, keyTenant2} {
		rec := s.do(http.MethodGet, "/models/"+uuid.NewString(), key, nil)
		expectStatus(t, rec, http.StatusNotFound)
		expectMessage(t, rec, "Model not found")
	}

	rec := s.do(http.MethodPost, "/predict", keyTenant1, map[string]interface{}{
		"tenant_id": "tenant_1",
		"model_id":  uuid.NewString(),
		"data":      []map[string]interface{}{{"x": 1}},
	})
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(http.MethodPost, "/predict", keyTenant2, map[string]interface{}{
		"tenant_id": "tenant_2",
		"model_id":  uuid.NewString(),
		"data":      []map[string]interface{}{},
	})
	expectStatus(t, rec, http.StatusNotFound)
	expectMessage(t, rec, "Model not found")
}

func TestDatasetLifecycle(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.upload(keyTenant1, "data.csv", "x,label\n1,a\n2,b\n3,a\n4,c\n100,a\n6,b\n")
	expectStatus(t, rec, http.StatusOK)
	var uploaded struct {
		DatasetID   string                   `json:"dataset_id"`
		TenantID    string                   `json:"tenant_id"`
		Rows        int                      `json:"rows"`
		Columns     int                      `json:"columns"`
		Preview     []map[string]interface{} `json:"preview"`
		ColumnStats map[string]interface{}   `json:"column_stats"`
	}
	decode(t, rec, &uploaded)
	if uploaded.TenantID != "tenant_1" || uploaded.Rows != 6 || uploaded.Columns != 2 {
		t.Errorf("upload = %+v", uploaded)
	}
	if len(uploaded.Preview) != 5 || len(uploaded.ColumnStats) != 2 {
		t.Errorf("preview rows %d, column stats %d", len(uploaded.Preview), len(uploaded.ColumnStats))
	}
	id := uploaded.DatasetID

	rec = s.do(http.MethodGet, "/datasets/"+id, keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = s.do(http.MethodGet, "/datasets/"+id, keyTenant2, nil)
	expectStatus(t, rec, http.StatusNotFound)
	expectMessage(t, rec, "Dataset not found")

	rec = s.do(http.MethodGet, "/datasets", keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	var listed []map[string]interface{}
	decode(t, rec, &listed)
	if len(listed) != 1 {
		t.Errorf("listed %d datasets, want 1", len(listed))
	}

	rec = s.do(http.MethodGet, "/datasets/"+id+"/columns/label/values?limit=2", keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	var values struct {
		UniqueValues []string `json:"unique_values"`
		TotalUnique  int      `json:"total_unique"`
		Truncated    bool     `json:"truncated"`
	}
	decode(t, rec, &values)
	if strings.Join(values.UniqueValues, ",") != "a,b" || values.TotalUnique != 3 || !values.Truncated {
		t.Errorf("values = %+v", values)
	}

	rec = s.do(http.MethodGet, "/datasets/"+id+"/columns/label/values?limit=zero", keyTenant1, nil)
	expectStatus(t, rec, http.StatusBadRequest)
	rec = s.do(http.MethodGet, "/datasets/"+id+"/columns/missing/values", keyTenant1, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(http.MethodDelete, "/datasets/"+id, keyTenant2, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(http.MethodDelete, "/datasets/"+id, keyTenant1, nil)
	expectStatus(t, rec, http.StatusOK)
	var deleted map[string]interface{}
	decode(t, rec, &deleted)
	if deleted["success"] != true || deleted["dataset_id"] != id {
		t.Errorf("delete = %v", deleted)
	}

	rec = s.do(http.MethodGet, "/datasets/"+id, keyTenant1, nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = s.do(http.MethodPost, "/analyze-dataset", keyTenant1, map[string]interface{}{
		"tenant_id": "tenant_1", "dataset_id": id,
	})
	expectStatus(t, rec, http.StatusNotFound)
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.upload(keyTenant1, "data.json", `{"x": 1}`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAnalyzeDataset(t *testing.T) {
	s := newTestServer(t, false)
	id := s.uploadID(keyTenant1, "v\n1\n2\n3\n4\n100\n")

	analyze := func(ops interface{}) map[string]json.RawMessage {
		t.Helper()
		body := map[string]interface{}{"tenant_id": "tenant_1", "dataset_id": id}
		if ops != nil {
			body["operations"] = ops
		}
		rec := s.do(http.MethodPost, "/analyze-dataset", keyTenant1, body)
		expectStatus(t, rec, http.StatusOK)
		var out map[string]json.RawMessage
		decode(t, rec, &out)
		return out
	}
	present := func(out map[string]json.RawMessage) []string {
		var names []string
		for _, field := range []string{"summary", "correlation", "missing_values", "outliers", "distributions"} {
			if raw, ok := out[field]; ok && string(raw) != "null" {
				names = append(names, field)
			}
		}
		return names
	}

	if got := present(analyze([]string{})); len(got) != 0 {
		t.Errorf("empty operations produced %v", got)
	}
	if got := present(analyze([]string{"correlation"})); strings.Join(got, ",") != "correlation" {
		t.Errorf("correlation only produced %v", got)
	}
	if got := present(analyze(nil)); strings.Join(got, ",") != "summary,correlation,missing_values" {
		t.Errorf("default operations produced %v", got)
	}

	var outliers map[string][]int
	if err := json.Unmarshal(analyze([]string{"outliers"})["outliers"], &outliers); err != nil {
		t.Fatalf("decode outliers: %v", err)
	}
	if len(outliers["v"]) != 1 || outliers["v"][0] != 4 {
		t.Errorf("outliers = %v, want only index 4", outliers)
	}

	rec := s.do(http.MethodPost, "/analyze-dataset", keyTenant1, map[string]interface{}{
		"tenant_id": "tenant_2", "dataset_id": id,
	})
	expectStatus(t, rec, http.StatusForbidden)
	expectMessage(t, rec, "Tenant ID mismatch")
}
