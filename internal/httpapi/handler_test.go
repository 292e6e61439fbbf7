package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/api"
	"github.com/fieldexpense/claimsync/internal/connectivity"
	"github.com/fieldexpense/claimsync/internal/draft"
	"github.com/fieldexpense/claimsync/internal/model"
	"github.com/fieldexpense/claimsync/internal/orchestrator"
	"github.com/fieldexpense/claimsync/internal/pending"
	"github.com/fieldexpense/claimsync/internal/refdata"
	"github.com/fieldexpense/claimsync/internal/storage"
	"github.com/fieldexpense/claimsync/internal/syncer"
)

// fakeBackend stands in for the reimbursement server.
type fakeBackend struct {
	categories []model.Category
	clients    []model.Client
	createErr  error
	created    []model.ReimbursementPayload
}

func (f *fakeBackend) ListCategories(context.Context) ([]model.Category, error) {
	return f.categories, nil
}

func (f *fakeBackend) ListClients(context.Context, string) ([]model.Client, error) {
	return f.clients, nil
}

func (f *fakeBackend) CreateClient(_ context.Context, name string) (*model.Client, error) {
	return &model.Client{ID: 77, Name: name}, nil
}

func (f *fakeBackend) CreateReimbursement(_ context.Context, payload model.ReimbursementPayload, _, _ string) (*model.Reimbursement, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, payload)
	return &model.Reimbursement{ID: int64(len(f.created)), ClientName: payload.ClientName}, nil
}

type staticProber struct{ state connectivity.State }

func (p staticProber) Probe(context.Context) (connectivity.State, error) { return p.state, nil }

type env struct {
	router  *gin.Engine
	monitor *connectivity.Monitor
	queue   *pending.Queue
	backend *fakeBackend
	drafts  *draft.Capture
	store   *storage.MemoryStore
}

func newEnv(t *testing.T, online bool) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	store := storage.NewMemoryStore()
	backend := &fakeBackend{
		categories: []model.Category{{ID: 1, Name: "Transport"}},
		clients:    []model.Client{{ID: 1, Name: "Budi"}},
	}

	monitor := connectivity.NewMonitor(log)
	kind := connectivity.KindNone
	if online {
		kind = connectivity.KindWiFi
	}
	monitor.SetState(connectivity.State{Online: online, Kind: kind})

	queue := pending.NewQueue(store, log)
	categories := refdata.NewCategoryCache(store, backend, monitor, 0, log)
	clients := refdata.NewClientCache(store, backend, monitor, 0, log)
	engine := syncer.NewEngine(queue, backend, monitor, syncer.OSFileSystem{}, log)
	submitter := syncer.NewSubmitter(backend, queue, monitor, log)
	drafts := draft.NewCapture(store, time.Hour, log)
	orch := orchestrator.New(orchestrator.Config{RefreshInterval: time.Hour},
		monitor, staticProber{state: connectivity.State{Online: online, Kind: kind}},
		categories, clients, queue, engine, drafts, log)

	router := gin.New()
	NewHandler(monitor, queue, engine, submitter, orch, categories, clients, drafts, store, log).Register(router)

	return &env{router: router, monitor: monitor, queue: queue, backend: backend, drafts: drafts, store: store}
}

func (e *env) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func validSubmission() map[string]any {
	return map[string]any{
		"client_name":      "Budi",
		"category_id":      1,
		"amount":           75000,
		"transaction_date": "2025-11-03",
		"note":             "taxi",
	}
}

func TestStatusReportsConnectivityAndQueue(t *testing.T) {
	e := newEnv(t, false)

	_, err := e.queue.Enqueue(context.Background(), model.ReimbursementPayload{
		ClientName: "Budi", CategoryID: 1, Amount: 100, TransactionDate: "2025-11-03",
	}, "")
	require.NoError(t, err)

	w := e.request(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["online"])
	assert.Equal(t, "none", body["network_kind"])
	assert.Equal(t, float64(1), body["pending_count"])
	assert.Equal(t, false, body["has_draft"])
}

func TestSubmitOnlineCreatesDirectly(t *testing.T) {
	e := newEnv(t, true)

	w := e.request(t, http.MethodPost, "/api/v1/submissions", validSubmission())
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["queued"])
	require.Len(t, e.backend.created, 1)
	assert.Equal(t, "Budi", e.backend.created[0].ClientName)
	assert.Zero(t, e.queue.Count())
}

func TestSubmitOfflineQueues(t *testing.T) {
	e := newEnv(t, false)

	w := e.request(t, http.MethodPost, "/api/v1/submissions", validSubmission())
	require.Equal(t, http.StatusAccepted, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["queued"])
	assert.NotEmpty(t, body["local_id"])
	assert.Equal(t, float64(1), body["pending_count"])
	assert.Empty(t, e.backend.created)
}

func TestSubmitValidationErrorSurfacesFields(t *testing.T) {
	e := newEnv(t, true)
	e.backend.createErr = &api.Error{
		StatusCode: http.StatusUnprocessableEntity,
		Message:    "Jumlah tidak valid",
		Fields:     map[string]string{"amount": "must be positive"},
	}

	w := e.request(t, http.MethodPost, "/api/v1/submissions", validSubmission())
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := decode(t, w)
	assert.Equal(t, "Jumlah tidak valid", body["error"])
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "must be positive", fields["amount"])

	// Deterministic rejections are not retried later.
	assert.Zero(t, e.queue.Count())
}

func TestSubmitTransientErrorIsBadGateway(t *testing.T) {
	e := newEnv(t, true)
	e.backend.createErr = &api.Error{StatusCode: http.StatusInternalServerError, Message: "boom"}

	w := e.request(t, http.MethodPost, "/api/v1/submissions", validSubmission())
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	e := newEnv(t, true)

	w := e.request(t, http.MethodPost, "/api/v1/submissions", map[string]any{"note": "no amount"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPendingListAndDiscard(t *testing.T) {
	e := newEnv(t, false)

	res := e.request(t, http.MethodPost, "/api/v1/submissions", validSubmission())
	require.Equal(t, http.StatusAccepted, res.Code)
	localID, _ := decode(t, res)["local_id"].(string)
	require.NotEmpty(t, localID)

	w := e.request(t, http.MethodGet, "/api/v1/submissions/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	subs, ok := decode(t, w)["submissions"].([]any)
	require.True(t, ok)
	assert.Len(t, subs, 1)

	w = e.request(t, http.MethodDelete, "/api/v1/submissions/pending/"+localID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["pending_count"])
	assert.Zero(t, e.queue.Count())
}

func TestNetworkPushUpdatesMonitor(t *testing.T) {
	e := newEnv(t, false)

	w := e.request(t, http.MethodPost, "/api/v1/network", map[string]any{"online": true, "kind": "cellular"})
	require.Equal(t, http.StatusOK, w.Code)

	state, known := e.monitor.CurrentState()
	require.True(t, known)
	assert.True(t, state.Online)
	assert.Equal(t, connectivity.KindCellular, state.Kind)
}

func TestCategoriesServedFromBackend(t *testing.T) {
	e := newEnv(t, true)

	w := e.request(t, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)

	cats, ok := decode(t, w)["categories"].([]any)
	require.True(t, ok)
	require.Len(t, cats, 1)
}

func TestCategoriesOfflineWithEmptyCacheIs503(t *testing.T) {
	e := newEnv(t, false)

	w := e.request(t, http.MethodGet, "/api/v1/categories", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestClientsSearchOffline(t *testing.T) {
	e := newEnv(t, false)
	require.NoError(t, e.store.Set(context.Background(), storage.KeyCachedClients,
		[]model.Client{{ID: 1, Name: "Budi"}, {ID: 2, Name: "Andi"}}))

	w := e.request(t, http.MethodGet, "/api/v1/clients?search=bud", nil)
	require.Equal(t, http.StatusOK, w.Code)

	clients, ok := decode(t, w)["clients"].([]any)
	require.True(t, ok)
	require.Len(t, clients, 1)
}

func TestCreateClientOfflineReturnsPlaceholder(t *testing.T) {
	e := newEnv(t, false)

	w := e.request(t, http.MethodPost, "/api/v1/clients", map[string]any{"name": "PT Offline"})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["local_only"])
	client, ok := body["client"].(map[string]any)
	require.True(t, ok)
	assert.Negative(t, client["id"].(float64))
}

func TestDraftLifecycle(t *testing.T) {
	e := newEnv(t, false)

	w := e.request(t, http.MethodGet, "/api/v1/draft", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	entry := map[string]any{
		"step": 2, "date": "2025-11-03", "client": "Budi", "amount": "150000",
	}
	w = e.request(t, http.MethodPut, "/api/v1/draft?immediate=true", entry)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.request(t, http.MethodGet, "/api/v1/draft", nil)
	require.Equal(t, http.StatusOK, w.Code)
	draftBody, ok := decode(t, w)["draft"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), draftBody["step"])
	assert.Equal(t, "Budi", draftBody["client"])

	w = e.request(t, http.MethodDelete, "/api/v1/draft", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.request(t, http.MethodGet, "/api/v1/draft", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearOfflineDataWipesEverything(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)

	_, err := e.queue.Enqueue(ctx, model.ReimbursementPayload{
		ClientName: "Budi", CategoryID: 1, Amount: 100, TransactionDate: "2025-11-03",
	}, "")
	require.NoError(t, err)
	require.NoError(t, e.drafts.Save(ctx, model.DraftEntry{Step: 1, Client: "Budi"}))

	w := e.request(t, http.MethodDelete, "/api/v1/offline-data", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Zero(t, e.queue.Count())
	assert.Zero(t, e.store.Len())
}
