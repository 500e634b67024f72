package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedule-sync-backend/config"
	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/dataaccess"
	"schedule-sync-backend/internal/db"
	"schedule-sync-backend/internal/localstore"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/monitor"
	"schedule-sync-backend/internal/mw"
	"schedule-sync-backend/internal/roster"
	"schedule-sync-backend/internal/syncqueue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeStore struct {
	mu        sync.Mutex
	loads     int
	WriteFunc func(m dataaccess.Mutation) error
}

func (f *fakeStore) LoadAll(ctx context.Context) (*dataaccess.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return &dataaccess.Dataset{}, nil
}

func (f *fakeStore) Write(ctx context.Context, m dataaccess.Mutation) error {
	if f.WriteFunc != nil {
		return f.WriteFunc(m)
	}
	return nil
}

type fakeSync struct {
	status      dataaccess.Status
	restores    int
	DrainFunc   func(ctx context.Context) (syncqueue.Result, error)
	RestoreFunc func(replace func() error) error
}

func (f *fakeSync) Status() dataaccess.Status { return f.status }

func (f *fakeSync) RestoreLocal(replace func() error) error {
	f.restores++
	if f.RestoreFunc != nil {
		return f.RestoreFunc(replace)
	}
	return replace()
}

func (f *fakeSync) Drain(ctx context.Context) (syncqueue.Result, error) {
	if f.DrainFunc != nil {
		return f.DrainFunc(ctx)
	}
	return syncqueue.Result{}, nil
}

type fakeConn struct {
	status monitor.Status
	hints  []bool
}

func (f *fakeConn) Status() monitor.Status { return f.status }
func (f *fakeConn) LastProbe() time.Time   { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
func (f *fakeConn) Hint(online bool)       { f.hints = append(f.hints, online) }

type testServer struct {
	router *gin.Engine
	local  *localstore.Store
	store  *fakeStore
	sync   *fakeSync
	conn   *fakeConn
}

func newTestServer(t *testing.T, push *webpush.Options) *testServer {
	t.Helper()
	log := quietLogger()

	gdb, err := db.InitLocal(&config.LocalConfig{Path: filepath.Join(t.TempDir(), "local.db")})
	require.NoError(t, err)

	store := &fakeStore{}
	svc := roster.New(store, nil, roster.Options{UserID: "manager"}, log)
	require.NoError(t, svc.Load(context.Background()))

	ts := &testServer{
		local: localstore.New(gdb, "1.0", time.Minute, log),
		store: store,
		sync:  &fakeSync{status: dataaccess.Status{State: dataaccess.StateReady, Connected: true}},
		conn:  &fakeConn{status: monitor.Online},
	}
	h := NewHandler(svc, ts.sync, ts.conn, ts.local, gdb, push, log)
	cfg := config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000}
	ts.router = NewRouter(cfg, h, mw.NewResponseCache(time.Minute))
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) createEmployee(t *testing.T, name string) model.Employee {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/employees", gin.H{"name": name, "type": "FT"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.Employee](t, w)
}

func TestEmployees_CreateListArchive(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := ts.createEmployee(t, "Alice")

	w := ts.do(t, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]model.Employee](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, alice.ID, list[0].ID)

	w = ts.do(t, http.MethodPut, "/api/employees/"+alice.ID, gin.H{"name": "Alicia", "type": "PT"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alicia", decode[model.Employee](t, w).Name)

	w = ts.do(t, http.MethodDelete, "/api/employees/"+alice.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/employees", nil)
	assert.Empty(t, decode[[]model.Employee](t, w))
	w = ts.do(t, http.MethodGet, "/api/employees?include_archived=true", nil)
	assert.Len(t, decode[[]model.Employee](t, w), 1)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createEmployee(t, "Alice")

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"validation", http.MethodPost, "/api/employees", gin.H{"name": ""}, http.StatusBadRequest, apperror.CodeValidation},
		{"malformed body", http.MethodPost, "/api/employees", "not an object", http.StatusBadRequest, apperror.CodeValidation},
		{"conflict", http.MethodPost, "/api/employees", gin.H{"name": "alice"}, http.StatusConflict, apperror.CodeConflict},
		{"not found", http.MethodPut, "/api/employees/ghost", gin.H{"name": "Ghost"}, http.StatusNotFound, apperror.CodeNotFound},
		{"bad month", http.MethodGet, "/api/schedule?month=March", nil, http.StatusBadRequest, apperror.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decode[errorResponse](t, w).Code)
		})
	}
}

func TestWriteFailuresSurface(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.store.WriteFunc = func(dataaccess.Mutation) error {
		return apperror.RemoteRejected(409, `duplicate key value violates unique constraint`)
	}
	w := ts.do(t, http.MethodPost, "/api/employees", gin.H{"name": "Alice"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, apperror.CodeRemoteRejected, resp.Code)
	assert.Contains(t, resp.Details, "duplicate key")

	ts.store.WriteFunc = func(dataaccess.Mutation) error {
		return apperror.StorageFailure(errors.New("disk full"), "employees")
	}
	w = ts.do(t, http.MethodPost, "/api/employees", gin.H{"name": "Bob"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeStorageFailure, decode[errorResponse](t, w).Code)
}

func TestPTOFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	bob := ts.createEmployee(t, "Bob")

	w := ts.do(t, http.MethodPut, "/api/schedule/"+bob.ID+"/2024-03-15", gin.H{"shift": "9a-5p"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/pto", gin.H{"employeeId": bob.ID, "startDate": "2024-03-15", "endDate": "2024-03-17"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	req := decode[model.PTORequest](t, w)

	w = ts.do(t, http.MethodGet, "/api/pto?status=pending", nil)
	assert.Len(t, decode[[]model.PTORequest](t, w), 1)

	w = ts.do(t, http.MethodPost, "/api/pto/"+req.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.PTOStatusApproved, decode[model.PTORequest](t, w).Status)

	w = ts.do(t, http.MethodGet, "/api/schedule?month=2024-03", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[roster.MonthView](t, w)
	for _, d := range []string{"2024-03-15", "2024-03-16", "2024-03-17"} {
		assert.Equal(t, model.ShiftPTO, view.Schedule.Get(bob.ID, d))
	}
	assert.Equal(t, "9a-5p", view.Schedule.Get(model.OpenShiftsID, "2024-03-15"))

	w = ts.do(t, http.MethodPost, "/api/pto/"+req.ID+"/deny", gin.H{"reason": "too late"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeInvalidState, decode[errorResponse](t, w).Code)
}

func TestDatasetCachePurgedOnWrite(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/dataset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[roster.WorkingSet](t, w).Employees)

	w = ts.do(t, http.MethodGet, "/api/dataset", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	ts.createEmployee(t, "Alice")

	w = ts.do(t, http.MethodGet, "/api/dataset", nil)
	assert.Empty(t, w.Header().Get("X-Cache"))
	assert.Len(t, decode[roster.WorkingSet](t, w).Employees, 1)
}

func TestStatusAndHint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.sync.status.Pending = 2

	w := ts.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, monitor.Online, resp.Connectivity)
	assert.Equal(t, 2, resp.Sync.Pending)
	assert.NotNil(t, resp.LastProbe)
	require.NotNil(t, resp.Local)
	assert.Zero(t, resp.Local.Entries)

	require.NoError(t, ts.local.Save("employees", []model.Employee{}))
	w = ts.do(t, http.MethodGet, "/api/status", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Local.Entries)
	assert.Positive(t, resp.Local.Bytes)

	w = ts.do(t, http.MethodPost, "/api/connectivity/hint", gin.H{"online": false})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []bool{false}, ts.conn.hints)

	w = ts.do(t, http.MethodPost, "/api/connectivity/hint", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSync_ReloadsWhenQueueEmpties(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.sync.DrainFunc = func(context.Context) (syncqueue.Result, error) {
		return syncqueue.Result{Synced: []string{"q1"}}, nil
	}
	before := ts.store.loads

	w := ts.do(t, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["synced"])
	assert.Equal(t, before+1, ts.store.loads)

	ts.sync.DrainFunc = func(context.Context) (syncqueue.Result, error) {
		return syncqueue.Result{}, apperror.StorageFailure(errors.New("disk"), "syncQueue")
	}
	w = ts.do(t, http.MethodPost, "/api/sync", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLocalExportImport(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.local.Save("employees", []model.Employee{{ID: "emp_1", Name: "Alice"}}))
	require.NoError(t, ts.local.Save("syncQueue", []syncqueue.Item{{ID: "sync_1", ActionType: "employee_add"}}))
	ts.createEmployee(t, "Bob")

	w := ts.do(t, http.MethodGet, "/api/local/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "local-store-")
	exported := decode[localstore.Backup](t, w)
	require.Contains(t, exported.Data, "syncQueue")

	require.NoError(t, ts.local.Save("employees", []model.Employee{}))
	loads := ts.store.loads

	w = ts.do(t, http.MethodPost, "/api/local/import", exported)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, ts.sync.restores)
	assert.Equal(t, loads+1, ts.store.loads)
	assert.False(t, decode[statusResponse](t, ts.do(t, http.MethodGet, "/api/status", nil)).CanUndo)

	var emps []model.Employee
	require.True(t, ts.local.Load("employees", &emps))
	require.Len(t, emps, 1)
	assert.Equal(t, "Alice", emps[0].Name)

	w = ts.do(t, http.MethodPost, "/api/local/import", gin.H{"version": "1.0"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 2, ts.sync.restores)

	ts.sync.RestoreFunc = func(func() error) error {
		return apperror.StorageFailure(errors.New("disk"), "*")
	}
	w = ts.do(t, http.MethodPost, "/api/local/import", exported)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUndoRedoAndBackup(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createEmployee(t, "Alice")

	w := ts.do(t, http.MethodGet, "/api/backup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "schedule-backup-")
	backup := decode[roster.Backup](t, w)
	require.Len(t, backup.Employees, 1)

	w = ts.do(t, http.MethodPost, "/api/history/undo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	hr := decode[historyResponse](t, w)
	assert.True(t, hr.Changed)
	assert.True(t, hr.CanRedo)

	w = ts.do(t, http.MethodGet, "/api/employees", nil)
	assert.Empty(t, decode[[]model.Employee](t, w))

	w = ts.do(t, http.MethodPost, "/api/backup", backup)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodGet, "/api/employees", nil)
	assert.Len(t, decode[[]model.Employee](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/audit?limit=2", nil)
	assert.Len(t, decode[[]model.AuditLogEntry](t, w), 2)
}

func TestSubscriptions(t *testing.T) {
	ts := newTestServer(t, &webpush.Options{VAPIDPublicKey: "public"})
	endpoint := "https://push.example.com/send/abc?x=1"

	w := ts.do(t, http.MethodPut, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/subscriptions", gin.H{"endpoint": endpoint, "p256dh": "key", "auth": "secret", "employeeId": "emp_1"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Re-subscribing the same endpoint replaces it.
	w = ts.do(t, http.MethodPut, "/api/subscriptions", gin.H{"endpoint": endpoint, "p256dh": "key", "auth": "secret", "employeeId": "emp_2"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, "/api/subscriptions?endpoint="+url.QueryEscape(endpoint), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "emp_2", decode[map[string]any](t, w)["employeeId"])

	w = ts.do(t, http.MethodDelete, "/api/subscriptions", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/subscriptions?endpoint="+url.QueryEscape(endpoint), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	assert.JSONEq(t, `{"public_key":"public"}`, w.Body.String())
}

func TestVAPIDKeyMissing(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTimeAndAnnouncements(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := ts.createEmployee(t, "Alice")

	w := ts.do(t, http.MethodPost, "/api/time/"+alice.ID+"/clock_in", gin.H{"locationVerified": true})
	require.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodPost, "/api/time/"+alice.ID+"/clock_in", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = ts.do(t, http.MethodPost, "/api/time/"+alice.ID+"/clock_out", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodGet, "/api/time/"+alice.ID, nil)
	assert.Len(t, decode[[]model.TimeEntry](t, w), 2)

	w = ts.do(t, http.MethodPost, "/api/announcements", gin.H{"title": "Inventory"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodGet, "/api/announcements", nil)
	assert.Len(t, decode[[]model.Announcement](t, w), 1)
}
