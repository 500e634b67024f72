package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedule-sync-backend/config"
	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/remote/remotetest"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newREST(t *testing.T) (*RESTGateway, *remotetest.Server) {
	t.Helper()
	srv := remotetest.NewServer("secret")
	t.Cleanup(srv.Close)
	gw := NewRESTGateway(config.RemoteConfig{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second}, nil, quietLogger())
	return gw, srv
}

func TestRESTGateway_UpsertIsIdempotent(t *testing.T) {
	gw, srv := newREST(t)
	ctx := context.Background()
	alice := model.Employee{ID: "emp_1", Name: "Alice", Type: model.EmployeeTypeFullTime, Status: model.EmployeeStatusActive}

	require.NoError(t, gw.Upsert(ctx, model.TableEmployees, []model.Employee{alice}))
	require.NoError(t, gw.Upsert(ctx, model.TableEmployees, []model.Employee{alice}))

	rows := srv.Rows("employees")
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["name"])
}

func TestRESTGateway_FetchOrdersAndLimits(t *testing.T) {
	gw, srv := newREST(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var entries []model.AuditLogEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, model.AuditLogEntry{
			ID:        "audit_" + string(rune('a'+i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Action:    "test",
		})
	}
	srv.Seed("audit_log", entries)

	audit := NewCollection[model.AuditLogEntry](gw, model.TableAuditLog)
	got, err := audit.FetchAll(context.Background(), Query{OrderBy: "timestamp", Desc: true, Limit: 3})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "audit_e", got[0].ID)
	assert.Equal(t, "audit_c", got[2].ID)
}

func TestRESTGateway_FetchFilters(t *testing.T) {
	gw, srv := newREST(t)
	srv.Seed("pto_requests", []model.PTORequest{
		{ID: "pto_1", EmployeeID: "emp_1", Status: model.PTOStatusPending},
		{ID: "pto_2", EmployeeID: "emp_2", Status: model.PTOStatusPending},
	})

	var got []model.PTORequest
	err := gw.Fetch(context.Background(), model.TablePTORequests, Query{Filters: map[string]string{"employee_id": "emp_2"}}, &got)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pto_2", got[0].ID)
}

func TestRESTGateway_DeleteQuotesIDs(t *testing.T) {
	gw, srv := newREST(t)
	srv.Seed("schedule_entries", []model.ScheduleEntry{
		{ID: "emp_1_2024-03-15", Shift: "9a-5p"},
		{ID: `odd,"id"`, Shift: "OFF"},
		{ID: "emp_1_2024-03-16", Shift: "9a-5p"},
	})

	err := gw.Delete(context.Background(), model.TableScheduleEntries, []string{"emp_1_2024-03-15", `odd,"id"`})
	require.NoError(t, err)

	rows := srv.Rows("schedule_entries")
	require.Len(t, rows, 1)
	assert.Equal(t, "emp_1_2024-03-16", rows[0]["id"])
	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"emp_1_2024-03-15", `odd,"id"`}, reqs[0].IDs)
}

func TestRESTGateway_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
	}{
		{"bad request is rejected", http.StatusBadRequest, apperror.CodeRemoteRejected},
		{"conflict is rejected", http.StatusConflict, apperror.CodeRemoteRejected},
		{"server error is unavailable", http.StatusInternalServerError, apperror.CodeRemoteUnavailable},
		{"bad gateway is unavailable", http.StatusBadGateway, apperror.CodeRemoteUnavailable},
		{"throttling is unavailable", http.StatusTooManyRequests, apperror.CodeRemoteUnavailable},
		{"request timeout is unavailable", http.StatusRequestTimeout, apperror.CodeRemoteUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gw, srv := newREST(t)
			srv.FailWith(func(remotetest.Request) int { return tc.status })

			err := gw.Upsert(context.Background(), model.TableEmployees, []model.Employee{{ID: "emp_1"}})
			assert.Equal(t, tc.code, apperror.CodeOf(err))
		})
	}
}

func TestRESTGateway_BadAPIKeyIsRejected(t *testing.T) {
	srv := remotetest.NewServer("secret")
	defer srv.Close()
	gw := NewRESTGateway(config.RemoteConfig{BaseURL: srv.URL, APIKey: "wrong"}, nil, quietLogger())

	err := gw.Upsert(context.Background(), model.TableEmployees, []model.Employee{{ID: "emp_1"}})

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeRemoteRejected, appErr.Code)
	assert.Contains(t, appErr.Details, "invalid api key")
}

func TestRESTGateway_TransportFailureIsUnavailable(t *testing.T) {
	srv := remotetest.NewServer("secret")
	url := srv.URL
	srv.Close()
	gw := NewRESTGateway(config.RemoteConfig{BaseURL: url, APIKey: "secret"}, nil, quietLogger())

	err := gw.Upsert(context.Background(), model.TableEmployees, []model.Employee{{ID: "emp_1"}})
	assert.True(t, errors.Is(err, apperror.ErrRemoteUnavailable))
}

func TestRESTGateway_HonorsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	gw := NewRESTGateway(config.RemoteConfig{BaseURL: srv.URL}, nil, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := gw.Delete(ctx, model.TableEmployees, []string{"emp_1"})
	assert.Equal(t, apperror.CodeRemoteUnavailable, apperror.CodeOf(err))
}

func TestRESTGateway_WritesColumnNames(t *testing.T) {
	gw, srv := newREST(t)
	ctx := context.Background()
	entry := model.ScheduleEntry{ID: "emp_1_2024-03-15", EmployeeID: "emp_1", Date: "2024-03-15", Shift: model.ShiftPTO, IsPTO: true}
	note := model.ScheduleNote{ID: "emp_1_2024-03-15", EmployeeID: "emp_1", Date: "2024-03-15", Text: "dentist"}

	require.NoError(t, gw.Upsert(ctx, model.TableScheduleEntries, []model.ScheduleEntry{entry}))
	require.NoError(t, gw.Upsert(ctx, model.TableScheduleNotes, []model.ScheduleNote{note}))

	rows := srv.Rows("schedule_entries")
	require.Len(t, rows, 1)
	assert.Equal(t, "emp_1", rows[0]["employee_id"])
	assert.Equal(t, model.ShiftPTO, rows[0]["shift_time"])
	assert.Equal(t, true, rows[0]["is_pto"])
	assert.NotContains(t, rows[0], "employeeId")
	assert.Equal(t, "dentist", srv.Rows("schedule_notes")[0]["note_text"])

	var got []model.ScheduleEntry
	require.NoError(t, gw.Fetch(ctx, model.TableScheduleEntries, Query{}, &got))
	require.Len(t, got, 1)
	assert.Equal(t, entry.EmployeeID, got[0].EmployeeID)
	assert.Equal(t, entry.Shift, got[0].Shift)
	assert.True(t, got[0].IsPTO)
}

func TestRESTGateway_UnknownColumnIsRejected(t *testing.T) {
	gw, srv := newREST(t)
	ctx := context.Background()

	err := gw.Upsert(ctx, model.TableEmployees, []map[string]any{{"id": "emp_1", "nickname": "Al"}})
	assert.Equal(t, apperror.CodeRemoteRejected, apperror.CodeOf(err))
	assert.Empty(t, srv.Rows("employees"))

	var got []model.PTORequest
	err = gw.Fetch(ctx, model.TablePTORequests, Query{Filters: map[string]string{"employeeId": "emp_1"}}, &got)
	assert.Equal(t, apperror.CodeRemoteRejected, apperror.CodeOf(err))
}

func TestRESTGateway_FetchPagesPastServerRowCap(t *testing.T) {
	tests := []struct {
		name     string
		maxRows  int
		pageSize int
		limit    int
		want     int
	}{
		{"cap below page size", 2, 1000, 0, 7},
		{"page size below cap", 10, 3, 0, 7},
		{"limit spans pages", 2, 1000, 5, 5},
		{"empty table", 2, 1000, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := remotetest.NewServer("secret")
			t.Cleanup(srv.Close)
			srv.SetMaxRows(tc.maxRows)
			if tc.want > 0 {
				var emps []model.Employee
				for i := 0; i < 7; i++ {
					emps = append(emps, model.Employee{ID: "emp_" + string(rune('a'+i)), Name: "E"})
				}
				srv.Seed("employees", emps)
			}
			gw := NewRESTGateway(config.RemoteConfig{BaseURL: srv.URL, APIKey: "secret", PageSize: tc.pageSize}, nil, quietLogger())

			got, err := NewCollection[model.Employee](gw, model.TableEmployees).FetchAll(context.Background(), Query{Limit: tc.limit})
			require.NoError(t, err)

			require.Len(t, got, tc.want)
			for i := range got {
				assert.Equal(t, "emp_"+string(rune('a'+i)), got[i].ID)
			}
		})
	}
}

func TestRangeTotal(t *testing.T) {
	tests := []struct {
		header string
		total  int
		ok     bool
	}{
		{"0-99/250", 250, true},
		{"*/0", 0, true},
		{"0-24/*", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.header, func(t *testing.T) {
			total, ok := rangeTotal(tc.header)
			assert.Equal(t, tc.total, total)
			assert.Equal(t, tc.ok, ok)
		})
	}
}
