package internal

import (
	"context"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedule-sync-backend/config"
	"schedule-sync-backend/internal/dataaccess"
	"schedule-sync-backend/internal/db"
	"schedule-sync-backend/internal/localstore"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/monitor"
	"schedule-sync-backend/internal/refresher"
	"schedule-sync-backend/internal/remote"
	"schedule-sync-backend/internal/remote/remotetest"
	"schedule-sync-backend/internal/roster"
	"schedule-sync-backend/internal/syncqueue"
)

type stack struct {
	srv     *remotetest.Server
	gw      remote.Gateway
	hub     *remote.Hub
	local   *localstore.Store
	queue   *syncqueue.Queue
	facade  *dataaccess.Facade
	roster  *roster.Service
	refresh *refresher.Service
}

// newStack wires the whole sync core against a fake hosted backend and a
// real sqlite local store.
func newStack(t *testing.T, connected bool) *stack {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	gdb, err := db.InitLocal(&config.LocalConfig{Path: filepath.Join(t.TempDir(), "local.db")})
	require.NoError(t, err)
	local := localstore.New(gdb, "1.0", time.Minute, log)

	srv := remotetest.NewServer("anon-key")
	t.Cleanup(srv.Close)
	gw := remote.NewRESTGateway(config.RemoteConfig{BaseURL: srv.URL, APIKey: "anon-key", Timeout: 2 * time.Second}, nil, log)
	hub := remote.NewHub()

	queue := syncqueue.New(local, 2*time.Second, log)
	facade := dataaccess.New(local, remote.NewPublishing(gw, hub), queue, dataaccess.Options{AuditLimit: 100, Connected: connected}, log)
	svc := roster.New(facade, nil, roster.Options{UserID: "manager", UserAgent: "integration"}, log)
	require.NoError(t, svc.Load(context.Background()))

	return &stack{
		srv:     srv,
		gw:      gw,
		hub:     hub,
		local:   local,
		queue:   queue,
		facade:  facade,
		roster:  svc,
		refresh: refresher.NewService(time.Minute, facade, svc, nil, log),
	}
}

func TestOfflineEmployeeReachesBackendOnReconnect(t *testing.T) {
	s := newStack(t, false)
	ctx := context.Background()

	alice, err := s.roster.AddEmployee(ctx, roster.EmployeeInput{Name: "Alice", Type: "FT", TargetHours: 40, MaxDays: 5})
	require.NoError(t, err)

	items := s.queue.Items()
	require.Len(t, items, 1)
	assert.Equal(t, roster.ActionEmployeeCreate, items[0].ActionType)
	assert.Empty(t, s.srv.Rows("employees"))

	// Survives a restart of the roster against the same local store.
	require.NoError(t, s.roster.Load(ctx))
	require.Len(t, s.roster.Employees(false), 1)

	s.facade.HandleStatus(ctx, monitor.Online)
	assert.Zero(t, s.queue.Len())
	assert.True(t, s.facade.Status().Connected)

	remoteEmployees, err := remote.NewCollections(s.gw).Employees.FetchAll(ctx, remote.Query{})
	require.NoError(t, err)
	require.Len(t, remoteEmployees, 1)
	assert.Equal(t, alice.ID, remoteEmployees[0].ID)
	assert.Equal(t, "Alice", remoteEmployees[0].Name)

	audit, err := remote.NewCollections(s.gw).AuditLog.FetchAll(ctx, remote.Query{})
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, roster.ActionEmployeeCreate, audit[0].Action)
}

func TestApprovedPTOIsWrittenThroughToBackend(t *testing.T) {
	s := newStack(t, true)
	ctx := context.Background()

	var entryEvents atomic.Int32
	unsubscribe := s.hub.Subscribe(model.TableScheduleEntries, func(remote.ChangeEvent) { entryEvents.Add(1) })
	defer unsubscribe()

	bob, err := s.roster.AddEmployee(ctx, roster.EmployeeInput{Name: "Bob", Type: "PT", TargetHours: 24, MaxDays: 4})
	require.NoError(t, err)
	require.NoError(t, s.roster.SetShift(ctx, bob.ID, "2024-03-15", "9a-5p"))
	require.NoError(t, s.roster.SetShift(ctx, bob.ID, "2024-03-16", "7-3"))

	req, err := s.roster.SubmitPTO(ctx, roster.PTOInput{EmployeeID: bob.ID, StartDate: "2024-03-15", EndDate: "2024-03-17", Type: "vacation"})
	require.NoError(t, err)
	_, err = s.roster.ApprovePTO(ctx, req.ID)
	require.NoError(t, err)

	assert.Zero(t, s.queue.Len())
	assert.GreaterOrEqual(t, entryEvents.Load(), int32(3))

	cells := map[string]map[string]string{}
	for _, row := range s.srv.Rows("schedule_entries") {
		emp, _ := row["employee_id"].(string)
		date, _ := row["date"].(string)
		shift, _ := row["shift_time"].(string)
		if cells[emp] == nil {
			cells[emp] = map[string]string{}
		}
		cells[emp][date] = shift
	}
	for _, d := range []string{"2024-03-15", "2024-03-16", "2024-03-17"} {
		assert.Equal(t, model.ShiftPTO, cells[bob.ID][d], d)
	}
	assert.Equal(t, "9a-5p", cells[model.OpenShiftsID]["2024-03-15"])
	assert.Equal(t, "7-3", cells[model.OpenShiftsID]["2024-03-16"])

	var status string
	for _, row := range s.srv.Rows("pto_requests") {
		if row["id"] == req.ID {
			status, _ = row["status"].(string)
		}
	}
	assert.Equal(t, model.PTOStatusApproved, status)

	// A fresh load from the backend rebuilds the same grid.
	require.NoError(t, s.roster.Load(ctx))
	grid, err := s.roster.MonthGrid("2024-03")
	require.NoError(t, err)
	assert.Equal(t, model.ShiftPTO, grid.Schedule.Get(bob.ID, "2024-03-16"))
	assert.Equal(t, "7-3", grid.Schedule.Get(model.OpenShiftsID, "2024-03-16"))
}

func TestRefreshPicksUpEditsFromOtherClients(t *testing.T) {
	s := newStack(t, true)
	ctx := context.Background()

	s.srv.Seed("employees", []model.Employee{{
		ID:     "emp_carol",
		Name:   "Carol",
		Type:   model.EmployeeTypeFullTime,
		Status: model.EmployeeStatusActive,
	}})
	assert.Empty(t, s.roster.Employees(false))

	require.True(t, s.refresh.RefreshOnce(ctx))
	employees := s.roster.Employees(false)
	require.Len(t, employees, 1)
	assert.Equal(t, "Carol", employees[0].Name)

	s.facade.HandleStatus(ctx, monitor.Offline)
	assert.False(t, s.refresh.RefreshOnce(ctx))
}
