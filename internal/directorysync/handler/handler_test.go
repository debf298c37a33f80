package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirsync/internal/directorysync/models"
	"dirsync/internal/directorysync/schedule"
	audit "dirsync/pkg/platform/audit"
	"dirsync/pkg/platform/audit/publisher"
	"dirsync/pkg/platform/audit/store/memory"
	"dirsync/pkg/platform/middleware/admin"
	"dirsync/pkg/testutil"
)

const adminToken = "secret-token"

type blockingRunner struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingRunner) run(trigger string) (*models.RunReport, error) {
	b.started <- struct{}{}
	<-b.release
	return &models.RunReport{RunID: "run-1", Trigger: trigger, Import: models.NewRunStats()}, nil
}

func (b *blockingRunner) Run(_ context.Context, trigger string) (*models.RunReport, error) {
	return b.run(trigger)
}

func (b *blockingRunner) Import(_ context.Context, trigger string) (*models.RunReport, error) {
	return b.run(trigger)
}

type fixture struct {
	router *chi.Mux
	job    *schedule.Job
	runner *blockingRunner
	events *memory.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := &blockingRunner{release: make(chan struct{}), started: make(chan struct{}, 4)}
	job := schedule.NewJob(runner, schedule.NewLocalLocker())
	events := memory.NewInMemoryStore()
	pub := publisher.NewPublisher(events)
	t.Cleanup(pub.Close)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(adminToken, logger))
		New(job, events, pub, logger).Register(r)
	})
	return &fixture{router: r, job: job, runner: runner, events: events}
}

func (f *fixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.WithAdminToken(testutil.NewRequest(t, method, path), adminToken)
	return testutil.DoRequest(f.router, testutil.WithRequestID(req, "req-42"))
}

func TestAdminTokenRequired(t *testing.T) {
	f := newFixture(t)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPost, "/admin/directory-sync/run"))

	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	assert.False(t, f.job.Running())
}

func TestRunLifecycle(t *testing.T) {
	f := newFixture(t)

	testutil.Given(t, "no run has happened", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/admin/directory-sync/status")
		testutil.AssertStatusOK(t, rr)
		status := testutil.UnmarshalResponse[StatusResponse](t, rr)
		assert.False(t, status.Running)
		assert.Nil(t, status.LastRun)
	})

	testutil.When(t, "a run is triggered", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/admin/directory-sync/run")
		testutil.AssertStatus(t, rr, http.StatusAccepted)
		<-f.runner.started

		testutil.Then(t, "a second trigger conflicts", func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/admin/directory-sync/import")
			testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
		})

		testutil.Then(t, "status reports the run in progress", func(t *testing.T) {
			rr := f.do(t, http.MethodGet, "/admin/directory-sync/status")
			status := testutil.UnmarshalResponse[StatusResponse](t, rr)
			assert.True(t, status.Running)
		})

		testutil.Then(t, "the trigger is audited", func(t *testing.T) {
			events, err := f.events.ListAll(context.Background())
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, string(audit.EventDirectorySyncTriggered), events[0].Action)
			assert.Equal(t, "full", events[0].Subject)
			assert.Equal(t, "req-42", events[0].RequestID)
		})
	})

	testutil.When(t, "the run finishes", func(t *testing.T) {
		close(f.runner.release)
		f.job.Wait()

		rr := f.do(t, http.MethodGet, "/admin/directory-sync/status")
		status := testutil.UnmarshalResponse[StatusResponse](t, rr)
		assert.False(t, status.Running)
		require.NotNil(t, status.LastRun)
		assert.Equal(t, "run-1", status.LastRun.RunID)
		assert.Equal(t, "admin", status.LastRun.Trigger)
	})
}

func TestImportOnly(t *testing.T) {
	f := newFixture(t)
	close(f.runner.release)

	rr := f.do(t, http.MethodPost, "/admin/directory-sync/import")

	testutil.AssertStatus(t, rr, http.StatusAccepted)
	testutil.AssertJSONContains(t, rr, "mode", "import")
	f.job.Wait()
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	for _, action := range []audit.AuditEvent{audit.EventDirectoryUserCreated, audit.EventDirectoryUserUpdated} {
		require.NoError(t, f.events.Append(context.Background(), audit.Event{Action: string(action)}))
	}

	t.Run("lists the newest events", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/admin/directory-sync/events?limit=1")
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[EventsResponse](t, rr)
		require.Len(t, resp.Events, 1)
	})

	t.Run("filters by user, newest first", func(t *testing.T) {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, action := range []audit.AuditEvent{audit.EventDirectoryUserCreated, audit.EventDirectoryUserUpdated, audit.EventDirectoryUserSkipped} {
			require.NoError(t, f.events.Append(context.Background(), audit.Event{
				UserID:    "user-7",
				Action:    string(action),
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		rr := f.do(t, http.MethodGet, "/admin/directory-sync/events?user_id=user-7&limit=2")

		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[EventsResponse](t, rr)
		require.Len(t, resp.Events, 2)
		assert.Equal(t, string(audit.EventDirectoryUserSkipped), resp.Events[0].Action)
		assert.Equal(t, string(audit.EventDirectoryUserUpdated), resp.Events[1].Action)
		for _, e := range resp.Events {
			assert.Equal(t, "user-7", e.UserID)
		}
	})

	t.Run("unknown user has no events", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/admin/directory-sync/events?user_id=nobody")

		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[EventsResponse](t, rr)
		assert.Empty(t, resp.Events)
	})

	t.Run("rejects a bad limit", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/admin/directory-sync/events?limit=0")
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

func TestEventsRouteNeedsReader(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(schedule.NewJob(&blockingRunner{}, schedule.NewLocalLocker()), nil, nil, logger).Register(r)

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/admin/directory-sync/events"))

	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
