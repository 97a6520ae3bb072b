package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandler_Statuses(t *testing.T) {
	testCases := []struct {
		name     string
		checkers map[string]*FuncChecker
		status   Status
		code     int
		ready    int
	}{
		{
			name:   "no checkers",
			status: StatusHealthy,
			code:   http.StatusOK,
			ready:  http.StatusOK,
		},
		{
			name:     "all healthy",
			checkers: map[string]*FuncChecker{"storage": NewChecker("postgres", ok), "redis": NewChecker("redis", ok)},
			status:   StatusHealthy,
			code:     http.StatusOK,
			ready:    http.StatusOK,
		},
		{
			name: "optional failure degrades",
			checkers: map[string]*FuncChecker{
				"storage": NewChecker("postgres", ok),
				"outbox":  NewChecker("outbox", failing("backlog is growing"), Optional()),
			},
			status: StatusDegraded,
			code:   http.StatusOK,
			ready:  http.StatusOK,
		},
		{
			name: "required failure wins over degraded",
			checkers: map[string]*FuncChecker{
				"storage": NewChecker("postgres", failing("connection refused")),
				"outbox":  NewChecker("outbox", failing("backlog is growing"), Optional()),
			},
			status: StatusUnhealthy,
			code:   http.StatusServiceUnavailable,
			ready:  http.StatusServiceUnavailable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler("v1.2.3")
			for name, checker := range tc.checkers {
				handler.RegisterChecker(name, checker)
			}

			w := serve(t, handler.ServeHTTP, "/healthz")
			require.Equal(t, tc.code, w.Code)
			require.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			require.Equal(t, tc.status, response.Status)
			require.Equal(t, "v1.2.3", response.Version)
			require.Len(t, response.Checks, len(tc.checkers))

			require.Equal(t, tc.ready, serve(t, handler.ReadinessHandler, "/readyz").Code)
		})
	}
}

func TestHandler_FailedCheckCarriesMessage(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", NewChecker("postgres", failing("connection refused")))

	response := handler.Evaluate(context.Background())
	check := response.Checks["storage"]
	require.Equal(t, "postgres", check.Name)
	require.Equal(t, StatusUnhealthy, check.Status)
	require.Equal(t, "connection refused", check.Message)
}

func TestHandler_CheckTimeout(t *testing.T) {
	handler := NewHandler("dev", WithCheckTimeout(20*time.Millisecond))
	handler.RegisterChecker("redis", NewChecker("redis", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return ctx.Err()
	}))

	started := time.Now()
	response := handler.Evaluate(context.Background())
	require.Less(t, time.Since(started), 45*time.Millisecond)

	check := response.Checks["redis"]
	require.Equal(t, StatusUnhealthy, check.Status)
	require.Equal(t, "check timed out", check.Message)
}

func TestHandler_ChecksRunConcurrently(t *testing.T) {
	handler := NewHandler("dev")
	slow := func(context.Context) error {
		time.Sleep(40 * time.Millisecond)
		return nil
	}
	for _, name := range []string{"a", "b", "c", "d"} {
		handler.RegisterChecker(name, NewChecker(name, slow))
	}

	started := time.Now()
	response := handler.Evaluate(context.Background())
	require.Equal(t, StatusHealthy, response.Status)
	require.Less(t, time.Since(started), 140*time.Millisecond)
}

func TestFuncChecker_Duration(t *testing.T) {
	check := NewChecker("slow", func(context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	}).Check(context.Background())

	require.Equal(t, StatusHealthy, check.Status)
	require.GreaterOrEqual(t, check.DurationMs, int64(10))
}

func TestHandler_RegisterReplacesAndNames(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", NewChecker("postgres", failing("down")))
	handler.RegisterChecker("storage", NewChecker("postgres", ok))
	handler.RegisterChecker("kafka", NewChecker("kafka", ok))

	require.Equal(t, []string{"kafka", "storage"}, handler.Names())
	require.Equal(t, StatusHealthy, handler.Evaluate(context.Background()).Status)
}

func TestLivenessHandler(t *testing.T) {
	w := serve(t, LivenessHandler, "/livez")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}
