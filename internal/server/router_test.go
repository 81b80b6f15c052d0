package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/crewbatch/internal/health"
	"github.com/azhengyongqin/crewbatch/internal/ledger"
	"github.com/azhengyongqin/crewbatch/internal/model"
	"github.com/azhengyongqin/crewbatch/internal/server/dto"
)

func newTestRouter(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	return NewRouter(deps)
}

func doGet(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLivenessEndpoint(t *testing.T) {
	router := newTestRouter(t, Deps{LedgerPath: filepath.Join(t.TempDir(), "log.jsonl")})

	w := doGet(t, router, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestServicesEndpoint(t *testing.T) {
	checker := health.NewChecker(time.Second)
	checker.Register("nim", func(ctx context.Context) health.Status {
		return health.StatusOnline
	})
	checker.Register("comfyui", func(ctx context.Context) health.Status {
		return health.StatusOffline
	})

	router := newTestRouter(t, Deps{
		LedgerPath:    filepath.Join(t.TempDir(), "log.jsonl"),
		HealthChecker: checker,
	})

	w := doGet(t, router, "/api/v1/services")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ServicesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "online", resp.Services["nim"])
	assert.Equal(t, "offline", resp.Services["comfyui"])
}

func TestLedgerTailEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")

	l, err := ledger.Open(path)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		task := model.TaskSpec{Seq: int64(i), Kind: model.TaskKindCode, Payload: "t"}
		require.NoError(t, l.Append(model.NewAttempt("run-1", task, 1, model.TaskStatusSuccess, 0, "ok")))
	}
	require.NoError(t, l.Close())

	router := newTestRouter(t, Deps{LedgerPath: path})

	w := doGet(t, router, "/api/v1/ledger?n=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.LedgerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, int64(2), resp.Records[0].Seq)
	assert.Equal(t, int64(3), resp.Records[1].Seq)
}

func TestLedgerTailMissingFile(t *testing.T) {
	router := newTestRouter(t, Deps{LedgerPath: filepath.Join(t.TempDir(), "absent.jsonl")})

	w := doGet(t, router, "/api/v1/ledger")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.LedgerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Records)
}

func TestArchiveDisabled(t *testing.T) {
	router := newTestRouter(t, Deps{LedgerPath: filepath.Join(t.TempDir(), "log.jsonl")})

	assert.Equal(t, http.StatusServiceUnavailable, doGet(t, router, "/api/v1/runs").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doGet(t, router, "/api/v1/runs/run-1/attempts").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doGet(t, router, "/api/v1/events/recent").Code)
}

func TestRunIDValidation(t *testing.T) {
	router := newTestRouter(t, Deps{LedgerPath: filepath.Join(t.TempDir(), "log.jsonl")})

	w := doGet(t, router, "/api/v1/runs/bad%20id/attempts")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
