package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/config"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/server"
)

func memoryConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Auctioneer.ProgramID = domain.Address{1}.String()
	cfg.Auctioneer.EngineProgramID = domain.Address{2}.String()
	return &cfg
}

func TestWireMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := memoryConfig()
	require.NoError(t, cfg.Validate())

	deps, cleanup, err := Wire(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	assert.NotNil(t, deps.MemoryEngine)
	assert.Nil(t, deps.Archiver)
	assert.Empty(t, deps.Checks)

	a := New(cfg, logger)
	router := server.Router(a.serverConfig(), a.handlers(deps, nil), deps.RateLimiter, logger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWireRejectsBadProgram(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auctioneer.ProgramID = "not base58 0OIl"

	_, _, err := Wire(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "program_id")
}

func TestRunUnsupportedMode(t *testing.T) {
	cfg := memoryConfig()
	cfg.Mode = "trade"
	a := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer a.Close()

	assert.ErrorContains(t, a.Run(context.Background()), "unsupported mode")
}
