package metrics

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "BidTooLow", Result(fmt.Errorf("buy: %w", domain.ErrBidTooLow)))
	assert.Equal(t, "engine_rejected", Result(&domain.EngineError{Code: "X"}))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveOperation("buy", nil, time.Millisecond)
	m.ObserveOperation("buy", domain.ErrBidTooLow, time.Millisecond)
	m.ObserveOperation("buy", domain.ErrBidTooLow, time.Millisecond)
	m.ObserveForward("buy", nil, time.Millisecond)
	m.ObserveEvent(domain.EventBidPlaced)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("buy", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("buy", "BidTooLow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.forwards.WithLabelValues("buy", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("bid_placed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "auctioneer_operations_total")
}
