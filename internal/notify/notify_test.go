package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

type captureSender struct {
	mu     sync.Mutex
	titles []string
	bodies []string
	err    error
}

func (c *captureSender) Send(_ context.Context, title, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
	c.bodies = append(c.bodies, message)
	return c.err
}

func (c *captureSender) Name() string { return "capture" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFilter(t *testing.T) {
	s := &captureSender{}
	n := NewNotifier([]Sender{s}, []string{"sale_executed", " "}, quietLogger())

	require.NoError(t, n.Notify(context.Background(), "bid_placed", "t", "m"))
	require.NoError(t, n.Notify(context.Background(), "sale_executed", "t", "m"))
	assert.Len(t, s.titles, 1)

	assert.False(t, NewNotifier(nil, nil, quietLogger()).Enabled("sale_executed"))
	assert.True(t, NewNotifier([]Sender{s}, nil, quietLogger()).Enabled("anything"))
}

func TestNotifierJoinsFailures(t *testing.T) {
	bad := &captureSender{err: errors.New("down")}
	good := &captureSender{}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.Notify(context.Background(), "x", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture: down")
	assert.Len(t, good.titles, 1)
}

func TestEventNotifierFormat(t *testing.T) {
	s := &captureSender{}
	en := NewEventNotifier(NewNotifier([]Sender{s}, nil, quietLogger()), 9)

	ev := domain.Event{
		Type:   domain.EventSaleExecuted,
		Amount: 1_500_000_000,
		At:     time.Unix(1700000000, 0),
	}
	require.NoError(t, en.NotifyEvent(context.Background(), ev))
	require.Len(t, s.titles, 1)
	assert.Equal(t, "Sale executed", s.titles[0])
	assert.Contains(t, s.bodies[0], "amount: 1.5")
	assert.Contains(t, s.bodies[0], "at: 2023-11-14 22:13:20Z")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.01", FormatAmount(101, 2))
	assert.Equal(t, "0.000000001", FormatAmount(1, 9))
	assert.Equal(t, "18446744073709551615", FormatAmount(^uint64(0), 0))
}

func TestHTTPSenders(t *testing.T) {
	var got []map[string]string
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = append(got, body)
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/fail" {
			http.Error(w, "nope", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, NewDiscordSender(srv.URL+"/hook").Send(ctx, "T", "M"))
	require.NoError(t, NewTelegramSender("tok", "42").WithBaseURL(srv.URL+"/").Send(ctx, "T", "M"))
	err := NewDiscordSender(srv.URL+"/fail").Send(ctx, "T", "M")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")

	assert.Equal(t, "**T**\nM", got[0]["content"])
	assert.Equal(t, "/bottok/sendMessage", paths[1])
	assert.Equal(t, "42", got[1]["chat_id"])
}
