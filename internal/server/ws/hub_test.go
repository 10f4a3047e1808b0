package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/auctioneer/internal/cache/local"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

func addr(b byte) domain.Address {
	var a domain.Address
	a[31] = b
	return a
}

func eventJSON(t *testing.T, id string, house domain.Address) []byte {
	t.Helper()
	listing := addr(9)
	raw, err := json.Marshal(domain.Event{ID: id, Type: domain.EventBidPlaced, AuctionHouse: house, Listing: &listing, Amount: 101})
	require.NoError(t, err)
	return raw
}

func startHub(t *testing.T) (*Hub, *local.SignalBus, string) {
	t.Helper()
	bus := local.NewSignalBus()
	h := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	<-h.ready

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return h, bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestHubFiltersLiveEvents(t *testing.T) {
	h, bus, url := startHub(t)
	conn := dial(t, url+"?format=json&auction_house="+addr(1).String())
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domain.ChannelAuctionEvents, eventJSON(t, "other", addr(2))))
	require.NoError(t, bus.Publish(ctx, domain.ChannelAuctionEvents, eventJSON(t, "mine", addr(1))))

	typ, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	var ev domain.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "mine", ev.ID)
}

func TestHubReplaysStreamAsProto(t *testing.T) {
	_, bus, url := startHub(t)
	ctx := context.Background()
	require.NoError(t, bus.StreamAppend(ctx, domain.StreamAuctionEvents, eventJSON(t, "first", addr(1))))
	require.NoError(t, bus.StreamAppend(ctx, domain.StreamAuctionEvents, eventJSON(t, "second", addr(1))))

	conn := dial(t, url+"?since=1-0")
	typ, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)

	var s structpb.Struct
	require.NoError(t, proto.Unmarshal(msg, &s))
	assert.Equal(t, "second", s.Fields["id"].GetStringValue())
	assert.Equal(t, float64(101), s.Fields["amount"].GetNumberValue())
}

func TestFilterMatch(t *testing.T) {
	listing := addr(9)
	ev := domain.Event{AuctionHouse: addr(1), Listing: &listing}

	assert.True(t, newFilter(subscribeMsg{}).match(ev))
	assert.True(t, newFilter(subscribeMsg{Listings: []string{listing.String()}}).match(ev))
	assert.False(t, newFilter(subscribeMsg{Listings: []string{addr(8).String()}}).match(ev))
	assert.False(t, newFilter(subscribeMsg{Listings: []string{listing.String()}}).match(domain.Event{AuctionHouse: addr(1)}))
	assert.False(t, newFilter(subscribeMsg{AuctionHouses: []string{addr(2).String()}}).match(ev))
}
