package notify

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// EventNotifier turns auction events into chat messages.
type EventNotifier struct {
	notifier *Notifier
	decimals int32
}

// NewEventNotifier renders amounts with the given number of treasury
// decimals.
func NewEventNotifier(n *Notifier, decimals int32) *EventNotifier {
	return &EventNotifier{notifier: n, decimals: decimals}
}

func (e *EventNotifier) NotifyEvent(ctx context.Context, ev domain.Event) error {
	if !e.notifier.Enabled(string(ev.Type)) {
		return nil
	}
	title, body := e.Format(ev)
	return e.notifier.Notify(ctx, string(ev.Type), title, body)
}

// Format returns the title and body for ev.
func (e *EventNotifier) Format(ev domain.Event) (string, string) {
	title := strings.ReplaceAll(string(ev.Type), "_", " ")
	title = strings.ToUpper(title[:1]) + title[1:]

	var b strings.Builder
	fmt.Fprintf(&b, "house: %s\nwallet: %s", ev.AuctionHouse, ev.Wallet)
	if ev.Listing != nil {
		fmt.Fprintf(&b, "\nlisting: %s", *ev.Listing)
	}
	if ev.Amount > 0 {
		fmt.Fprintf(&b, "\namount: %s", FormatAmount(ev.Amount, e.decimals))
	}
	fmt.Fprintf(&b, "\nat: %s", ev.At.UTC().Format("2006-01-02 15:04:05Z"))
	return title, b.String()
}

// FormatAmount shifts a base-unit amount by decimals.
func FormatAmount(amount uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals).String()
}
