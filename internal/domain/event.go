package domain

import "time"

// Channels and streams used for auction events.
const (
	ChannelAuctionEvents = "auction:events"
	StreamAuctionEvents  = "auction:stream"
)

// EventType names an auction lifecycle event.
type EventType string

const (
	EventAuthorized      EventType = "authorized"
	EventListingCreated  EventType = "listing_created"
	EventBidPlaced       EventType = "bid_placed"
	EventDeposited       EventType = "deposited"
	EventListingCanceled EventType = "listing_canceled"
	EventBidCanceled     EventType = "bid_canceled"
	EventSaleExecuted    EventType = "sale_executed"
	EventWithdrawn       EventType = "withdrawn"
)

// Event is published after an operation has been accepted by the engine.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	AuctionHouse Address   `json:"auction_house"`
	Wallet       Address   `json:"wallet"`
	Listing      *Address  `json:"listing,omitempty"`
	TradeState   *Address  `json:"trade_state,omitempty"`
	Amount       uint64    `json:"amount,omitempty"`
	TreasuryMint Address   `json:"treasury_mint"`
	At           time.Time `json:"at"`
}

// Caller is the identity behind an external call. Signed is set only when
// the transport verified a signature for Address.
type Caller struct {
	Address Address
	Signed  bool
}
