package domain

import (
	"errors"
	"fmt"
)

// Generic persistence and infrastructure errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrLockHeld    = errors.New("lock already held")
	ErrBadRequest  = errors.New("bad request")
	// ErrStaleWrite means a guarded write lost to a concurrent one.
	ErrStaleWrite = errors.New("stale write")
)

// Kind groups error codes into the categories callers branch on.
type Kind string

const (
	KindUnauthorized            Kind = "Unauthorized"
	KindAlreadyExists           Kind = "AlreadyExists"
	KindInvalidTiming           Kind = "InvalidTiming"
	KindInvalidBid              Kind = "InvalidBid"
	KindNotHighestBidder        Kind = "NotHighestBidder"
	KindNoValidNonce            Kind = "NoValidNonce"
	KindMalformedForwardRequest Kind = "MalformedForwardRequest"
	KindNotFound                Kind = "NotFound"
	KindInvalidState            Kind = "InvalidState"
)

// Code is a stable, enumerable error code. Values never change once
// published.
type Code uint32

const (
	CodeUnauthorized Code = 6000 + iota
	CodeAlreadyExists
	CodeAuctionStartTimeInThePast
	CodeMinBidMustNotBeZero
	CodeAuctionNotStarted
	CodeAuctionEnded
	CodeBidTooLow
	CodeBidStepTooSmall
	CodeNotHighestBidder
	CodeAuctionActive
	CodeNoValidNonce
	CodeMalformedForwardRequest
	CodeListingNotFound
	CodeListingClosed
	CodeInvalidAuctionDuration
)

// Error is a typed auctioneer failure. Two Errors match under errors.Is
// when their codes are equal, so wrapped sentinels still compare.
type Error struct {
	Code    Code
	Name    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code Code, name string, kind Kind, msg string) *Error {
	return &Error{Code: code, Name: name, Kind: kind, Message: msg}
}

var (
	ErrUnauthorized              = newError(CodeUnauthorized, "Unauthorized", KindUnauthorized, "Caller lacks the required role or scope")
	ErrAlreadyExists             = newError(CodeAlreadyExists, "AlreadyExists", KindAlreadyExists, "Account already initialized")
	ErrAuctionStartTimeInThePast = newError(CodeAuctionStartTimeInThePast, "AuctionStartTimeInThePast", KindInvalidTiming, "The auction start time can't be in the past")
	ErrMinBidMustNotBeZero       = newError(CodeMinBidMustNotBeZero, "MinBidMustNotBeZero", KindInvalidBid, "Minimal bid value can't be zero")
	ErrAuctionNotStarted         = newError(CodeAuctionNotStarted, "AuctionNotStarted", KindInvalidTiming, "Auction has not started yet")
	ErrAuctionEnded              = newError(CodeAuctionEnded, "AuctionEnded", KindInvalidTiming, "Auction has ended")
	ErrBidTooLow                 = newError(CodeBidTooLow, "BidTooLow", KindInvalidBid, "The bid was lower than the highest bid")
	ErrBidStepTooSmall           = newError(CodeBidStepTooSmall, "BidStepTooSmall", KindInvalidBid, "The bid increment is below the minimum step")
	ErrNotHighestBidder          = newError(CodeNotHighestBidder, "NotHighestBidder", KindNotHighestBidder, "Execute Sale must be run on the highest bidder")
	ErrAuctionActive             = newError(CodeAuctionActive, "AuctionActive", KindInvalidTiming, "Auction has not ended yet")
	ErrNoValidNonce              = newError(CodeNoValidNonce, "NoValidNonce", KindNoValidNonce, "Unable to find a viable nonce for the derived address")
	ErrMalformedForwardRequest   = newError(CodeMalformedForwardRequest, "MalformedForwardRequest", KindMalformedForwardRequest, "Forwarded request does not match the engine schema")
	ErrListingNotFound           = newError(CodeListingNotFound, "ListingNotFound", KindNotFound, "Listing does not exist")
	ErrListingClosed             = newError(CodeListingClosed, "ListingClosed", KindInvalidState, "Listing is no longer open")
	ErrInvalidAuctionDuration    = newError(CodeInvalidAuctionDuration, "InvalidAuctionDuration", KindInvalidTiming, "Auction duration must be 12h, 24h or 48h")
)

// Errors lists every taxonomy entry in code order.
func Errors() []*Error {
	return []*Error{
		ErrUnauthorized, ErrAlreadyExists, ErrAuctionStartTimeInThePast,
		ErrMinBidMustNotBeZero, ErrAuctionNotStarted, ErrAuctionEnded,
		ErrBidTooLow, ErrBidStepTooSmall, ErrNotHighestBidder, ErrAuctionActive,
		ErrNoValidNonce, ErrMalformedForwardRequest, ErrListingNotFound,
		ErrListingClosed, ErrInvalidAuctionDuration,
	}
}

// AsError extracts the taxonomy entry from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// EngineError is a rejection returned by the base engine. It is passed
// through to callers untouched.
type EngineError struct {
	Code    string
	Message string
}

func (e *EngineError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// AsEngineError extracts a base engine rejection from an error chain.
func AsEngineError(err error) (*EngineError, bool) {
	var e *EngineError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
