package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/service"
)

// AuctionService is the slice of service.Auctioneer the mutating routes
// need.
type AuctionService interface {
	Authorize(ctx context.Context, req service.AuthorizeRequest) (domain.AuthorityDelegation, error)
	Sell(ctx context.Context, req service.SellRequest) (domain.ListingConfig, error)
	Buy(ctx context.Context, req service.BuyRequest) (domain.ListingConfig, error)
	Deposit(ctx context.Context, req service.DepositRequest) error
	Cancel(ctx context.Context, req service.CancelRequest) error
	ExecuteSale(ctx context.Context, req service.ExecuteSaleRequest) (domain.ListingConfig, error)
	Withdraw(ctx context.Context, req service.WithdrawRequest) error
}

// AuctionHandler serves POST /api/v1/{op}.
type AuctionHandler struct {
	svc      AuctionService
	verifier *Verifier
	logger   *slog.Logger
}

func NewAuctionHandler(svc AuctionService, verifier *Verifier, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{svc: svc, verifier: verifier, logger: logger.With(slog.String("handler", "auction"))}
}

type okResponse struct {
	Status string `json:"status"`
}

// handle decodes the envelope for op, stamps the caller and runs call.
func handle[Req any](h *AuctionHandler, op string, status int, setCaller func(*Req, domain.Caller), call func(context.Context, Req) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		caller, err := h.verifier.decodeEnvelope(w, r, op, &req)
		if err != nil {
			writeFailure(w, r, h.logger, err)
			return
		}
		setCaller(&req, caller)
		out, err := call(r.Context(), req)
		if err != nil {
			writeFailure(w, r, h.logger, err)
			return
		}
		if out == nil {
			out = okResponse{Status: "ok"}
		}
		writeJSON(w, status, out)
	}
}

// Authorize handles POST /api/v1/authorize.
func (h *AuctionHandler) Authorize() http.HandlerFunc {
	return handle(h, "authorize", http.StatusCreated,
		func(r *service.AuthorizeRequest, c domain.Caller) { r.Caller = c },
		func(ctx context.Context, r service.AuthorizeRequest) (any, error) { return h.svc.Authorize(ctx, r) })
}

// Sell handles POST /api/v1/sell.
func (h *AuctionHandler) Sell() http.HandlerFunc {
	return handle(h, "sell", http.StatusCreated,
		func(r *service.SellRequest, c domain.Caller) { r.Caller = c },
		func(ctx context.Context, r service.SellRequest) (any, error) { return h.svc.Sell(ctx, r) })
}

// Buy handles POST /api/v1/buy.
func (h *AuctionHandler) Buy() http.HandlerFunc {
	return handle(h, "buy", http.StatusOK,
		func(r *service.BuyRequest, c domain.Caller) { r.Caller = c },
		func(ctx context.Context, r service.BuyRequest) (any, error) { return h.svc.Buy(ctx, r) })
}

// Deposit handles POST /api/v1/deposit.
func (h *AuctionHandler) Deposit() http.HandlerFunc {
	return handle(h, "deposit", http.StatusOK,
		func(r *service.DepositRequest, c domain.Caller) { r.Caller = c },
		func(ctx context.Context, r service.DepositRequest) (any, error) { return nil, h.svc.Deposit(ctx, r) })
}

// Cancel handles POST /api/v1/cancel.
func (h *AuctionHandler) Cancel() http.HandlerFunc {
	return handle(h, "cancel", http.StatusOK,
		func(r *service.CancelRequest, c domain.Caller) { r.Caller = c },
		func(ctx context.Context, r service.CancelRequest) (any, error) { return nil, h.svc.Cancel(ctx, r) })
}

// ExecuteSale handles POST /api/v1/execute-sale.
func (h *AuctionHandler) ExecuteSale() http.HandlerFunc {
	return handle(h, "execute_sale", http.StatusOK,
		func(r *service.ExecuteSaleRequest, c domain.Caller) { r.Caller = c },
		func(ctx context.Context, r service.ExecuteSaleRequest) (any, error) { return h.svc.ExecuteSale(ctx, r) })
}

// Withdraw handles POST /api/v1/withdraw.
func (h *AuctionHandler) Withdraw() http.HandlerFunc {
	return handle(h, "withdraw", http.StatusOK,
		func(r *service.WithdrawRequest, c domain.Caller) { r.Caller = c },
		func(ctx context.Context, r service.WithdrawRequest) (any, error) { return nil, h.svc.Withdraw(ctx, r) })
}
