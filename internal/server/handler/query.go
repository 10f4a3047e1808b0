package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/auctioneer/internal/derive"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// QueryService is the read side of service.Auctioneer.
type QueryService interface {
	Listing(ctx context.Context, addr domain.Address) (domain.ListingConfig, error)
	ListingsBySeller(ctx context.Context, seller domain.Address, opts domain.ListOpts) ([]domain.ListingConfig, error)
	Delegation(ctx context.Context, auctionHouse domain.Address) (domain.AuthorityDelegation, error)
	Scheme() derive.Scheme
}

type QueryHandler struct {
	svc    QueryService
	audit  domain.AuditStore
	bus    domain.SignalBus
	logger *slog.Logger
}

func NewQueryHandler(svc QueryService, audit domain.AuditStore, bus domain.SignalBus, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{svc: svc, audit: audit, bus: bus, logger: logger.With(slog.String("handler", "query"))}
}

// GetListing serves GET /api/v1/listings/{address}.
func (h *QueryHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r.PathValue("address"), "address")
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	l, err := h.svc.Listing(r.Context(), addr)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ListListings serves GET /api/v1/listings?seller=...
func (h *QueryHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	seller, err := addressParam(r.URL.Query().Get("seller"), "seller")
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	ls, err := h.svc.ListingsBySeller(r.Context(), seller, parseListOpts(r))
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	if ls == nil {
		ls = []domain.ListingConfig{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": ls})
}

// GetDelegation serves GET /api/v1/delegations/{instance}.
func (h *QueryHandler) GetDelegation(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r.PathValue("instance"), "instance")
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	d, err := h.svc.Delegation(r.Context(), addr)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type derived struct {
	Address domain.Address `json:"address"`
	Nonce   uint8          `json:"nonce"`
}

// Derive serves GET /api/v1/derive/{kind}. Kinds and their query params:
//
//	trade-state        wallet auction_house token_account treasury_mint token_mint price size
//	escrow             auction_house wallet
//	listing            wallet auction_house token_account treasury_mint token_mint size
//	delegate           auction_house
//	program-as-signer
//
// price may be "ask" for the seller's ask trade state.
func (h *QueryHandler) Derive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := queryParser{q: q}
	scheme := h.svc.Scheme()

	var (
		addr  domain.Address
		nonce uint8
		err   error
	)
	switch kind := r.PathValue("kind"); kind {
	case "trade-state":
		wallet, ah, ta, tm, mint := p.addr("wallet"), p.addr("auction_house"), p.addr("token_account"), p.addr("treasury_mint"), p.addr("token_mint")
		price, size := p.price("price"), p.uint("size")
		if p.err == nil {
			addr, nonce, err = scheme.TradeState(wallet, ah, ta, tm, mint, price, size)
		}
	case "escrow":
		ah, wallet := p.addr("auction_house"), p.addr("wallet")
		if p.err == nil {
			addr, nonce, err = scheme.Escrow(ah, wallet)
		}
	case "listing":
		wallet, ah, ta, tm, mint := p.addr("wallet"), p.addr("auction_house"), p.addr("token_account"), p.addr("treasury_mint"), p.addr("token_mint")
		size := p.uint("size")
		if p.err == nil {
			addr, nonce, err = scheme.ListingConfig(wallet, ah, ta, tm, mint, size)
		}
	case "delegate":
		ah := p.addr("auction_house")
		if p.err == nil {
			addr, nonce, err = scheme.Delegate(ah)
		}
	case "program-as-signer":
		addr, nonce, err = scheme.ProgramAsSigner()
	default:
		writeError(w, http.StatusNotFound, "unknown derivation "+kind)
		return
	}
	if p.err != nil {
		err = p.err
	}
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, derived{Address: addr, Nonce: nonce})
}

// Events serves GET /api/v1/events?since=ID&limit=N from the durable
// stream.
func (h *QueryHandler) Events(w http.ResponseWriter, r *http.Request) {
	since := r.URL.Query().Get("since")
	msgs, err := h.bus.StreamRead(r.Context(), domain.StreamAuctionEvents, since, parseListOpts(r).Limit)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	type entry struct {
		ID    string       `json:"id"`
		Event domain.Event `json:"event"`
	}
	out := make([]entry, 0, len(msgs))
	for _, m := range msgs {
		var ev domain.Event
		if err := json.Unmarshal(m.Payload, &ev); err != nil {
			h.logger.WarnContext(r.Context(), "skipping undecodable stream entry", slog.String("id", m.ID))
			continue
		}
		out = append(out, entry{ID: m.ID, Event: ev})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// Audit serves GET /api/v1/audit, newest first.
func (h *QueryHandler) Audit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// queryParser keeps the first error so call sites stay flat.
type queryParser struct {
	q   map[string][]string
	err error
}

func (p *queryParser) get(name string) string {
	if v := p.q[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (p *queryParser) addr(name string) domain.Address {
	if p.err != nil {
		return domain.ZeroAddress
	}
	a, err := addressParam(p.get(name), name)
	p.err = err
	return a
}

func (p *queryParser) uint(name string) uint64 {
	if p.err != nil {
		return 0
	}
	n, err := strconv.ParseUint(p.get(name), 10, 64)
	if err != nil {
		p.err = &paramError{name: name, msg: "must be an unsigned integer"}
	}
	return n
}

func (p *queryParser) price(name string) uint64 {
	if p.get(name) == "ask" {
		return domain.AskPrice
	}
	return p.uint(name)
}
