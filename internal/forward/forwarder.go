// Package forward turns a typed account set into the exact positional
// authorization list a base engine operation expects and submits it with
// an explicit capability token. The delegate identity has no key; the
// engine proves it by re-deriving the delegate from the token.
package forward

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// AccountMeta is one entry of the authorization list.
type AccountMeta struct {
	Role     Role           `json:"role"`
	Address  domain.Address `json:"address"`
	Signer   bool           `json:"signer"`
	Writable bool           `json:"writable"`
}

// CapabilityToken names the delegate and the scope it exercises. The engine
// re-derives Delegate from AuctionHouse and Nonce and checks Scope against
// its own record before honoring the call.
type CapabilityToken struct {
	AuctionHouse domain.Address `json:"auction_house"`
	Delegate     domain.Address `json:"delegate"`
	Nonce        uint8          `json:"nonce"`
	Scope        domain.Scope   `json:"scope"`
}

// Instruction is the request submitted to the base engine.
type Instruction struct {
	Op         Op              `json:"op"`
	Accounts   []AccountMeta   `json:"accounts"`
	Args       Args            `json:"args"`
	Capability CapabilityToken `json:"capability"`
}

// UnmarshalJSON restores the concrete Args type from Op.
func (ix *Instruction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op         Op              `json:"op"`
		Accounts   []AccountMeta   `json:"accounts"`
		Args       json.RawMessage `json:"args"`
		Capability CapabilityToken `json:"capability"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	args, err := decodeArgs(raw.Op, raw.Args)
	if err != nil {
		return err
	}
	*ix = Instruction{Op: raw.Op, Accounts: raw.Accounts, Args: args, Capability: raw.Capability}
	return nil
}

// Meta returns the entry for role.
func (ix Instruction) Meta(role Role) (AccountMeta, bool) {
	for _, m := range ix.Accounts {
		if m.Role == role {
			return m, true
		}
	}
	return AccountMeta{}, false
}

// Engine is the base escrow engine.
type Engine interface {
	Invoke(ctx context.Context, ix Instruction) error
}

// Observer receives the outcome of every submitted instruction.
type Observer interface {
	ObserveForward(op string, err error, elapsed time.Duration)
}

// Forwarder builds and submits delegated instructions.
type Forwarder struct {
	engine   Engine
	observer Observer
	logger   *slog.Logger
}

// New creates a Forwarder. observer may be nil.
func New(engine Engine, observer Observer, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		engine:   engine,
		observer: observer,
		logger:   logger.With(slog.String("component", "forwarder")),
	}
}

// Build maps refs onto the schema for op. Every schema role must appear
// exactly once and in schema order. An entry is a signer when its address
// is in signers or equals delegate.
func Build(op Op, refs []RoleRef, signers []domain.Address, delegate domain.Address) ([]AccountMeta, error) {
	schema, ok := SchemaFor(op)
	if !ok {
		return nil, fmt.Errorf("forward: unknown op %q: %w", op, domain.ErrMalformedForwardRequest)
	}
	if len(refs) != len(schema.Roles) {
		return nil, fmt.Errorf("forward: %s: %d accounts, schema has %d: %w",
			op, len(refs), len(schema.Roles), domain.ErrMalformedForwardRequest)
	}

	metas := make([]AccountMeta, len(refs))
	for i, spec := range schema.Roles {
		ref := refs[i]
		if ref.Role != spec.Role {
			return nil, fmt.Errorf("forward: %s: position %d is %q, want %q: %w",
				op, i, ref.Role, spec.Role, domain.ErrMalformedForwardRequest)
		}
		if ref.Address.IsZero() {
			return nil, fmt.Errorf("forward: %s: %q is unset: %w", op, spec.Role, domain.ErrMalformedForwardRequest)
		}
		metas[i] = AccountMeta{
			Role:     spec.Role,
			Address:  ref.Address,
			Signer:   ref.Address == delegate || contains(signers, ref.Address),
			Writable: spec.Writable,
		}
	}
	return metas, nil
}

// Forward checks the delegate's scope, builds the authorization list and
// submits the instruction. Engine rejections are returned unchanged inside
// the wrap.
func (f *Forwarder) Forward(ctx context.Context, d domain.AuthorityDelegation, accounts Accounts, args Args, caller domain.Caller) error {
	op := accounts.Op()
	if args == nil || args.Op() != op {
		return fmt.Errorf("forward: %s: args do not match accounts: %w", op, domain.ErrMalformedForwardRequest)
	}
	schema, ok := SchemaFor(op)
	if !ok {
		return fmt.Errorf("forward: unknown op %q: %w", op, domain.ErrMalformedForwardRequest)
	}
	if !d.CheckScope(schema.Scope) {
		return fmt.Errorf("forward: %s: delegate lacks scope %s: %w", op, schema.Scope, domain.ErrUnauthorized)
	}

	var signers []domain.Address
	if caller.Signed {
		signers = append(signers, caller.Address)
	}
	metas, err := Build(op, accounts.Refs(), signers, d.Delegate)
	if err != nil {
		return err
	}
	if m := metas[schema.Index(RoleDelegate)]; m.Address != d.Delegate {
		return fmt.Errorf("forward: %s: delegate %s is not the registered %s: %w",
			op, m.Address, d.Delegate, domain.ErrMalformedForwardRequest)
	}

	ix := Instruction{
		Op:       op,
		Accounts: metas,
		Args:     args,
		Capability: CapabilityToken{
			AuctionHouse: d.AuctionHouse,
			Delegate:     d.Delegate,
			Nonce:        d.Nonce,
			Scope:        schema.Scope,
		},
	}

	start := time.Now()
	err = f.engine.Invoke(ctx, ix)
	if f.observer != nil {
		f.observer.ObserveForward(string(op), err, time.Since(start))
	}
	if err != nil {
		f.logger.WarnContext(ctx, "engine rejected instruction",
			slog.String("op", string(op)),
			slog.String("auction_house", d.AuctionHouse.String()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("forward: %s: %w", op, err)
	}

	f.logger.DebugContext(ctx, "instruction forwarded",
		slog.String("op", string(op)),
		slog.Int("accounts", len(metas)),
	)
	return nil
}

func contains(list []domain.Address, a domain.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
