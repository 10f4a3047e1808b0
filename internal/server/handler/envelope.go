package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctioneer/internal/crypto"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

const maxBodyBytes = 64 << 10

// Envelope wraps every mutating request. Signature is optional; without it
// the caller is known only by the claimed signer and is not Signed.
type Envelope struct {
	Payload   json.RawMessage `json:"payload"`
	Signer    string          `json:"signer"`
	Timestamp int64           `json:"timestamp"`
	Nonce     int64           `json:"nonce"`
	Signature string          `json:"signature,omitempty"`
}

// Verifier recovers the signer of an envelope and burns its nonce.
type Verifier struct {
	domain crypto.Domain
	guard  *crypto.ReplayGuard
}

func NewVerifier(d crypto.Domain, guard *crypto.ReplayGuard) *Verifier {
	return &Verifier{domain: d, guard: guard}
}

// Caller checks env for operation op.
func (v *Verifier) Caller(ctx context.Context, op string, env Envelope) (domain.Caller, error) {
	if env.Signer == "" {
		if env.Signature != "" {
			return domain.Caller{}, fmt.Errorf("signature without signer: %w", domain.ErrBadRequest)
		}
		return domain.Caller{}, nil
	}
	if !common.IsHexAddress(env.Signer) {
		return domain.Caller{}, fmt.Errorf("signer %q is not a hex address: %w", env.Signer, domain.ErrBadRequest)
	}
	signer := common.HexToAddress(env.Signer)
	caller := domain.Caller{Address: domain.WalletAddress(signer)}
	if env.Signature == "" {
		return caller, nil
	}

	req := crypto.Request{Operation: op, Payload: env.Payload, Timestamp: env.Timestamp, Nonce: env.Nonce}
	got, err := v.domain.RecoverRequest(req, env.Signature)
	if err != nil {
		return domain.Caller{}, err
	}
	if got != signer {
		return domain.Caller{}, fmt.Errorf("%w: recovered %s, claimed %s", crypto.ErrBadSignature, got.Hex(), signer.Hex())
	}
	if err := v.guard.Check(ctx, signer, req); err != nil {
		return domain.Caller{}, err
	}
	caller.Signed = true
	return caller, nil
}

// decodeEnvelope reads the envelope, authenticates it and decodes the
// payload into dst.
func (v *Verifier) decodeEnvelope(w http.ResponseWriter, r *http.Request, op string, dst any) (domain.Caller, error) {
	var env Envelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&env); err != nil {
		return domain.Caller{}, fmt.Errorf("invalid envelope: %v: %w", err, domain.ErrBadRequest)
	}
	if len(env.Payload) == 0 {
		return domain.Caller{}, fmt.Errorf("envelope has no payload: %w", domain.ErrBadRequest)
	}
	caller, err := v.Caller(r.Context(), op, env)
	if err != nil {
		return domain.Caller{}, err
	}
	pdec := json.NewDecoder(bytes.NewReader(env.Payload))
	pdec.DisallowUnknownFields()
	if err := pdec.Decode(dst); err != nil {
		return domain.Caller{}, fmt.Errorf("invalid %s payload: %v: %w", op, err, domain.ErrBadRequest)
	}
	return caller, nil
}
