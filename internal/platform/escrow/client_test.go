package escrow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/crypto"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/forward"
)

const operatorKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func addr(b byte) domain.Address {
	var a domain.Address
	a[31] = b
	return a
}

type fakeEngine struct {
	t        *testing.T
	hmac     *crypto.HMACAuth
	operator *crypto.Signer
	mintHits atomic.Int32
	got      []forward.Instruction
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == instructionsPath:
		body, _ := io.ReadAll(r.Body)
		ts := r.Header.Get(crypto.HeaderTimestamp)
		if !f.hmac.Verify(ts+r.Method+r.URL.Path+string(body), r.Header.Get(crypto.HeaderSignature)) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		unix, _ := strconv.ParseInt(ts, 10, 64)
		signer, err := f.operator.Domain().RecoverInstruction(body, unix, r.Header.Get(crypto.HeaderOperatorSig))
		if err != nil || signer.Hex() != r.Header.Get(crypto.HeaderOperator) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var ix forward.Instruction
		require.NoError(f.t, json.Unmarshal(body, &ix))
		f.got = append(f.got, ix)
		if ix.Op == forward.OpCancel {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"InvalidDelegate","message":"delegate mismatch"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case strings.HasPrefix(r.URL.Path, "/v1/mints/"):
		f.mintHits.Add(1)
		_ = json.NewEncoder(w).Encode(domain.Mint{Address: addr(7), Decimals: 9})
	case r.URL.Path == "/v1/metadata/"+addr(7).String():
		_, _ = w.Write([]byte(`{"address":"` + addr(8).String() + `"}`))
	case strings.HasPrefix(r.URL.Path, "/v1/auction-houses/"):
		http.Error(w, "no such house", http.StatusNotFound)
	case strings.HasPrefix(r.URL.Path, "/v1/token-accounts/"):
		w.WriteHeader(http.StatusTooManyRequests)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeEngine) {
	t.Helper()
	signer, err := crypto.NewSigner(operatorKey, 1)
	require.NoError(t, err)
	hmac := &crypto.HMACAuth{Key: "k", Secret: "c2VjcmV0", Passphrase: "p"}
	fe := &fakeEngine{t: t, hmac: hmac, operator: signer}
	srv := httptest.NewServer(fe)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", HMAC: hmac, Operator: signer})
	require.NoError(t, err)
	return c, fe
}

func TestInvokeSignsInstruction(t *testing.T) {
	c, fe := newTestClient(t)
	ix := forward.Instruction{
		Op:         forward.OpDeposit,
		Args:       forward.DepositArgs{EscrowNonce: 253, Amount: 5},
		Capability: forward.CapabilityToken{AuctionHouse: addr(1), Delegate: addr(2), Nonce: 254, Scope: domain.ScopeDeposit},
	}
	require.NoError(t, c.Invoke(context.Background(), ix))
	require.Len(t, fe.got, 1)
	assert.Equal(t, ix.Capability, fe.got[0].Capability)
	assert.Equal(t, forward.DepositArgs{EscrowNonce: 253, Amount: 5}, fe.got[0].Args)
}

func TestInvokePassesEngineErrorThrough(t *testing.T) {
	c, _ := newTestClient(t)
	err := c.Invoke(context.Background(), forward.Instruction{Op: forward.OpCancel, Args: forward.CancelArgs{BuyerPrice: 1, TokenSize: 1}})
	ee, ok := domain.AsEngineError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "InvalidDelegate", ee.Code)
	assert.Equal(t, "delegate mismatch", ee.Message)
}

func TestRegistryReads(t *testing.T) {
	c, fe := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m, err := c.Mint(ctx, addr(7))
		require.NoError(t, err)
		assert.Equal(t, uint8(9), m.Decimals)
	}
	assert.Equal(t, int32(1), fe.mintHits.Load())

	meta, err := c.Metadata(ctx, addr(7))
	require.NoError(t, err)
	assert.Equal(t, addr(8), meta)

	_, err = c.AuctionHouse(ctx, addr(1))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = c.TokenAccount(ctx, addr(1))
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestNewRequiresOperator(t *testing.T) {
	_, err := New(Config{BaseURL: "http://x"})
	assert.Error(t, err)
	_, err = New(Config{})
	assert.Error(t, err)
}
