package crypto

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestSignAndRecoverRequest(t *testing.T) {
	s, err := NewSigner(testKey, 1)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), s.Address())

	req := Request{Operation: "sell", Payload: []byte(`{"tokenSize":1}`), Timestamp: 1700000000, Nonce: 7}
	sig, err := s.SignRequest(req)
	require.NoError(t, err)

	got, err := s.Domain().RecoverRequest(req, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), got)

	tampered := req
	tampered.Payload = []byte(`{"tokenSize":2}`)
	got, err = s.Domain().RecoverRequest(tampered, sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), got)

	got, err = NewDomain(5).RecoverRequest(req, sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), got, "chain id is part of the domain")

	_, err = s.Domain().RecoverRequest(req, "0x1234")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestSignInstruction(t *testing.T) {
	s, err := NewSigner(testKey[2:], 1)
	require.NoError(t, err)
	body := []byte(`{"kind":"deposit"}`)
	sig, err := s.SignInstruction(body, 42)
	require.NoError(t, err)

	got, err := s.Domain().RecoverInstruction(body, 42, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), got)

	got, err = s.Domain().RecoverInstruction(body, 43, sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), got)
}

func TestKeyFileRoundTrip(t *testing.T) {
	blob, err := encryptKey(testKey, "hunter2", 1000)
	require.NoError(t, err)

	key, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey[2:], key)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
	_, err = DecryptKey(blob, "")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "operator.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))
	s, err := LoadSigner(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"}, 1)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), s.Address())
}

func TestLoadKey(t *testing.T) {
	k, err := LoadKey(KeyConfig{RawPrivateKey: testKey, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, testKey[2:], k)

	_, err = LoadKey(KeyConfig{RawPrivateKey: "0xzz"})
	assert.Error(t, err)
	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)
	_, err = EncryptKey("0x01", "pw")
	assert.Error(t, err)
}

func TestHMACHeaders(t *testing.T) {
	h := &HMACAuth{Key: "key-1", Secret: "c2VjcmV0", Passphrase: "pass"}
	headers := h.HeadersAt("POST", "/v1/instructions", `{"a":1}`, 1700000000)

	assert.Equal(t, "key-1", headers[HeaderAPIKey])
	assert.Equal(t, "1700000000", headers[HeaderTimestamp])
	assert.Equal(t, "pass", headers[HeaderPassphrase])
	assert.True(t, h.Verify(`1700000000POST/v1/instructions{"a":1}`, headers[HeaderSignature]))
	assert.False(t, h.Verify(`1700000001POST/v1/instructions{"a":1}`, headers[HeaderSignature]))
	assert.NotContains(t, h.String(), "c2VjcmV0")
}

type mapNonces map[string]bool

func (m mapNonces) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m[key] {
		return false, nil
	}
	m[key] = true
	return true, nil
}

func TestReplayGuard(t *testing.T) {
	now := time.Unix(1700000000, 0)
	g := NewReplayGuard(mapNonces{}, 30*time.Second).WithClock(func() time.Time { return now })
	signer := common.HexToAddress(testAddress)
	ctx := context.Background()

	req := Request{Operation: "buy", Timestamp: now.Unix(), Nonce: 1}
	require.NoError(t, g.Check(ctx, signer, req))
	assert.ErrorIs(t, g.Check(ctx, signer, req), ErrReplayedRequest)

	req.Nonce = 2
	require.NoError(t, g.Check(ctx, common.Address{}, Request{Timestamp: now.Unix(), Nonce: 1}))
	req.Timestamp = now.Add(-time.Minute).Unix()
	assert.ErrorIs(t, g.Check(ctx, signer, req), ErrStaleRequest)
	req.Timestamp = now.Add(time.Minute).Unix()
	assert.ErrorIs(t, g.Check(ctx, signer, req), ErrStaleRequest)
}
