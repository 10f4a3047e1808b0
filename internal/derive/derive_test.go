package derive

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

func addr(b byte) domain.Address {
	var a domain.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func TestCreateDeterministic(t *testing.T) {
	d := New(addr(7))
	seeds := TradeStateSeeds(addr(1), addr(2), addr(3), addr(4), addr(5), 100, 1)

	a1, n1, err := d.Find(seeds...)
	require.NoError(t, err)
	a2, n2, err := d.Find(seeds...)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, n1, n2)

	again, err := d.Create(n1, seeds...)
	require.NoError(t, err)
	assert.Equal(t, a1, again)
	assert.NoError(t, d.Verify(a1, n1, seeds...))
}

func TestSeedBoundariesSeparateIdentities(t *testing.T) {
	d := New(addr(7))
	a1, err := d.Create(0, []byte("ab"), []byte("c"))
	require.NoError(t, err)
	a2, err := d.Create(0, []byte("a"), []byte("bc"))
	require.NoError(t, err)
	a3, err := d.Create(0, []byte("abc"))
	require.NoError(t, err)

	assert.NotEqual(t, a1, a2)
	assert.NotEqual(t, a1, a3)
	assert.NotEqual(t, a2, a3)
}

func TestPriceAndSizeSeparateTradeStates(t *testing.T) {
	s := NewScheme(addr(8), addr(9))
	wallet, ah, ta, tm, mint := addr(1), addr(2), addr(3), addr(4), addr(5)

	ask, _, err := s.TradeState(wallet, ah, ta, tm, mint, domain.AskPrice, 1)
	require.NoError(t, err)
	free, _, err := s.TradeState(wallet, ah, ta, tm, mint, domain.FreePrice, 1)
	require.NoError(t, err)
	otherSize, _, err := s.TradeState(wallet, ah, ta, tm, mint, domain.AskPrice, 2)
	require.NoError(t, err)

	assert.NotEqual(t, ask, free)
	assert.NotEqual(t, ask, otherSize)
}

func TestProgramSeparatesIdentities(t *testing.T) {
	seeds := DelegateSeeds(addr(2))
	a1, _, err := New(addr(8)).Find(seeds...)
	require.NoError(t, err)
	a2, _, err := New(addr(9)).Find(seeds...)
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)
}

func TestFindSkipsExternallyControllable(t *testing.T) {
	rejected := 0
	d := New(addr(7), WithExternalCheck(func(domain.Address) bool {
		if rejected < 3 {
			rejected++
			return true
		}
		return false
	}))

	_, nonce, err := d.Find(DelegateSeeds(addr(2))...)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), nonce)
}

func TestFindNoValidNonce(t *testing.T) {
	d := New(addr(7),
		WithMaxAttempts(5),
		WithExternalCheck(func(domain.Address) bool { return true }),
	)

	_, _, err := d.Find(DelegateSeeds(addr(2))...)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoValidNonce)
}

func TestCreateRejectsWalletNamespace(t *testing.T) {
	d := New(addr(7), WithExternalCheck(func(a domain.Address) bool { return true }))
	_, err := d.Create(0, DelegateSeeds(addr(2))...)
	assert.ErrorIs(t, err, ErrExternallyControllable)
}

func TestDerivedNeverWallet(t *testing.T) {
	s := NewScheme(addr(8), addr(9))
	for i := 0; i < 32; i++ {
		wallet := domain.WalletAddress(common.BytesToAddress([]byte{byte(i), 1, 2}))
		a, _, err := s.Escrow(addr(2), wallet)
		require.NoError(t, err)
		assert.False(t, a.IsWallet())
	}
}

func TestVerifyMismatch(t *testing.T) {
	d := New(addr(7))
	seeds := EscrowSeeds(addr(2), addr(3))
	a, nonce, err := d.Find(seeds...)
	require.NoError(t, err)

	err = d.Verify(a, nonce, EscrowSeeds(addr(2), addr(4))...)
	assert.ErrorIs(t, err, ErrAddressMismatch)
}

func TestCanonicalNonce(t *testing.T) {
	d := New(addr(7))
	seeds := EscrowSeeds(addr(2), addr(3))
	want, nonce, err := d.Find(seeds...)
	require.NoError(t, err)

	got, err := d.Canonical(nonce, seeds...)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = d.Canonical(nonce+1, seeds...)
	assert.ErrorIs(t, err, ErrNonceMismatch)
}

func TestSeedLimits(t *testing.T) {
	d := New(addr(7))

	_, err := d.Create(0, bytes.Repeat([]byte{1}, MaxSeedLen+1))
	assert.ErrorIs(t, err, ErrInvalidSeeds)

	many := make([][]byte, MaxSeeds+1)
	for i := range many {
		many[i] = []byte{byte(i)}
	}
	_, err = d.Create(0, many...)
	assert.ErrorIs(t, err, ErrInvalidSeeds)
}

func TestU64LittleEndian(t *testing.T) {
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, U64(1))
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 8), U64(domain.AskPrice))
}
