package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// AddressLength is the byte length of every account identity.
const AddressLength = 32

// walletPrefixLen is the number of leading zero bytes reserved for wallet
// identities. A wallet address is a 20-byte secp256k1 address left-padded
// into this namespace.
const walletPrefixLen = AddressLength - common.AddressLength

// Address is a 32-byte account identity, rendered as base58.
type Address [AddressLength]byte

// ZeroAddress is the all-zero identity.
var ZeroAddress Address

// WalletAddress lifts an externally controlled secp256k1 address into the
// reserved wallet namespace.
func WalletAddress(a common.Address) Address {
	var out Address
	copy(out[walletPrefixLen:], a.Bytes())
	return out
}

// AddressFromBytes copies b into an Address. b must be exactly 32 bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var out Address
	if len(b) != AddressLength {
		return out, fmt.Errorf("address: want %d bytes, got %d", AddressLength, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseAddress accepts either a base58 32-byte identity or a 0x-prefixed
// 20-byte wallet address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw, err := hex.DecodeString(s[2:])
		if err != nil || len(raw) != common.AddressLength {
			return ZeroAddress, fmt.Errorf("address: invalid wallet address %q", s)
		}
		return WalletAddress(common.BytesToAddress(raw)), nil
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return ZeroAddress, fmt.Errorf("address: decode %q: %w", s, err)
	}
	return AddressFromBytes(raw)
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns a copy of the raw identity.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// IsWallet reports whether a lies in the externally controllable namespace.
func (a Address) IsWallet() bool {
	for _, b := range a[:walletPrefixLen] {
		if b != 0 {
			return false
		}
	}
	return true
}

// Wallet returns the secp256k1 address behind a wallet identity.
func (a Address) Wallet() (common.Address, bool) {
	if !a.IsWallet() || a.IsZero() {
		return common.Address{}, false
	}
	return common.BytesToAddress(a[walletPrefixLen:]), true
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
