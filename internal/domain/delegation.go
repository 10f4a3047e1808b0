package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bits-and-blooms/bitset"
)

// Scope is a capability a delegate may be granted on an instance.
type Scope uint

const (
	ScopeDeposit Scope = iota
	ScopeBuy
	ScopePublicBuy
	ScopeExecuteSale
	ScopeSell
	ScopeCancel
	ScopeWithdraw

	scopeCount
)

var scopeNames = [scopeCount]string{
	"deposit", "buy", "public_buy", "execute_sale", "sell", "cancel", "withdraw",
}

func (s Scope) String() string {
	if s >= scopeCount {
		return fmt.Sprintf("scope(%d)", uint(s))
	}
	return scopeNames[s]
}

// ParseScope resolves a scope by its snake_case name.
func ParseScope(name string) (Scope, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range scopeNames {
		if candidate == n {
			return Scope(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scope %q: %w", name, ErrBadRequest)
}

// AllScopes returns every defined scope in declaration order.
func AllScopes() []Scope {
	out := make([]Scope, 0, scopeCount)
	for s := Scope(0); s < scopeCount; s++ {
		out = append(out, s)
	}
	return out
}

// ScopeSet is an immutable set of scopes. The zero value is empty.
type ScopeSet struct {
	bits *bitset.BitSet
}

// NewScopeSet builds a set from the given scopes. Unknown scopes are ignored.
func NewScopeSet(scopes ...Scope) ScopeSet {
	b := bitset.New(uint(scopeCount))
	for _, s := range scopes {
		if s < scopeCount {
			b.Set(uint(s))
		}
	}
	return ScopeSet{bits: b}
}

// ScopeSetFromMask decodes the persisted bitmask form.
func ScopeSetFromMask(mask uint64) ScopeSet {
	var scopes []Scope
	for s := Scope(0); s < scopeCount; s++ {
		if mask&(1<<uint(s)) != 0 {
			scopes = append(scopes, s)
		}
	}
	return NewScopeSet(scopes...)
}

func (s ScopeSet) Has(scope Scope) bool {
	return s.bits != nil && s.bits.Test(uint(scope))
}

func (s ScopeSet) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Count())
}

// Scopes lists the members in declaration order.
func (s ScopeSet) Scopes() []Scope {
	var out []Scope
	if s.bits == nil {
		return out
	}
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		out = append(out, Scope(i))
	}
	return out
}

// Mask encodes the set as a bitmask for storage.
func (s ScopeSet) Mask() uint64 {
	var mask uint64
	for _, sc := range s.Scopes() {
		mask |= 1 << uint(sc)
	}
	return mask
}

func (s ScopeSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, s.Len())
	for _, sc := range s.Scopes() {
		names = append(names, sc.String())
	}
	return json.Marshal(names)
}

func (s *ScopeSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	scopes := make([]Scope, 0, len(names))
	for _, n := range names {
		sc, err := ParseScope(n)
		if err != nil {
			return err
		}
		scopes = append(scopes, sc)
	}
	*s = NewScopeSet(scopes...)
	return nil
}

// AuthorityDelegation records that the auctioneer's derived delegate may act
// on an instance within the granted scopes.
type AuthorityDelegation struct {
	AuctionHouse Address   `json:"auction_house"`
	Delegate     Address   `json:"delegate"`
	Nonce        uint8     `json:"nonce"`
	Scopes       ScopeSet  `json:"scopes"`
	CreatedAt    time.Time `json:"created_at"`
}

// CheckScope is a pure membership test.
func (d AuthorityDelegation) CheckScope(scope Scope) bool {
	return d.Scopes.Has(scope)
}
