package derive

import (
	"encoding/binary"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Domain tags.
const (
	TagAuctionHouse  = "auction_house"
	TagFeePayer      = "fee_payer"
	TagTreasury      = "treasury"
	TagSigner        = "signer"
	TagAuctioneer    = "auctioneer"
	TagListingConfig = "listing_config"
)

// U64 encodes v as an 8-byte little-endian seed.
func U64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func tag(s string) []byte { return []byte(s) }

func AuctionHouseSeeds(creator, treasuryMint domain.Address) [][]byte {
	return [][]byte{tag(TagAuctionHouse), creator[:], treasuryMint[:]}
}

func FeeAccountSeeds(auctionHouse domain.Address) [][]byte {
	return [][]byte{tag(TagAuctionHouse), auctionHouse[:], tag(TagFeePayer)}
}

func TreasurySeeds(auctionHouse domain.Address) [][]byte {
	return [][]byte{tag(TagAuctionHouse), auctionHouse[:], tag(TagTreasury)}
}

func EscrowSeeds(auctionHouse, wallet domain.Address) [][]byte {
	return [][]byte{tag(TagAuctionHouse), auctionHouse[:], wallet[:]}
}

// TradeStateSeeds includes price and size so every (price, size) pair for
// the same wallet and item is an independent trade state.
func TradeStateSeeds(wallet, auctionHouse, tokenAccount, treasuryMint, tokenMint domain.Address, price, size uint64) [][]byte {
	return [][]byte{
		tag(TagAuctionHouse),
		wallet[:],
		auctionHouse[:],
		tokenAccount[:],
		treasuryMint[:],
		tokenMint[:],
		U64(price),
		U64(size),
	}
}

func ProgramAsSignerSeeds() [][]byte {
	return [][]byte{tag(TagAuctionHouse), tag(TagSigner)}
}

// DelegateSeeds derive the auctioneer's delegate identity for an instance.
func DelegateSeeds(auctionHouse domain.Address) [][]byte {
	return [][]byte{tag(TagAuctioneer), auctionHouse[:]}
}

// EngineDelegateSeeds derive the base engine's record of a delegate.
func EngineDelegateSeeds(auctionHouse, delegate domain.Address) [][]byte {
	return [][]byte{tag(TagAuctioneer), auctionHouse[:], delegate[:]}
}

func ListingConfigSeeds(wallet, auctionHouse, tokenAccount, treasuryMint, tokenMint domain.Address, size uint64) [][]byte {
	return [][]byte{
		tag(TagListingConfig),
		wallet[:],
		auctionHouse[:],
		tokenAccount[:],
		treasuryMint[:],
		tokenMint[:],
		U64(size),
	}
}

// Scheme pairs the auctioneer's deriver with the base engine's.
type Scheme struct {
	Auctioneer *Deriver
	Engine     *Deriver
}

// NewScheme builds derivers for both programs with shared options.
func NewScheme(auctioneerProgram, engineProgram domain.Address, opts ...Option) Scheme {
	return Scheme{
		Auctioneer: New(auctioneerProgram, opts...),
		Engine:     New(engineProgram, opts...),
	}
}

func (s Scheme) AuctionHouse(creator, treasuryMint domain.Address) (domain.Address, uint8, error) {
	return s.Engine.Find(AuctionHouseSeeds(creator, treasuryMint)...)
}

func (s Scheme) FeeAccount(auctionHouse domain.Address) (domain.Address, uint8, error) {
	return s.Engine.Find(FeeAccountSeeds(auctionHouse)...)
}

func (s Scheme) Treasury(auctionHouse domain.Address) (domain.Address, uint8, error) {
	return s.Engine.Find(TreasurySeeds(auctionHouse)...)
}

func (s Scheme) Escrow(auctionHouse, wallet domain.Address) (domain.Address, uint8, error) {
	return s.Engine.Find(EscrowSeeds(auctionHouse, wallet)...)
}

func (s Scheme) TradeState(wallet, auctionHouse, tokenAccount, treasuryMint, tokenMint domain.Address, price, size uint64) (domain.Address, uint8, error) {
	return s.Engine.Find(TradeStateSeeds(wallet, auctionHouse, tokenAccount, treasuryMint, tokenMint, price, size)...)
}

func (s Scheme) ProgramAsSigner() (domain.Address, uint8, error) {
	return s.Engine.Find(ProgramAsSignerSeeds()...)
}

func (s Scheme) Delegate(auctionHouse domain.Address) (domain.Address, uint8, error) {
	return s.Auctioneer.Find(DelegateSeeds(auctionHouse)...)
}

func (s Scheme) EngineDelegate(auctionHouse, delegate domain.Address) (domain.Address, uint8, error) {
	return s.Engine.Find(EngineDelegateSeeds(auctionHouse, delegate)...)
}

func (s Scheme) ListingConfig(wallet, auctionHouse, tokenAccount, treasuryMint, tokenMint domain.Address, size uint64) (domain.Address, uint8, error) {
	return s.Auctioneer.Find(ListingConfigSeeds(wallet, auctionHouse, tokenAccount, treasuryMint, tokenMint, size)...)
}
