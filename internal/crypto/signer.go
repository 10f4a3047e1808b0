package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Domain name and version of every EIP-712 message in this package.
const (
	DomainName    = "Auctioneer"
	DomainVersion = "1"
)

var (
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)
	requestTypeHash = ethcrypto.Keccak256(
		[]byte("AuctioneerRequest(string operation,bytes32 payloadHash,uint256 timestamp,uint256 nonce)"),
	)
	instructionTypeHash = ethcrypto.Keccak256(
		[]byte("EngineInstruction(bytes32 instructionHash,uint256 timestamp)"),
	)
)

// ErrBadSignature is returned when a signature cannot be decoded or
// recovered.
var ErrBadSignature = errors.New("crypto: bad signature")

// Request is the signed part of an API envelope.
type Request struct {
	Operation string
	Payload   []byte
	Timestamp int64
	Nonce     int64
}

func (r Request) structHash() []byte {
	return ethcrypto.Keccak256(concatBytes(
		requestTypeHash,
		ethcrypto.Keccak256([]byte(r.Operation)),
		ethcrypto.Keccak256(r.Payload),
		bigIntTo32Bytes(big.NewInt(r.Timestamp)),
		bigIntTo32Bytes(big.NewInt(r.Nonce)),
	))
}

// Domain is an EIP-712 domain bound to one chain id.
type Domain struct {
	separator []byte
}

// NewDomain computes the separator for chainID.
func NewDomain(chainID int64) Domain {
	return Domain{separator: ethcrypto.Keccak256(concatBytes(
		eip712DomainTypeHash,
		ethcrypto.Keccak256([]byte(DomainName)),
		ethcrypto.Keccak256([]byte(DomainVersion)),
		bigIntTo32Bytes(big.NewInt(chainID)),
	))}
}

// RequestDigest is keccak256("\x19\x01" || separator || structHash).
func (d Domain) RequestDigest(r Request) []byte {
	return eip712Hash(d.separator, r.structHash())
}

// InstructionDigest binds an engine instruction body to a timestamp.
func (d Domain) InstructionDigest(body []byte, timestamp int64) []byte {
	return eip712Hash(d.separator, ethcrypto.Keccak256(concatBytes(
		instructionTypeHash,
		ethcrypto.Keccak256(body),
		bigIntTo32Bytes(big.NewInt(timestamp)),
	)))
}

// RecoverRequest returns the address that signed r.
func (d Domain) RecoverRequest(r Request, signature string) (common.Address, error) {
	return recoverDigest(d.RequestDigest(r), signature)
}

// RecoverInstruction returns the address that signed an engine instruction.
func (d Domain) RecoverInstruction(body []byte, timestamp int64, signature string) (common.Address, error) {
	return recoverDigest(d.InstructionDigest(body, timestamp), signature)
}

// Signer holds a secp256k1 key and signs in one domain.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domain     Domain
}

// NewSigner parses a hex private key, with or without 0x.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		domain:     NewDomain(chainID),
	}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) Domain() Domain {
	return s.domain
}

// SignRequest signs an API envelope.
func (s *Signer) SignRequest(r Request) (string, error) {
	return s.signDigest(s.domain.RequestDigest(r))
}

// SignInstruction signs the JSON body of an engine instruction.
func (s *Signer) SignInstruction(body []byte, timestamp int64) (string, error) {
	return s.signDigest(s.domain.InstructionDigest(body, timestamp))
}

// signDigest returns 0x-prefixed r || s || v with v in {27, 28}.
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

func recoverDigest(digest []byte, signature string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: want 65 hex bytes", ErrBadSignature)
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(concatBytes([]byte{0x19, 0x01}, domainSep, structHash))
}

// bigIntTo32Bytes returns n as a 32-byte big-endian word.
func bigIntTo32Bytes(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
