// Package evm implements the cryptographic half of the exact payment scheme
// on EVM networks: EIP-712 hashing and signing of EIP-3009
// TransferWithAuthorization messages, plus the per-network default asset
// configuration used to build payment requirements.
package evm

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// TypedDataDomain is the EIP-712 domain separator.
type TypedDataDomain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
}

// TypedDataField is one field of an EIP-712 type definition.
type TypedDataField struct {
	Name string
	Type string
}

// Signer is the wallet capability the engine signs with. It exposes only
// what EIP-191 and EIP-712 require; key material never crosses the
// interface, so in-process keys, remote wallets, and HSMs slot in unchanged.
type Signer interface {
	// Address returns the signer's Ethereum address (checksummed hex).
	Address() string

	// SignMessage signs a raw message per EIP-191.
	SignMessage(ctx context.Context, message []byte) ([]byte, error)

	// SignTypedData signs EIP-712 typed data and returns the 65-byte
	// (r, s, v) signature.
	SignTypedData(
		ctx context.Context,
		domain TypedDataDomain,
		types map[string][]TypedDataField,
		primaryType string,
		message map[string]interface{},
	) ([]byte, error)
}

// NewNonce returns a fresh 32-byte nonce as 0x-prefixed hex.
func NewNonce() (string, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return "0x" + hex.EncodeToString(nonce[:]), nil
}

// HexToBytes decodes a hex string with or without the 0x prefix.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}
	return b, nil
}

// BytesToHex encodes bytes as a 0x-prefixed hex string.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
