// Package asset models on-chain assets and converts between decimal strings
// and integer units. Arithmetic stays in big.Int; decimal.Decimal is only
// used at the parsing and display boundary.
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID identifies an asset by chain and contract address.
// The zero address denotes the chain's native coin.
type AssetID struct {
	chainID uint64
	address common.Address
}

// NewNativeAssetID creates an AssetID for a chain's native coin.
func NewNativeAssetID(chainID uint64) AssetID {
	return AssetID{chainID: chainID}
}

// NewTokenAssetID creates an AssetID for an ERC20 token.
func NewTokenAssetID(chainID uint64, addr common.Address) AssetID {
	if addr == (common.Address{}) {
		panic("asset: token address cannot be zero")
	}
	return AssetID{chainID: chainID, address: addr}
}

func (id AssetID) ChainID() uint64 {
	return id.chainID
}

func (id AssetID) Address() common.Address {
	return id.address
}

// IsNative returns true for a native coin.
func (id AssetID) IsNative() bool {
	return id.address == (common.Address{})
}

func (id AssetID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.chainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}

func (id AssetID) Equals(other AssetID) bool {
	return id == other
}
