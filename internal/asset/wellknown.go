package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDCelo          = 42220
	ChainIDCeloAlfajores = 44787
)

// Precisions of the kiosk pair.
const (
	DecimalsCHP  uint8 = 0
	DecimalsUSDC uint8 = 6
)

// AddrUSDCCelo is Circle's native USDC on Celo mainnet.
var AddrUSDCCelo = common.HexToAddress("0xcebA9300f2b948710d2653dD7B07f33A8B32118C")

// NewToken creates an ERC20 token asset.
func NewToken(chainID uint64, address common.Address, symbol, name string, decimals uint8) *Asset {
	return NewAssetWithName(NewTokenAssetID(chainID, address), symbol, name, decimals)
}

// NewPairRegistry registers the base and quote tokens of the kiosk.
func NewPairRegistry(base, quote *Asset) (*Registry, error) {
	r := NewRegistry()
	if err := r.Register(base); err != nil {
		return nil, err
	}
	if err := r.Register(quote); err != nil {
		return nil, err
	}
	return r, nil
}
