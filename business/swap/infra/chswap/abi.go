// Package chswap adapts the CHSwap exchange contract and its ERC-20 pair
// tokens to the swap ports.
package chswap

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract method names.
const (
	methodBuyPrice  = "buyPricePer1000CHP_USDC"
	methodSellPrice = "sellPricePer1000CHP_USDC"
	methodBuy       = "buyCHP"
	methodSell      = "sellCHP"

	methodApprove   = "approve"
	methodAllowance = "allowance"
	methodBalanceOf = "balanceOf"
	methodDecimals  = "decimals"
)

// ExchangeABI covers the CHSwap functions the kiosk calls. Prices are
// quote-token units per 1000 base units.
const ExchangeABI = `[
	{
		"inputs": [],
		"name": "buyPricePer1000CHP_USDC",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "sellPricePer1000CHP_USDC",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "usdcAmount", "type": "uint256"}],
		"name": "buyCHP",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "chpAmount", "type": "uint256"}],
		"name": "sellCHP",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// ERC20ABI is the subset of ERC-20 used for balances and allowances.
const ERC20ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	exchangeABIOnce sync.Once
	exchangeABI     abi.ABI
	exchangeABIErr  error

	erc20ABIOnce sync.Once
	erc20ABI     abi.ABI
	erc20ABIErr  error
)

func exchangeABIInstance() (abi.ABI, error) {
	exchangeABIOnce.Do(func() {
		exchangeABI, exchangeABIErr = abi.JSON(strings.NewReader(ExchangeABI))
	})
	return exchangeABI, exchangeABIErr
}

func erc20ABIInstance() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(ERC20ABI))
	})
	return erc20ABI, erc20ABIErr
}
