package chswap

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/internal/config"
)

// Wallet is the kiosk identity. With a key it can sign; with only an
// address it is watch-only; with neither it is disconnected.
type Wallet struct {
	addr common.Address
	key  *ecdsa.PrivateKey
}

// NewWallet builds a Wallet from configuration. A private key takes
// precedence over a configured address.
func NewWallet(cfg config.WalletConfig) (*Wallet, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	if key != nil {
		return NewKeyWallet(key), nil
	}
	if cfg.Address != "" {
		return NewWatchWallet(common.HexToAddress(cfg.Address)), nil
	}
	return &Wallet{}, nil
}

// NewKeyWallet returns a signing wallet.
func NewKeyWallet(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{addr: crypto.PubkeyToAddress(key.PublicKey), key: key}
}

// NewWatchWallet returns a wallet that reads state for addr but cannot sign.
func NewWatchWallet(addr common.Address) *Wallet {
	return &Wallet{addr: addr}
}

// Address reports the wallet address and whether one is connected.
func (w *Wallet) Address() (common.Address, bool) {
	return w.addr, w.addr != (common.Address{})
}

// CanSign reports whether transactions can be signed.
func (w *Wallet) CanSign() bool {
	return w.key != nil
}

var _ app.Wallet = (*Wallet)(nil)
