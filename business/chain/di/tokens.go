// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/chswap-kiosk/business/chain/app"
	"github.com/fd1az/chswap-kiosk/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("chain.ChainService")
)

// Private dependency tokens - internal to chain module
var (
	HeadSubscriber = di.NewToken[app.HeadSubscriber]("chain:headSubscriber")
	GasOracle      = di.NewToken[app.GasOracle]("chain:gasOracle")
)

func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetHeadSubscriber(c di.ServiceRegistry) app.HeadSubscriber {
	return di.GetToken(c, HeadSubscriber)
}

func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}
