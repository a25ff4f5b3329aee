// Package di contains dependency injection tokens for the swap context.
package di

import (
	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/business/swap/infra/chswap"
	"github.com/fd1az/chswap-kiosk/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Orchestrator = di.NewToken[*app.Orchestrator]("swap.Orchestrator")
	Feed         = di.NewToken[*app.Feed]("swap.Feed")
	Reporter     = di.NewToken[app.Reporter]("swap.Reporter")
)

// Private dependency tokens - internal to swap module
var (
	Reader    = di.NewToken[*chswap.Reader]("swap:reader")
	Wallet    = di.NewToken[*chswap.Wallet]("swap:wallet")
	Submitter = di.NewToken[app.Submitter]("swap:submitter")
	Watcher   = di.NewToken[app.ConfirmationWatcher]("swap:watcher")
)

func GetOrchestrator(c di.ServiceRegistry) *app.Orchestrator {
	return di.GetToken(c, Orchestrator)
}

func GetFeed(c di.ServiceRegistry) *app.Feed {
	return di.GetToken(c, Feed)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}

func GetReader(c di.ServiceRegistry) *chswap.Reader {
	return di.GetToken(c, Reader)
}

func GetWallet(c di.ServiceRegistry) *chswap.Wallet {
	return di.GetToken(c, Wallet)
}

func GetSubmitter(c di.ServiceRegistry) app.Submitter {
	return di.GetToken(c, Submitter)
}

func GetWatcher(c di.ServiceRegistry) app.ConfirmationWatcher {
	return di.GetToken(c, Watcher)
}
