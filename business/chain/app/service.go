package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"

	"github.com/fd1az/chswap-kiosk/business/chain/domain"
)

// staleHeadAfter marks the connection unhealthy when no head arrived for this long.
const staleHeadAfter = 2 * time.Minute

// ChainService is the chain context facade used by other modules.
type ChainService struct {
	subscriber HeadSubscriber
	gasOracle  GasOracle
	now        func() time.Time
}

// NewChainService creates a new ChainService.
func NewChainService(subscriber HeadSubscriber, gasOracle GasOracle) *ChainService {
	return &ChainService{
		subscriber: subscriber,
		gasOracle:  gasOracle,
		now:        time.Now,
	}
}

// SubscribeHeads starts the head subscription.
func (s *ChainService) SubscribeHeads(ctx context.Context) (<-chan *domain.Head, error) {
	return s.subscriber.Subscribe(ctx)
}

func (s *ChainService) GasPrice(ctx context.Context) (*domain.GasPrice, error) {
	return s.gasOracle.GasPrice(ctx)
}

func (s *ChainService) FeeCaps(ctx context.Context) (*domain.FeeCaps, error) {
	return s.gasOracle.FeeCaps(ctx)
}

func (s *ChainService) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return s.gasOracle.EstimateGas(ctx, msg)
}

func (s *ChainService) ConnectionState() domain.ConnectionState {
	return s.subscriber.State()
}

func (s *ChainService) Status() domain.ConnectionStatus {
	return s.subscriber.Status()
}

// HealthCheck reports whether the node connection is live and fresh.
func (s *ChainService) HealthCheck(_ context.Context) (bool, string) {
	st := s.subscriber.Status()
	if st.State != domain.StateConnected {
		return false, string(st.State)
	}
	if st.LastHead == 0 {
		return true, "connected, waiting for first head"
	}

	age := s.now().Sub(st.LastUpdate)
	if age > staleHeadAfter {
		return false, fmt.Sprintf("last head %d seen %s ago", st.LastHead, age.Round(time.Second))
	}

	transport := "ws"
	if st.UsingHTTP {
		transport = "http"
	}
	return true, fmt.Sprintf("head %d via %s", st.LastHead, transport)
}
