// Package ethereum provides go-ethereum adapters for the chain context.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chswap-kiosk/business/chain/app"
	"github.com/fd1az/chswap-kiosk/business/chain/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/circuitbreaker"
	"github.com/fd1az/chswap-kiosk/internal/logger"
)

const (
	tracerName = "github.com/fd1az/chswap-kiosk/business/chain/infra/ethereum"
	meterName  = "github.com/fd1az/chswap-kiosk/business/chain/infra/ethereum"
)

// HeadClient is the node API the subscriber needs. *ethclient.Client satisfies it.
type HeadClient interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	Close()
}

// Dialer opens a HeadClient for a URL.
type Dialer func(ctx context.Context, url string) (HeadClient, error)

func dialEthclient(ctx context.Context, url string) (HeadClient, error) {
	return ethclient.DialContext(ctx, url)
}

// SubscriberConfig holds configuration for the head subscriber.
type SubscriberConfig struct {
	WSURL          string        // WebSocket endpoint (primary)
	HTTPURL        string        // HTTP endpoint (fallback)
	PollInterval   time.Duration // Polling interval for HTTP fallback
	InitialBackoff time.Duration // First delay before retrying WS
	MaxBackoff     time.Duration
	BufferSize     int
}

// DefaultSubscriberConfig returns defaults tuned for Celo's ~1s blocks.
func DefaultSubscriberConfig(wsURL, httpURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		HTTPURL:        httpURL,
		PollInterval:   5 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BufferSize:     16,
	}
}

type subscriberMetrics struct {
	headsReceived    metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	headLatency      metric.Float64Histogram
	httpFallbackUsed metric.Int64Counter
}

// Subscriber streams heads over WebSocket, falling back to HTTP polling
// while the socket is unavailable.
type Subscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface
	dial   Dialer

	httpClient HeadClient
	clientMu   sync.RWMutex

	state      atomic.Value // domain.ConnectionState
	usingHTTP  atomic.Bool
	lastHead   atomic.Uint64
	lastUpdate atomic.Int64
	reconnects atomic.Int32

	heads   chan *domain.Head
	started atomic.Bool
	done    chan struct{}
	closing sync.Once

	httpCB *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// NewSubscriber creates a new head subscriber.
func NewSubscriber(cfg SubscriberConfig, log logger.LoggerInterface) (*Subscriber, error) {
	return NewSubscriberWithDialer(cfg, log, dialEthclient)
}

// NewSubscriberWithDialer creates a subscriber using a custom dialer.
func NewSubscriberWithDialer(cfg SubscriberConfig, log logger.LoggerInterface, dial Dialer) (*Subscriber, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	s := &Subscriber{
		config: cfg,
		logger: log,
		dial:   dial,
		heads:  make(chan *domain.Head, cfg.BufferSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}
	s.state.Store(domain.StateDisconnected)

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	httpCfg := circuitbreaker.DefaultConfig("chain-http-heads")
	httpCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.httpCB = circuitbreaker.New[*types.Header](httpCfg)

	return s, nil
}

func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.headsReceived, err = meter.Int64Counter(
		"chain_heads_received_total",
		metric.WithDescription("Total chain heads received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"chain_subscribe_errors_total",
		metric.WithDescription("Total head subscription errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"chain_connection_state",
		metric.WithDescription("Node connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	s.metrics.headLatency, err = meter.Float64Histogram(
		"chain_head_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"chain_http_fallback_total",
		metric.WithDescription("Times HTTP polling replaced the socket"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

// Connect dials the HTTP endpoint used for polling and LatestHead.
func (s *Subscriber) Connect(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "chain.connect.http",
		trace.WithAttributes(attribute.String("url", s.config.HTTPURL)),
	)
	defer span.End()

	if s.config.HTTPURL == "" {
		return errors.New("http url not configured")
	}

	client, err := s.dial(ctx, s.config.HTTPURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeChainConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("dial http"))
	}

	s.clientMu.Lock()
	s.httpClient = client
	s.clientMu.Unlock()

	span.SetStatus(codes.Ok, "connected")
	return nil
}

// Subscribe starts the head loop. It may be called once.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Head, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, apperror.New(apperror.CodeChainSubscribeFailed,
			apperror.WithContext("already subscribed"))
	}

	s.clientMu.RLock()
	hasHTTP := s.httpClient != nil
	s.clientMu.RUnlock()

	if !hasHTTP && s.config.HTTPURL != "" {
		if err := s.Connect(ctx); err != nil {
			s.logger.Warn(ctx, "http connect failed", "error", err)
		}
	}

	s.setState(domain.StateConnecting)
	go s.run(ctx)

	return s.heads, nil
}

func (s *Subscriber) run(ctx context.Context) {
	defer func() {
		s.setState(domain.StateDisconnected)
		close(s.heads)
	}()

	backoff := s.config.InitialBackoff
	for {
		if s.stopped(ctx) {
			return
		}

		if s.config.WSURL != "" {
			started := time.Now()
			err := s.streamWS(ctx)
			if s.stopped(ctx) {
				return
			}
			s.metrics.subscribeErrors.Add(ctx, 1)
			s.logger.Warn(ctx, "ws head stream ended", "error", err)

			// A stream that lived longer than the max backoff counts as healthy.
			if time.Since(started) > s.config.MaxBackoff {
				backoff = s.config.InitialBackoff
			}
		}

		if s.reconnects.Add(1) > 1 || s.config.WSURL == "" {
			s.setState(domain.StateReconnecting)
		}

		window := backoff
		if s.config.WSURL == "" {
			window = 0
		}
		s.usingHTTP.Store(true)
		s.metrics.httpFallbackUsed.Add(ctx, 1)
		s.pollHTTP(ctx, window)
		s.usingHTTP.Store(false)

		backoff *= 2
		if backoff > s.config.MaxBackoff {
			backoff = s.config.MaxBackoff
		}
	}
}

func (s *Subscriber) stopped(ctx context.Context) bool {
	select {
	case <-s.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// streamWS dials the socket and forwards heads until the subscription fails.
func (s *Subscriber) streamWS(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "chain.subscribe.ws",
		trace.WithAttributes(attribute.String("url", s.config.WSURL)),
	)
	defer span.End()

	client, err := s.dial(ctx, s.config.WSURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return fmt.Errorf("dial ws: %w", err)
	}
	defer client.Close()

	headers := make(chan *types.Header, s.config.BufferSize)
	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscribe failed")
		return fmt.Errorf("subscribe new head: %w", err)
	}
	defer sub.Unsubscribe()

	s.setState(domain.StateConnected)
	s.logger.Info(ctx, "subscribed to new heads via ws")

	for {
		select {
		case <-s.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			span.RecordError(err)
			return err
		case header := <-headers:
			if header != nil {
				s.processHeader(ctx, header, false)
			}
		}
	}
}

// pollHTTP polls the latest header. A zero window polls until shutdown.
func (s *Subscriber) pollHTTP(ctx context.Context, window time.Duration) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if window > 0 {
		timer := time.NewTimer(window)
		defer timer.Stop()
		deadline = timer.C
	}

	s.logger.Debug(ctx, "polling heads over http", "interval", s.config.PollInterval, "window", window)
	s.pollLatest(ctx)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			s.pollLatest(ctx)
		}
	}
}

func (s *Subscriber) pollLatest(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "chain.poll.head")
	defer span.End()

	header, err := s.fetchLatest(ctx)
	if err != nil {
		span.RecordError(err)
		s.setState(domain.StateReconnecting)
		s.logger.Debug(ctx, "http poll failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		return
	}

	s.setState(domain.StateConnected)
	if header.Number.Uint64() <= s.lastHead.Load() {
		span.AddEvent("duplicate_head")
		return
	}

	s.processHeader(ctx, header, true)
	span.SetStatus(codes.Ok, "polled")
}

func (s *Subscriber) fetchLatest(ctx context.Context) (*types.Header, error) {
	s.clientMu.RLock()
	client := s.httpClient
	s.clientMu.RUnlock()

	if client == nil {
		return nil, apperror.New(apperror.CodeChainConnectionFailed,
			apperror.WithContext("no http client connected"))
	}

	return s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, nil)
	})
}

// processHeader converts and emits a header without blocking.
func (s *Subscriber) processHeader(ctx context.Context, header *types.Header, fromHTTP bool) {
	head := headerToHead(header)

	latency := time.Since(head.Timestamp)
	s.metrics.headLatency.Record(ctx, float64(latency.Milliseconds()),
		metric.WithAttributes(attribute.Bool("from_http", fromHTTP)))

	s.lastHead.Store(head.Number)
	s.lastUpdate.Store(time.Now().UnixNano())

	select {
	case s.heads <- head:
		s.metrics.headsReceived.Add(ctx, 1)
		s.logger.Debug(ctx, "head received",
			"number", head.Number,
			"from_http", fromHTTP,
			"latency_ms", latency.Milliseconds())
	default:
		s.logger.Warn(ctx, "head dropped, buffer full", "number", head.Number)
	}
}

func headerToHead(header *types.Header) *domain.Head {
	return &domain.Head{
		Number:     header.Number.Uint64(),
		Hash:       header.Hash(),
		ParentHash: header.ParentHash,
		Timestamp:  time.Unix(int64(header.Time), 0),
		BaseFee:    header.BaseFee,
	}
}

// LatestHead fetches the most recent head over HTTP.
func (s *Subscriber) LatestHead(ctx context.Context) (*domain.Head, error) {
	ctx, span := s.tracer.Start(ctx, "chain.latest_head")
	defer span.End()

	header, err := s.fetchLatest(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeHeadNotFound,
			apperror.WithCause(err),
			apperror.WithContext("latest head"))
	}

	span.SetStatus(codes.Ok, "fetched")
	return headerToHead(header), nil
}

func (s *Subscriber) State() domain.ConnectionState {
	return s.state.Load().(domain.ConnectionState)
}

func (s *Subscriber) Status() domain.ConnectionStatus {
	var updated time.Time
	if ns := s.lastUpdate.Load(); ns != 0 {
		updated = time.Unix(0, ns)
	}

	return domain.ConnectionStatus{
		State:      s.State(),
		LastHead:   s.lastHead.Load(),
		LastUpdate: updated,
		Reconnects: int(s.reconnects.Load()),
		UsingHTTP:  s.usingHTTP.Load(),
	}
}

// Close stops the head loop and releases the HTTP client.
func (s *Subscriber) Close() error {
	s.closing.Do(func() {
		close(s.done)

		s.clientMu.Lock()
		if s.httpClient != nil {
			s.httpClient.Close()
			s.httpClient = nil
		}
		s.clientMu.Unlock()

		s.setState(domain.StateDisconnected)
	})
	return nil
}

func (s *Subscriber) setState(state domain.ConnectionState) {
	s.state.Store(state)
	s.metrics.connectionState.Record(context.Background(), state.Gauge())
}

var _ app.HeadSubscriber = (*Subscriber)(nil)
