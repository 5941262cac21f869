package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sigweihq/smartwallet/pkg/chains"
)

const defaultHealthTimeout = 3 * time.Second

// Dialer opens a node backend for an endpoint
type Dialer func(ctx context.Context, endpoint string) (chains.Backend, error)

// DialEthClient is the default Dialer
func DialEthClient(ctx context.Context, endpoint string) (chains.Backend, error) {
	return ethclient.DialContext(ctx, endpoint)
}

// EndpointSelector picks the first node endpoint that answers a best block query.
// Endpoints are tried in the configured order; unhealthy ones are skipped.
type EndpointSelector struct {
	dial          Dialer
	healthTimeout time.Duration
	logger        *slog.Logger
}

// NewEndpointSelector creates a selector dialing with ethclient.
// If logger is nil, slog.Default() will be used.
func NewEndpointSelector(logger *slog.Logger) *EndpointSelector {
	if logger == nil {
		logger = slog.Default()
	}
	return &EndpointSelector{
		dial:          DialEthClient,
		healthTimeout: defaultHealthTimeout,
		logger:        logger,
	}
}

// WithDialer replaces the dialer
func (s *EndpointSelector) WithDialer(d Dialer) *EndpointSelector {
	s.dial = d
	return s
}

// WithHealthTimeout bounds each endpoint's health check
func (s *EndpointSelector) WithHealthTimeout(d time.Duration) *EndpointSelector {
	s.healthTimeout = d
	return s
}

// Select returns a client for the first healthy endpoint
func (s *EndpointSelector) Select(ctx context.Context, network string, endpoints []string) (*RPCClient, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured for network %s", network)
	}

	var errs []error
	for _, endpoint := range endpoints {
		client, err := s.check(ctx, network, endpoint)
		if err != nil {
			s.logger.Warn("node endpoint unhealthy", "network", network, "endpoint", endpoint, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
			continue
		}
		s.logger.Debug("node endpoint selected", "network", network, "endpoint", endpoint)
		return client, nil
	}
	return nil, &RPCError{Method: "dial", Err: errors.Join(errs...)}
}

func (s *EndpointSelector) check(ctx context.Context, network, endpoint string) (*RPCClient, error) {
	backend, err := s.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	client := NewRPCClient(network, backend)

	ctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()
	if _, err := client.BestBlockRef(ctx); err != nil {
		closeBackend(backend)
		return nil, err
	}
	return client, nil
}

// closeBackend releases the connection of a rejected endpoint; *ethclient.Client implements Close
func closeBackend(backend chains.Backend) {
	if c, ok := backend.(interface{ Close() }); ok {
		c.Close()
	}
}
