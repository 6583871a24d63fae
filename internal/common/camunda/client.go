// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/jonboulle/clockwork"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"travel-concierge/internal/common/errors"
)

// Client starts fulfilment processes on a Zeebe gateway and exposes the raw
// client to the job workers.
type Client struct {
	client zbc.Client
	config *ClientConfig
	clock  clockwork.Clock
}

// ClientConfig holds configuration for the Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds retries of Unavailable, ResourceExhausted,
// DeadlineExceeded and Aborted gateway answers.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient dials the gateway in plaintext and checks the topology.
func NewClient(address string) (*Client, error) {
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         30 * time.Second,
		RetryConfig:            DefaultRetryConfig,
	})
}

func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{client: zeebeClient, config: config, clock: clockwork.NewRealClock()}, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// StartProcess creates an instance of the latest deployed version of processID.
// Gateway failures come back as WORKFLOW_* or TIMEOUT_ERROR StandardErrors.
func (c *Client) StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error) {
	var key int64
	attempts, err := retry(ctx, c.clock, c.config.RetryConfig, func(ctx context.Context) error {
		cmd, err := c.client.NewCreateInstanceCommand().
			BPMNProcessId(processID).
			LatestVersion().
			VariablesFromObject(variables)
		if err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()

		resp, err := cmd.Send(reqCtx)
		if err != nil {
			return err
		}
		key = resp.GetProcessInstanceKey()
		return nil
	})
	if err != nil {
		return 0, startError(processID, attempts, err)
	}
	return key, nil
}

// retry calls fn until it succeeds, fails with a non-transient code or runs
// out of attempts. Delays double from BaseDelay up to MaxDelay. It returns
// the number of attempts made.
func retry(ctx context.Context, clock clockwork.Clock, cfg *RetryConfig, fn func(context.Context) error) (int, error) {
	delay := cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !transient(err) || attempt > cfg.MaxRetries {
			return attempt, err
		}

		select {
		case <-clock.After(delay):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
		if delay *= 2; delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// transient reports whether the gateway may accept the same request later.
func transient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return true
	}
	return false
}

func startError(processID string, attempts int, err error) error {
	if ctxErr := status.FromContextError(err); ctxErr.Code() != codes.Unknown {
		err = ctxErr.Err()
	}
	detail := fmt.Errorf("start %s, %d attempt(s): %w", processID, attempts, err)

	switch status.Code(err) {
	case codes.NotFound:
		return errors.NewWorkflowNotDeployedError(processID)
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError("zeebe", detail)
	case codes.Unauthenticated, codes.PermissionDenied:
		return errors.NewAuthenticationError(detail.Error())
	case codes.InvalidArgument:
		return errors.NewInvalidPayloadError(detail.Error())
	default:
		return errors.NewWorkflowStartFailedError(processID, detail)
	}
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
