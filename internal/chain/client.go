/*

Minimal read-only JSON-RPC client for EVM-style nodes. The engine only ever
reads contract state (eth_call); it never signs or broadcasts. Calls are
wrapped in a circuit breaker so a flapping node trips open instead of
stalling every decision tick on timeouts.

*/

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/stablerotor/rotor/internal/logger"
)

var (
	ErrRPCFailure  = errors.New("rpc request failed")
	ErrUnsupported = errors.New("contract function unsupported")
)

const DEFAULT_CALL_TIMEOUT = 10 * time.Second

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client is a read-only JSON-RPC client bound to one endpoint.
type Client struct {
	logger      zerolog.Logger
	rpcURL      string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	callTimeout time.Duration
}

// Options configures a Client. Zero fields take defaults.
type Options struct {
	RPCURL      string
	HTTPClient  *http.Client
	CallTimeout time.Duration
}

// NewClient creates a client for the given RPC endpoint.
func NewClient(opts Options) (*Client, error) {
	if opts.RPCURL == "" {
		return nil, errors.New("rpc url is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DEFAULT_CALL_TIMEOUT
	}

	clientLogger := logger.GetForComponent("chain_client")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rpc:" + opts.RPCURL,
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			clientLogger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("RPC circuit breaker state change")
		},
	})

	return &Client{
		logger:      clientLogger,
		rpcURL:      opts.RPCURL,
		httpClient:  opts.HTTPClient,
		breaker:     breaker,
		callTimeout: opts.CallTimeout,
	}, nil
}

// Call performs one JSON-RPC method call through the circuit breaker.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doCall(ctx, method, params)
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func (c *Client) doCall(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRPCFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRPCFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRPCFailure, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %w", ErrRPCFailure, err)
	}
	if rpcResp.Error != nil {
		// A revert on a view call means the function does not exist on this
		// contract (old vault probed for new-style functions). Surface that
		// as unsupported, not as a transport error.
		if isRevertMessage(rpcResp.Error.Message) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, rpcResp.Error.Message)
		}
		return nil, fmt.Errorf("%w: rpc error %d: %s", ErrRPCFailure, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return rpcResp.Result, nil
}

// EthCall performs eth_call against a contract and returns the raw hex result.
// An empty result ("0x") from a selector the contract does not implement is
// reported as ErrUnsupported.
func (c *Client) EthCall(ctx context.Context, to string, data string) (string, error) {
	raw, err := c.Call(ctx, "eth_call", map[string]string{"to": to, "data": data}, "latest")
	if err != nil {
		return "", err
	}

	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return "", fmt.Errorf("%w: malformed eth_call result: %w", ErrRPCFailure, err)
	}
	if hexResult == "" || hexResult == "0x" {
		return "", fmt.Errorf("%w: empty return data", ErrUnsupported)
	}
	return hexResult, nil
}

func isRevertMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "revert") || strings.Contains(lower, "invalid opcode")
}
