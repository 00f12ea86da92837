/*

HTTP client for the bot's /state status document. Used by the migration
monitor to probe running instances; kept deliberately thin so a probe
failure is data, not a crash.

*/

package botclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stablerotor/rotor/internal/types"
)

const (
	DEFAULT_REQUEST_TIMEOUT = 10 * time.Second
	STATUS_TOKEN_HEADER     = "x-bot-status-token"
)

var ErrUnexpectedStatus = errors.New("unexpected HTTP status from bot")

// Client fetches the status document from one bot instance.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a status client for the given base URL. The token may be
// empty when the target instance does not require one.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: DEFAULT_REQUEST_TIMEOUT},
	}
}

// FetchState retrieves and decodes the /state document. The HTTP status code
// is returned alongside errors so callers can distinguish "down" from
// "up but unhealthy".
func (c *Client) FetchState(ctx context.Context) (types.BotState, int, error) {
	var botState types.BotState

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/state", nil)
	if err != nil {
		return botState, 0, fmt.Errorf("failed to create state request: %w", err)
	}
	if c.token != "" {
		req.Header.Set(STATUS_TOKEN_HEADER, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return botState, 0, fmt.Errorf("state request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return botState, resp.StatusCode, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&botState); err != nil {
		return botState, resp.StatusCode, fmt.Errorf("failed to decode state document: %w", err)
	}
	return botState, resp.StatusCode, nil
}
