package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Status of a requested outcome.
type Status string

const (
	StatusResolved    Status = "resolved"
	StatusPending     Status = "pending"
	StatusUnavailable Status = "unavailable"
)

// Result is the realized outcome for a game, or the reason it is not
// available yet.
type Result struct {
	GameID        uint     `json:"game_id"`
	Status        Status   `json:"status"`
	WinningOption string   `json:"winning_option"`
	Ranking       []string `json:"ranking"`
}

// Fetcher fetches realized outcomes from the results collaborator.
type Fetcher interface {
	FetchOutcome(ctx context.Context, gameID uint) (*Result, error)
}

// Client is the HTTP results collaborator client. The request timeout is
// bounded; on timeout the caller defers settlement rather than settling
// on incomplete data.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// FetchOutcome retrieves the realized outcome for a game. A 404 means
// the collaborator does not know the game yet and maps to unavailable.
func (c *Client) FetchOutcome(ctx context.Context, gameID uint) (*Result, error) {
	url := fmt.Sprintf("%s/v1/outcomes/%d", c.baseURL, gameID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build outcome request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("outcome request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &Result{GameID: gameID, Status: StatusUnavailable}, nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("outcome request returned %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode outcome response: %w", err)
	}
	result.GameID = gameID

	if result.Status == "" {
		result.Status = StatusResolved
	}

	return &result, nil
}
