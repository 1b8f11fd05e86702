package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserInfo is the identity collaborator's view of a user. Authentication
// is already resolved upstream; this only answers whether the user
// exists and is active.
type UserInfo struct {
	UserID uint `json:"user_id"`
	Active bool `json:"active"`
}

// Resolver resolves user identities.
type Resolver interface {
	ResolveUser(ctx context.Context, userID uint) (*UserInfo, error)
}

// Client is the HTTP identity collaborator client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

// ResolveUser retrieves a user's identity record.
func (c *Client) ResolveUser(ctx context.Context, userID uint) (*UserInfo, error) {
	url := fmt.Sprintf("%s/v1/users/%d", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("user %d not found", userID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("identity request returned %d: %s", resp.StatusCode, string(body))
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}

	return &info, nil
}
