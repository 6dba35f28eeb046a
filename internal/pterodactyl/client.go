// Package pterodactyl calls the application API of a Pterodactyl panel.
package pterodactyl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const acceptHeader = "Application/vnd.pterodactyl.v1+json"

// maxBody bounds how much of a response is read.
const maxBody = 1 << 20

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx answer from the panel.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pterodactyl api error: status %d: %s", e.StatusCode, e.Body)
}

type CreateUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
	RootAdmin bool   `json:"root_admin"`
}

type User struct {
	ID        int    `json:"id"`
	UUID      string `json:"uuid"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RootAdmin bool   `json:"root_admin"`
}

type userObject struct {
	Object     string `json:"object"`
	Attributes User   `json:"attributes"`
}

type userList struct {
	Object string       `json:"object"`
	Data   []userObject `json:"data"`
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", acceptHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// UserExists reports whether an account with exactly this username exists.
func (c *Client) UserExists(ctx context.Context, username string) (bool, error) {
	q := url.Values{}
	q.Set("filter[username]", username)
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/application/users?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	var list userList
	if err := json.Unmarshal(resp, &list); err != nil {
		return false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	// The filter is a partial match on some panel versions, and the panel
	// stores usernames lowercased.
	for _, u := range list.Data {
		if strings.EqualFold(u.Attributes.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

// CreateUser creates an account. It is never retried.
func (c *Client) CreateUser(ctx context.Context, r CreateUserRequest) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/application/users", r)
	if err != nil {
		return nil, err
	}
	var obj userObject
	if err := json.Unmarshal(resp, &obj); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &obj.Attributes, nil
}
