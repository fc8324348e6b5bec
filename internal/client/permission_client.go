package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PermissionHTTPClient asks the role/permission service whether an actor holds
// a named permission. The workflow core never branches on role names itself;
// this oracle is its single authorization dependency.
type PermissionHTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewPermissionHTTPClient creates a client against the permission service.
func NewPermissionHTTPClient(baseURL string, timeout time.Duration) *PermissionHTTPClient {
	return &PermissionHTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type checkPermissionResponse struct {
	Allowed bool `json:"allowed"`
}

// Check returns whether actorID holds permission. Transport failures are
// returned as errors, never as denials, so the caller can distinguish an
// unavailable oracle from a real refusal.
func (c *PermissionHTTPClient) Check(ctx context.Context, actorID, permission string) (bool, error) {
	u := fmt.Sprintf("%s/api/v1/permissions/check?user_id=%s&permission=%s",
		c.baseURL, url.QueryEscape(actorID), url.QueryEscape(permission))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build permission request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("permission check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("permission service returned status %d", resp.StatusCode)
	}

	var body checkPermissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode permission response: %w", err)
	}
	return body.Allowed, nil
}
