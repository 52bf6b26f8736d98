package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DirectoryClient defines the interface for the remote handle lookup service
type DirectoryClient interface {
	DescribeRepo(ctx context.Context, did string) (string, error)
}

// HTTPDirectoryClient resolves handles against an atproto directory service.
type HTTPDirectoryClient struct {
	baseURL    string
	httpClient *http.Client
	accessJWT  string
	log        *zap.Logger
}

// NewHTTPDirectoryClient creates a new directory client
func NewHTTPDirectoryClient(baseURL string, log *zap.Logger) *HTTPDirectoryClient {
	return &HTTPDirectoryClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Login creates a session for the given credentials and stores the access
// token for subsequent lookups. Credentials are optional; anonymous lookups
// work against the public directory.
func (c *HTTPDirectoryClient) Login(ctx context.Context, identifier, password string) error {
	body, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session request: %w", err)
	}

	endpoint := c.baseURL + "/xrpc/com.atproto.server.createSession"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("session request returned status %d", resp.StatusCode)
	}

	var session struct {
		AccessJWT string `json:"accessJwt"`
		Handle    string `json:"handle"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("failed to decode session response: %w", err)
	}

	c.accessJWT = session.AccessJWT
	c.log.Info("Directory session created", zap.String("handle", session.Handle))
	return nil
}

// DescribeRepo returns the handle for a DID.
func (c *HTTPDirectoryClient) DescribeRepo(ctx context.Context, did string) (string, error) {
	endpoint := fmt.Sprintf("%s/xrpc/com.atproto.repo.describeRepo?repo=%s", c.baseURL, url.QueryEscape(did))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build describe request: %w", err)
	}
	if c.accessJWT != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJWT)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("describe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("describe request for %s returned status %d", did, resp.StatusCode)
	}

	var repo struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return "", fmt.Errorf("failed to decode describe response: %w", err)
	}
	if repo.Handle == "" {
		return "", fmt.Errorf("describe response for %s contained no handle", did)
	}

	return repo.Handle, nil
}
