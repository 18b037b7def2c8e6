// Package directory talks to the external account service. The core never
// owns accounts or the approval workflow; it only asks "who is this token"
// and "is this participant authorized", and resolves upload tokens into
// file references.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"support-chat-service/internal/models"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrAccountNotFound = errors.New("account not found")
	ErrUnknownUpload   = errors.New("unknown upload token")
)

// Client is the HTTP/JSON client for the account service.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

// NewClient constructs the client. serviceToken authenticates this service
// to the account service's internal endpoints.
func NewClient(baseURL, serviceToken string) *Client {
	return &Client{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Authenticate resolves a bearer token to the account it belongs to.
func (c *Client) Authenticate(ctx context.Context, token string) (models.Account, error) {
	var resp struct {
		OK      bool           `json:"ok"`
		Account models.Account `json:"account"`
	}
	if err := c.post(ctx, "/internal/tokens/verify", map[string]string{"token": token}, &resp); err != nil {
		return models.Account{}, err
	}
	if !resp.OK || resp.Account.ID == "" {
		return models.Account{}, ErrInvalidToken
	}
	return resp.Account, nil
}

// IsParticipantAuthorized reports whether the account may take part in
// messaging. The approval state machine lives upstream; only approved
// accounts pass.
func (c *Client) IsParticipantAuthorized(ctx context.Context, accountID string) (bool, error) {
	var resp struct {
		OK      bool           `json:"ok"`
		Account models.Account `json:"account"`
	}
	err := c.get(ctx, "/internal/accounts/"+url.PathEscape(accountID), &resp)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return false, nil
		}
		return false, err
	}
	return resp.OK && resp.Account.Status == "approved", nil
}

// ResolveFileReference exchanges an upload token for the stored file's
// name, size and URL. File bytes never pass through this service.
func (c *Client) ResolveFileReference(ctx context.Context, uploadToken string) (models.FileRef, error) {
	var resp struct {
		OK   bool           `json:"ok"`
		File models.FileRef `json:"file"`
	}
	if err := c.post(ctx, "/internal/files/resolve", map[string]string{"token": uploadToken}, &resp); err != nil {
		return models.FileRef{}, err
	}
	if !resp.OK || resp.File.FileURL == "" {
		return models.FileRef{}, ErrUnknownUpload
	}
	return resp.File, nil
}

var errNotFound = errors.New("not found")

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("account service: unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
