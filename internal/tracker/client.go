package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PatrickEleganceGroup/issuerelay/internal/config"
)

const searchPageSize = 50

// StatusError is a reportable non-2xx response from the tracker.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker %s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// Client talks to the issue tracker's REST API. All calls are bounded by the
// configured HTTP timeout and are never retried here; retry semantics belong
// to the hosting environment.
type Client struct {
	cfg   config.Tracker
	creds Credentials
	http  *http.Client
}

// New builds a client from tracker configuration, selecting the credential
// form the environment supplied.
func New(cfg config.Tracker) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("tracker base URL is required")
	}
	creds, err := FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:   cfg,
		creds: creds,
		http:  &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

// NewWithCredentials builds a client with explicit credentials, for callers
// that already hold them (the CLI).
func NewWithCredentials(cfg config.Tracker, creds Credentials) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("tracker base URL is required")
	}
	if creds.Empty() {
		return nil, errors.New("tracker credentials are required")
	}
	return &Client{
		cfg:   cfg,
		creds: creds,
		http:  &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

// do sends one request with the given credentials and returns the response
// status and body. Any non-2xx status is returned as a *StatusError.
func (c *Client) do(ctx context.Context, method, url string, creds Credentials, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", creds.AuthorizationHeader())

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("tracker %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, respBody, &StatusError{
			Method: method,
			URL:    url,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}
	return resp.StatusCode, respBody, nil
}

// AddComment posts resultText as a comment on the issue, in the configured
// body format. Returns the HTTP status for operator logging. Success is any
// 2xx; a non-2xx comes back as a *StatusError and is not retried. Posting the
// same text twice yields two comments; deduplication is the tracker's concern.
func (c *Client) AddComment(ctx context.Context, issueKey, resultText string) (int, error) {
	if strings.TrimSpace(issueKey) == "" {
		return 0, errors.New("issue key is required")
	}

	payload, err := json.Marshal(NewComment(c.cfg.CommentFormat, resultText))
	if err != nil {
		return 0, fmt.Errorf("marshal comment payload: %w", err)
	}

	status, _, err := c.do(ctx, http.MethodPut, c.cfg.IssueURL(issueKey), c.creds, payload)
	return status, err
}

// trackerUser is the slice of the user search response we care about.
type trackerUser struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
}

// FindAccountID pages through the user search endpoint looking for a
// case-insensitive email match. Returns "" when no account matches; hidden
// email addresses (external users) simply never match.
func (c *Client) FindAccountID(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", errors.New("target email is required")
	}

	for startAt := 0; ; startAt += searchPageSize {
		url := c.cfg.UserSearchURL(startAt, searchPageSize)
		_, body, err := c.do(ctx, http.MethodGet, url, c.creds, nil)
		if err != nil {
			return "", err
		}

		var users []trackerUser
		if err := json.Unmarshal(body, &users); err != nil {
			return "", fmt.Errorf("decode user search page: %w", err)
		}
		if len(users) == 0 {
			return "", nil
		}
		for _, u := range users {
			if strings.EqualFold(u.EmailAddress, email) {
				return u.AccountID, nil
			}
		}
	}
}

// RestoreAccess POSTs to the directory restore-access endpoint with bearer
// auth and an empty body. Returns the HTTP status and decoded response body
// text for the result message.
func (c *Client) RestoreAccess(ctx context.Context, accountID string) (int, string, error) {
	if strings.TrimSpace(accountID) == "" {
		return 0, "", errors.New("account ID is required")
	}
	if c.cfg.BearerToken == "" {
		return 0, "", errors.New("bearer token is required for restore-access")
	}
	if c.cfg.OrgID == "" {
		return 0, "", errors.New("org ID is required for restore-access")
	}

	status, body, err := c.do(ctx, http.MethodPost, c.cfg.RestoreAccessURL(accountID), Bearer(c.cfg.BearerToken), nil)
	return status, strings.TrimSpace(string(body)), err
}

// RestoreUser is the built-in task: resolve the account by email and restore
// its access, producing the human-readable result text the reporting step
// posts. A not-found account is a task-level result, not an error, so the
// outcome always reaches the issue.
func (c *Client) RestoreUser(ctx context.Context, email string) (string, error) {
	accountID, err := c.FindAccountID(ctx, email)
	if err != nil {
		return "", err
	}

	if accountID == "" {
		msg := fmt.Sprintf("Your account was not found from the provided email address, %s. "+
			"This could be because the email address is hidden especially for External Users. "+
			"Please ensure this is the correct email and if it was correct and/or you're an External User, "+
			"please log a ticket", email)
		if c.cfg.ServiceDeskURL != "" {
			msg += fmt.Sprintf(" (%s)", c.cfg.ServiceDeskURL)
		}
		return msg + ".", nil
	}

	lines := []string{fmt.Sprintf("Found accountId: %s", accountID)}
	status, respText, restoreErr := c.RestoreAccess(ctx, accountID)
	if restoreErr != nil {
		var se *StatusError
		if !errors.As(restoreErr, &se) {
			return "", restoreErr
		}
		// Non-2xx from the admin endpoint is still a reportable result.
	}
	lines = append(lines, fmt.Sprintf("Response Status: %d", status))
	if respText != "" {
		lines = append(lines, fmt.Sprintf("Response: %s", respText))
	}
	return strings.Join(lines, "\n"), nil
}

// Ping probes the tracker base URL, for health checks. Any response counts;
// only transport failure is an error.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
