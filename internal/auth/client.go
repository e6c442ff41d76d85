package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is the auth service's error envelope. Validation failures carry
// status 422, conflicts 409.
type APIError struct {
	Status  int          `json:"status"`
	Type    string       `json:"type"`
	Details []FieldError `json:"details"`
	Message string       `json:"message"`
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("auth %s (%d): %s [%d field errors]", e.Type, e.Status, e.Message, len(e.Details))
	}
	return fmt.Sprintf("auth %s (%d): %s", e.Type, e.Status, e.Message)
}

// Account is the authenticated identity returned by the auth service.
type Account struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Token     string `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	ReferralCode string `json:"referralCode,omitempty"`
}

// Client talks to the authentication service. Validation failures are
// produced locally and never reach the wire.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) Login(ctx context.Context, email, password string) (Account, error) {
	if details := ValidateCredentials(email, password); len(details) > 0 {
		return Account{}, &APIError{
			Status:  http.StatusUnprocessableEntity,
			Type:    "validation_error",
			Details: details,
			Message: "invalid credentials input",
		}
	}
	return c.post(ctx, "/login", loginRequest{Email: strings.TrimSpace(email), Password: password})
}

func (c *Client) Signup(ctx context.Context, email, password, firstName, lastName, referralCode string) (Account, error) {
	if details := ValidateSignup(email, password, firstName, lastName); len(details) > 0 {
		return Account{}, &APIError{
			Status:  http.StatusUnprocessableEntity,
			Type:    "validation_error",
			Details: details,
			Message: "invalid signup input",
		}
	}
	return c.post(ctx, "/signup", signupRequest{
		Email:        strings.TrimSpace(email),
		Password:     password,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		ReferralCode: strings.TrimSpace(referralCode),
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) (Account, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Account{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Account{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return Account{}, fmt.Errorf("auth request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return Account{}, fmt.Errorf("read auth response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := &APIError{Status: res.StatusCode, Type: "auth_error", Message: strings.TrimSpace(string(raw))}
		var decoded APIError
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Message != "" {
			decoded.Status = res.StatusCode
			apiErr = &decoded
		}
		return Account{}, apiErr
	}

	var account Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return Account{}, fmt.Errorf("decode auth response: %w", err)
	}
	return account, nil
}
