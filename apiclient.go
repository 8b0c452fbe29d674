package claims

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// APIClient is the HTTP transport to the portal's REST collaborator. It
// implements AuthAPI, ClaimsAPI, and AdminAPI, translating HTTP status codes
// into the package error taxonomy so callers branch on errors.Is instead of
// status numbers.
//
// The bearer token is attached from a TokenSource; the client never stores
// it. A 401 on any authenticated call invokes the unauthorized hook exactly
// once per response, which is how the SessionStore learns the token died
// mid-session.
type APIClient struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	logger         Logger
	onUnauthorized func(context.Context)
}

// APIClientOption customizes client construction.
type APIClientOption func(*APIClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(client *http.Client) APIClientOption {
	return func(c *APIClient) {
		if client != nil {
			c.http = client
		}
	}
}

// WithAPILogger overrides the client's logger.
func WithAPILogger(logger Logger) APIClientOption {
	return func(c *APIClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTokenSource sets where the client reads the bearer token from.
// Typically the SessionStore.
func WithTokenSource(tokens TokenSource) APIClientOption {
	return func(c *APIClient) {
		c.tokens = tokens
	}
}

// WithUnauthorizedHook registers a callback fired whenever an authenticated
// call comes back 401. Wire this to SessionStore.Invalidate.
func WithUnauthorizedHook(hook func(context.Context)) APIClientOption {
	return func(c *APIClient) {
		c.onUnauthorized = hook
	}
}

// NewAPIClient returns a client rooted at baseURL.
func NewAPIClient(baseURL string, opts ...APIClientOption) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

var (
	_ AuthAPI   = (*APIClient)(nil)
	_ ClaimsAPI = (*APIClient)(nil)
	_ AdminAPI  = (*APIClient)(nil)
)

// Login exchanges email/password credentials for a token. Used by admin and
// service-provider sign-in; farmers authenticate through the passcode flow.
func (c *APIClient) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/login/admin-service-provider", creds, &result, false); err != nil {
		if goerrors.Is(err, ErrUnauthorized) {
			return nil, withMetadata(ErrInvalidCredentials, map[string]any{"email": creds.Email})
		}
		return nil, err
	}
	return &result, nil
}

// SendOTP asks the collaborator to deliver a passcode to a mobile number.
func (c *APIClient) SendOTP(ctx context.Context, mobile string) error {
	payload := map[string]string{"mobileNumber": mobile}
	return c.do(ctx, http.MethodPost, "/auth/send-otp", payload, nil, false)
}

// VerifyOTP redeems a passcode for a token.
func (c *APIClient) VerifyOTP(ctx context.Context, mobile, code string) (*AuthResult, error) {
	payload := map[string]string{"mobileNumber": mobile, "otp": code}

	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/verify-otp", payload, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// Me hydrates the authoritative profile for an explicit token, bypassing the
// TokenSource. The SessionStore calls this before it publishes a session, so
// the token it is validating is not yet the current one.
func (c *APIClient) Me(ctx context.Context, token string) (*Principal, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var principal Principal
	if err := c.send(ctx, req, &principal, false); err != nil {
		return nil, err
	}
	return &principal, nil
}

// GetClaim fetches a single claim.
func (c *APIClient) GetClaim(ctx context.Context, id string) (*Claim, error) {
	var claim Claim
	if err := c.do(ctx, http.MethodGet, "/claims/"+id, nil, &claim, true); err != nil {
		return nil, err
	}
	claim.EnsureStatus()
	return &claim, nil
}

// CreateClaim submits a new claim.
func (c *APIClient) CreateClaim(ctx context.Context, draft ClaimDraft) (*Claim, error) {
	var claim Claim
	if err := c.do(ctx, http.MethodPost, "/claims", draft, &claim, true); err != nil {
		return nil, err
	}
	claim.EnsureStatus()
	return &claim, nil
}

// UpdateClaim applies a partial update to a claim.
func (c *APIClient) UpdateClaim(ctx context.Context, id string, update ClaimUpdate) (*Claim, error) {
	var claim Claim
	if err := c.do(ctx, http.MethodPut, "/claims/"+id, update, &claim, true); err != nil {
		return nil, err
	}
	claim.EnsureStatus()
	return &claim, nil
}

// ForwardToSP marks the claim's assessment as forwarded to its provider.
func (c *APIClient) ForwardToSP(ctx context.Context, id, adminNotes string) (*Claim, error) {
	payload := map[string]string{}
	if adminNotes != "" {
		payload["adminNotes"] = adminNotes
	}

	var claim Claim
	if err := c.do(ctx, http.MethodPost, "/admin/claims/"+id+"/forward-to-sp", payload, &claim, true); err != nil {
		return nil, err
	}
	claim.EnsureStatus()
	return &claim, nil
}

// RejectAIReport records the rejection of the automated assessment.
func (c *APIClient) RejectAIReport(ctx context.Context, id, reason, adminNotes string) (*Claim, error) {
	payload := map[string]string{"reason": reason}
	if adminNotes != "" {
		payload["adminNotes"] = adminNotes
	}

	var claim Claim
	if err := c.do(ctx, http.MethodPost, "/admin/claims/"+id+"/reject-ai-report", payload, &claim, true); err != nil {
		return nil, err
	}
	claim.EnsureStatus()
	return &claim, nil
}

// AdminOverride resets a decided claim through the dedicated override route.
func (c *APIClient) AdminOverride(ctx context.Context, id, reason string, status ClaimStatus) (*Claim, error) {
	payload := map[string]any{
		"adminOverrideReason": reason,
		"status":              status,
	}

	var claim Claim
	if err := c.do(ctx, http.MethodPut, "/claims/"+id+"/admin-override", payload, &claim, true); err != nil {
		return nil, err
	}
	claim.EnsureStatus()
	return &claim, nil
}

// ApproveUser approves or rejects a pending service-provider account.
func (c *APIClient) ApproveUser(ctx context.Context, id string, approved bool, rejectionReason string) (*Principal, error) {
	payload := map[string]any{"approved": approved}
	if rejectionReason != "" {
		payload["rejectionReason"] = rejectionReason
	}

	var principal Principal
	if err := c.do(ctx, http.MethodPut, "/admin/users/"+id+"/approve", payload, &principal, true); err != nil {
		return nil, err
	}
	return &principal, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	if authed {
		token, ok := c.currentToken()
		if !ok {
			return withMetadata(ErrUnauthorized, map[string]any{"path": path})
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.send(ctx, req, out, authed)
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *APIClient) send(ctx context.Context, req *http.Request, out any, authed bool) error {
	res, err := c.http.Do(req)
	if err != nil {
		return withMetadata(ErrNetwork, map[string]any{
			"path":  req.URL.Path,
			"cause": err.Error(),
		})
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		apiErr := c.decodeError(res)
		if authed && res.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return apiErr
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode response body")
	}

	return nil
}

// apiErrorBody is the collaborator's error envelope. Fields are optional;
// older endpoints only set message.
type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func (c *APIClient) decodeError(res *http.Response) error {
	var body apiErrorBody

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			c.logger.Debug("unparseable error body (%d): %s", res.StatusCode, raw)
		}
	}

	message := body.Message
	if message == "" {
		message = body.Error
	}

	meta := map[string]any{
		"status": res.StatusCode,
		"path":   res.Request.URL.Path,
	}
	if message != "" {
		meta["message"] = message
	}

	if base := c.classify(res.StatusCode, body.Code); base != nil {
		return withMetadata(base, meta)
	}

	return goerrors.New(fmt.Sprintf("unexpected response status %d", res.StatusCode), goerrors.CategoryOperation).
		WithCode(res.StatusCode).
		WithMetadata(meta)
}

// classify maps (status, collaborator code) onto the package sentinels.
// The passcode codes take precedence over the raw status so expired and
// wrong passcodes stay distinguishable.
func (c *APIClient) classify(status int, code string) *goerrors.Error {
	switch strings.ToUpper(code) {
	case "OTP_EXPIRED", "CODE_EXPIRED":
		return ErrCodeExpired
	case "INVALID_OTP", "INVALID_CODE":
		return ErrInvalidCode
	}

	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusConflict:
		return ErrAlreadyProcessed
	case http.StatusUnprocessableEntity:
		return ErrIllegalTransition
	case http.StatusTooManyRequests:
		return ErrCooldownActive
	case http.StatusNotFound:
		return goerrors.New("resource not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	case http.StatusBadRequest:
		return goerrors.New("the collaborator rejected the request", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	return nil
}

func (c *APIClient) currentToken() (string, bool) {
	if c.tokens == nil {
		return "", false
	}
	return c.tokens.CurrentToken()
}
