package zarinpal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
)

const (
	defaultBaseURL           = "https://api.zarinpal.com/pg/v4/payment"
	defaultStartPayURL       = "https://www.zarinpal.com/pg/StartPay/"
	defaultTimeout           = 10 * time.Second
	responseReadLimit  int64 = 1024
)

// Verification result codes returned by the gateway.
const (
	CodeSuccess          = 100
	CodeAlreadyVerified  = 101
	CallbackStatusOK     = "OK"
	CallbackStatusCancel = "NOK"
)

var errMerchantRequired = errors.New("zarinpal merchant id is required")

// Client talks to the Zarinpal v4 payment API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	startPayURL string
	merchantID  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL (sandbox or test servers).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithStartPayURL overrides the redirect prefix shown to payers.
func WithStartPayURL(startPayURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(startPayURL); trimmed != "" {
			c.startPayURL = trimmed
		}
	}
}

// WithTimeout sets the per-call timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

func NewClient(merchantID string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(merchantID)
	if trimmed == "" {
		return nil, errMerchantRequired
	}
	client := &Client{
		merchantID:  trimmed,
		baseURL:     defaultBaseURL,
		startPayURL: defaultStartPayURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// PaymentRequest is the outbound payment initiation. Amount is in rials.
type PaymentRequest struct {
	Amount      int64
	Description string
	CallbackURL string
	Email       string
	Mobile      string
}

// PaymentStart is the gateway's answer to a successful request.
type PaymentStart struct {
	Authority   string
	RedirectURL string
}

// Verification is the outcome of a verify call. Code 100 and 101 both mean
// the payment is settled; other codes carry the gateway message as-is.
type Verification struct {
	Code    int
	RefID   string
	Message string
}

// Settled reports whether the gateway confirmed the money was received.
func (v Verification) Settled() bool {
	return v.Code == CodeSuccess || v.Code == CodeAlreadyVerified
}

// GatewayError is a structured rejection returned in the "errors" field.
type GatewayError struct {
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("zarinpal error %d: %s", e.Code, e.Message)
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type requestData struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Authority string `json:"authority"`
}

type verifyData struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	RefID   json.RawMessage `json:"ref_id"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Request opens a payment and returns the StartPay redirect target.
func (c *Client) Request(ctx context.Context, req PaymentRequest) (*PaymentStart, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "zarinpal client not configured")
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(req.CallbackURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback url is required")
	}

	body := map[string]any{
		"merchant_id":  c.merchantID,
		"amount":       req.Amount,
		"description":  req.Description,
		"callback_url": req.CallbackURL,
	}
	metadata := map[string]string{}
	if req.Email != "" {
		metadata["email"] = req.Email
	}
	if req.Mobile != "" {
		metadata["mobile"] = req.Mobile
	}
	if len(metadata) > 0 {
		body["metadata"] = metadata
	}

	var data requestData
	if err := c.post(ctx, "request.json", body, &data); err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, gwErr, "payment request rejected")
		}
		return nil, err
	}
	if data.Code != CodeSuccess || data.Authority == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, &GatewayError{Code: data.Code, Message: data.Message}, "payment request rejected")
	}
	return &PaymentStart{
		Authority:   data.Authority,
		RedirectURL: c.StartPayURL(data.Authority),
	}, nil
}

// Verify confirms a payment after the payer returns through the callback.
// Gateway-level rejections are returned as a Verification, not an error.
func (c *Client) Verify(ctx context.Context, authority string, amount int64) (*Verification, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "zarinpal client not configured")
	}
	if strings.TrimSpace(authority) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authority is required")
	}
	body := map[string]any{
		"merchant_id": c.merchantID,
		"amount":      amount,
		"authority":   authority,
	}
	var data verifyData
	if err := c.post(ctx, "verify.json", body, &data); err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			return &Verification{Code: gwErr.Code, Message: gwErr.Message}, nil
		}
		return nil, err
	}
	return &Verification{
		Code:    data.Code,
		RefID:   rawToString(data.RefID),
		Message: data.Message,
	}, nil
}

// StartPayURL builds the payer-facing redirect for an authority.
func (c *Client) StartPayURL(authority string) string {
	return strings.TrimRight(c.startPayURL, "/") + "/" + authority
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal zarinpal request")
	}
	url := strings.TrimRight(c.baseURL, "/") + "/" + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build zarinpal request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute zarinpal request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read zarinpal response")
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw)), "decode zarinpal response")
	}
	if gwErr := parseErrors(env.Errors); gwErr != nil {
		return gwErr
	}
	if resp.StatusCode != http.StatusOK {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw)), "zarinpal request failed")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode zarinpal data")
	}
	return nil
}

// parseErrors handles the gateway returning either [] or an object.
func parseErrors(raw json.RawMessage) *GatewayError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var data errorData
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return &GatewayError{Message: string(truncate(trimmed))}
	}
	return &GatewayError{Code: data.Code, Message: data.Message}
}

func rawToString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	return strings.Trim(trimmed, `"`)
}

func truncate(b []byte) []byte {
	if int64(len(b)) > responseReadLimit {
		return b[:responseReadLimit]
	}
	return b
}
