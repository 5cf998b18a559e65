// Package mpesa is a thin client for the Safaricom Daraja STK push
// API: it initiates push payments and models the asynchronous result
// callback. It holds no loan state of its own.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	sandboxAuthURL = "https://sandbox.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"
	sandboxPushURL = "https://sandbox.safaricom.co.ke/mpesa/stkpush/v1/processrequest"
	prodAuthURL    = "https://api.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"
	prodPushURL    = "https://api.safaricom.co.ke/mpesa/stkpush/v1/processrequest"

	// Public Daraja sandbox credentials.
	sandboxShortcode = "174379"
	sandboxPasskey   = "bfb279f9aa9bdbcf158e97dd71a467cd2e0c893059b10f78e6b72ada1ed2c919"
)

// ErrProviderUnavailable wraps transport-level failures talking to the
// provider. Loan state is never changed when it is returned, so the
// caller may retry.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// Config holds provider credentials and endpoints.
type Config struct {
	Environment    string // "sandbox" or "production"
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string

	// AuthURL and PushURL override the environment defaults; used in tests.
	AuthURL string
	PushURL string
}

func (c *Config) authURL() string {
	if c.AuthURL != "" {
		return c.AuthURL
	}
	if c.Environment == "production" {
		return prodAuthURL
	}
	return sandboxAuthURL
}

func (c *Config) pushURL() string {
	if c.PushURL != "" {
		return c.PushURL
	}
	if c.Environment == "production" {
		return prodPushURL
	}
	return sandboxPushURL
}

func (c *Config) shortcode() string {
	if c.Environment != "production" && c.Shortcode == "" {
		return sandboxShortcode
	}
	return c.Shortcode
}

func (c *Config) passkey() string {
	if c.Environment != "production" && c.Passkey == "" {
		return sandboxPasskey
	}
	return c.Passkey
}

// Client talks to the provider's OAuth and STK push endpoints.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		now:    time.Now,
	}
}

// PushResponse is the provider's synchronous acknowledgement of an STK
// push request. ResponseCode "0" means the prompt was sent; the
// payment itself is confirmed later via the callback.
type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorMessage        string `json:"errorMessage"`
}

// Accepted reports whether the provider accepted the push request.
func (r *PushResponse) Accepted() bool {
	return r.ResponseCode == "0"
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// accessToken fetches a fresh OAuth token using client credentials.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.authURL(), nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: auth returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: decoding token: %v", ErrProviderUnavailable, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrProviderUnavailable)
	}
	return token.AccessToken, nil
}

// stkPassword is base64(shortcode + passkey + timestamp).
func stkPassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

type pushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// InitiateSTKPush sends a payment prompt to the payer's phone. The
// phone is normalized to 254XXXXXXXXX form and the amount must be a
// positive whole number of shillings. The returned response is only
// the provider's acknowledgement; confirmation arrives via callback.
func (c *Client) InitiateSTKPush(ctx context.Context, phone string, amount int64, reference, description string) (*PushResponse, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, errors.New("amount must be a positive whole number")
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format("20060102150405")
	shortcode := c.cfg.shortcode()
	payload := pushRequest{
		BusinessShortCode: shortcode,
		Password:          stkPassword(shortcode, c.cfg.passkey(), timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            normalized,
		PartyB:            shortcode,
		PhoneNumber:       normalized,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  reference,
		TransactionDesc:   description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.pushURL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var pushResp PushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return nil, fmt.Errorf("%w: decoding push response: %v", ErrProviderUnavailable, err)
	}

	if !pushResp.Accepted() {
		c.logger.Warn("stk push rejected",
			zap.String("phone", normalized),
			zap.String("reference", reference),
			zap.String("response_code", pushResp.ResponseCode),
			zap.String("description", pushResp.ResponseDescription),
			zap.String("error", pushResp.ErrorMessage),
		)
		return &pushResp, nil
	}

	c.logger.Info("stk push sent",
		zap.String("phone", normalized),
		zap.String("reference", reference),
		zap.Int64("amount", amount),
		zap.String("checkout_request_id", pushResp.CheckoutRequestID),
	)
	return &pushResp, nil
}
