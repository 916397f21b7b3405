// Package mpesa wraps the Daraja STK push API: an OAuth token fetch followed
// by a push-payment request to the subscriber's handset. The response's
// CheckoutRequestID is the correlation token the rest of the system uses to
// tie the eventual payment result back to a checkout batch.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"huduma-svc/circuitbreaker"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Initiator is what the checkout orchestrator depends on; tests substitute
// their own implementation.
type Initiator interface {
	STKPush(ctx context.Context, amount float64, phone, reference string) (*STKPushResponse, error)
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortcode      string
	passkey        string
	callbackURL    string
	httpClient     *http.Client
	breaker        *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewClient(logger *zap.Logger) *Client {
	return &Client{
		baseURL:        getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
		consumerKey:    getEnv("MPESA_CONSUMER_KEY", ""),
		consumerSecret: getEnv("MPESA_CONSUMER_SECRET", ""),
		shortcode:      getEnv("MPESA_SHORTCODE", "174379"),
		passkey:        getEnv("MPESA_PASSKEY", ""),
		callbackURL:    getEnv("MPESA_CALLBACK_URL", "http://localhost:8080/api/mpesa/callback"),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		breaker:        circuitbreaker.NewCircuitBreaker(5, 60*time.Second),
		logger:         logger,
	}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.consumerKey == "" || c.consumerSecret == "" {
		return "", fmt.Errorf("mpesa consumer key or secret is missing")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.consumerKey + ":" + c.consumerSecret))
	req.Header.Set("Authorization", "Basic "+credentials)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, body)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("access token not found in response")
	}
	return tokenResp.AccessToken, nil
}

// STKPush sends a push-payment request for amount to the given subscriber
// number. Success means the provider accepted the request for processing;
// confirmation arrives later, out of band, keyed by CheckoutRequestID.
func (c *Client) STKPush(ctx context.Context, amount float64, phone, reference string) (*STKPushResponse, error) {
	ctx, span := otel.Tracer("huduma-svc").Start(ctx, "mpesa.STKPush")
	defer span.End()
	span.SetAttributes(attribute.Float64("amount", amount))

	var pushResp *STKPushResponse
	err := c.breaker.Execute(ctx, func() error {
		var err error
		pushResp, err = c.doSTKPush(ctx, amount, phone, reference)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return pushResp, nil
}

func (c *Client) doSTKPush(ctx context.Context, amount float64, phone, reference string) (*STKPushResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.shortcode + c.passkey + timestamp))

	payload := map[string]any{
		"BusinessShortCode": c.shortcode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            int(amount),
		"PartyA":            phone,
		"PartyB":            c.shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.callbackURL,
		"AccountReference":  reference,
		"TransactionDesc":   "Payment for cart items",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stk push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build stk push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stk push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stk push failed with status %d: %s", resp.StatusCode, respBody)
	}

	var pushResp STKPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return nil, fmt.Errorf("failed to decode stk push response: %w", err)
	}
	if pushResp.ResponseCode != "0" {
		return nil, fmt.Errorf("stk push rejected: %s", pushResp.ResponseDescription)
	}

	c.logger.Info("STK push accepted",
		zap.String("checkout_request_id", pushResp.CheckoutRequestID),
		zap.String("merchant_request_id", pushResp.MerchantRequestID),
	)
	return &pushResp, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
