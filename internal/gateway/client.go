// Package gateway предоставляет клиент внешнего платёжного шлюза (Razorpay-совместимый REST API).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ErrGatewayUnavailable возвращается при сетевых ошибках, таймаутах, 429 и 5xx.
var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected возвращается, если шлюз отклонил запрос (4xx) или ответил некорректно.
	ErrGatewayRejected = errors.New("payment gateway rejected request")
)

// IntentStatus описывает состояние платёжного намерения на стороне шлюза.
type IntentStatus string

const (
	IntentCreated   IntentStatus = "created"
	IntentAttempted IntentStatus = "attempted"
	IntentPaid      IntentStatus = "paid"
)

// Config содержит параметры подключения к шлюзу.
type Config struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
	RetryMax      int
}

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret []byte
	httpClient    *retryablehttp.Client
	callBudget    time.Duration
}

type singleAttemptKey struct{}

const (
	retryWaitMin = 200 * time.Millisecond
	retryWaitMax = 2 * time.Second
)

type intentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type intentResponse struct {
	ID       string       `json:"id"`
	Amount   int64        `json:"amount"`
	Currency string       `json:"currency"`
	Status   IntentStatus `json:"status"`
}

// NewClient создаёт клиент шлюза. Каждая попытка ограничена cfg.Timeout. Запросы на чтение
// повторяются до cfg.RetryMax раз при сетевых ошибках, 429 и 5xx, создание намерения
// выполняется ровно одной попыткой.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = retryLogger{logger.Sugar().Named("gateway")}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Value(singleAttemptKey{}) != nil {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	var budget time.Duration
	if cfg.Timeout > 0 {
		retries := time.Duration(max(cfg.RetryMax, 0))
		budget = cfg.Timeout*(retries+1) + retryWaitMax*retries
	}

	return &Client{
		baseURL:       base,
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: []byte(cfg.WebhookSecret),
		httpClient:    rc,
		callBudget:    budget,
	}
}

// CreateIntent создаёт платёжное намерение на сумму amount (в минимальных единицах валюты)
// и возвращает его идентификатор в шлюзе.
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	body, err := json.Marshal(intentRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return "", fmt.Errorf("encode intent: %w", err)
	}

	var res intentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, &res); err != nil {
		return "", err
	}

	if res.ID == "" {
		return "", fmt.Errorf("%w: empty intent id", ErrGatewayRejected)
	}
	if res.Amount != amount || !strings.EqualFold(res.Currency, currency) {
		return "", fmt.Errorf("%w: intent %s echoed %d %s, requested %d %s",
			ErrGatewayRejected, res.ID, res.Amount, res.Currency, amount, currency)
	}

	return res.ID, nil
}

// FetchIntentStatus запрашивает текущее состояние платёжного намерения.
func (c *Client) FetchIntentStatus(ctx context.Context, ref string) (IntentStatus, error) {
	var res intentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(ref), nil, &res); err != nil {
		return "", err
	}
	return res.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("%w: client not configured", ErrGatewayUnavailable)
	}

	if c.callBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callBudget)
		defer cancel()
	}
	if method != http.MethodGet {
		// Повтор POST может создать второе намерение в шлюзе.
		ctx = context.WithValue(ctx, singleAttemptKey{}, true)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrGatewayUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s %s: status %d", ErrGatewayUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: %s %s: status %d", ErrGatewayRejected, method, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s %s: unexpected status %d", ErrGatewayRejected, method, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGatewayRejected, err)
	}

	return nil
}

// ErrorKind возвращает метку ошибки шлюза для метрик.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrGatewayUnavailable):
		return "unavailable"
	case errors.Is(err, ErrGatewayRejected):
		return "rejected"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "other"
	}
}

type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) { l.s.Errorw(msg, keysAndValues...) }
func (l retryLogger) Info(msg string, keysAndValues ...interface{})  { l.s.Debugw(msg, keysAndValues...) }
func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
func (l retryLogger) Warn(msg string, keysAndValues ...interface{})  { l.s.Warnw(msg, keysAndValues...) }
