package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader заголовок, в котором шлюз передаёт подпись уведомления.
const SignatureHeader = "X-Razorpay-Signature"

// ErrInvalidSignature возвращается, если подпись уведомления не прошла проверку.
var (
	ErrInvalidSignature = errors.New("invalid confirmation signature")
	// ErrUnsupportedEvent возвращается для событий, не влияющих на статус заказа.
	ErrUnsupportedEvent = errors.New("unsupported confirmation event")
	// ErrMalformedPayload возвращается, если подписанное уведомление не удалось разобрать.
	ErrMalformedPayload = errors.New("malformed confirmation payload")
)

// Outcome итог оплаты по подтверждению шлюза.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Confirmation проверенное подтверждение оплаты.
type Confirmation struct {
	Event           string
	GatewayOrderRef string
	PaymentID       string
	Outcome         Outcome
	// Amount списанная сумма в минимальных единицах, 0 если шлюз её не передал.
	Amount   int64
	Currency string
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity struct {
				ID       string `json:"id"`
				OrderID  string `json:"order_id"`
				Amount   int64  `json:"amount"`
				Currency string `json:"currency"`
				Status   string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity struct {
				ID         string `json:"id"`
				AmountPaid int64  `json:"amount_paid"`
				Currency   string `json:"currency"`
				Status     string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

var eventOutcomes = map[string]Outcome{
	"payment.captured": OutcomeSuccess,
	"order.paid":       OutcomeSuccess,
	"payment.failed":   OutcomeFailure,
}

// VerifyConfirmation проверяет подпись уведомления и переводит его в Confirmation.
// Непроверенные данные никогда не разбираются.
func (c *Client) VerifyConfirmation(payload []byte, signature string) (Confirmation, error) {
	if len(c.webhookSecret) == 0 {
		return Confirmation{}, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}

	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return Confirmation{}, ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, c.webhookSecret)
	mac.Write(payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return Confirmation{}, ErrInvalidSignature
	}

	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Confirmation{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	outcome, ok := eventOutcomes[ev.Event]
	if !ok {
		return Confirmation{Event: ev.Event}, fmt.Errorf("%w: %q", ErrUnsupportedEvent, ev.Event)
	}

	conf := Confirmation{Event: ev.Event, Outcome: outcome}
	if p := ev.Payload.Payment; p != nil {
		conf.GatewayOrderRef = p.Entity.OrderID
		conf.PaymentID = p.Entity.ID
		conf.Amount = p.Entity.Amount
		conf.Currency = p.Entity.Currency
	}
	if o := ev.Payload.Order; o != nil {
		if conf.GatewayOrderRef == "" {
			conf.GatewayOrderRef = o.Entity.ID
		}
		if conf.Amount == 0 {
			conf.Amount = o.Entity.AmountPaid
		}
		if conf.Currency == "" {
			conf.Currency = o.Entity.Currency
		}
	}

	if conf.GatewayOrderRef == "" {
		return Confirmation{}, fmt.Errorf("%w: no order reference", ErrMalformedPayload)
	}

	return conf, nil
}
