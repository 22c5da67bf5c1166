package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/imageshop/internal/gateway"
	"github.com/mmeshcher/imageshop/internal/middleware"
	"github.com/mmeshcher/imageshop/internal/model"
	"github.com/mmeshcher/imageshop/internal/pricing"
	"github.com/mmeshcher/imageshop/internal/repository"
	"github.com/mmeshcher/imageshop/internal/service"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
	maxConfirmationBody  = 1 << 20
)

type variantRequest struct {
	Type    string `json:"type"`
	License string `json:"license"`
}

type createOrderRequest struct {
	ProductID string         `json:"productId"`
	Variant   variantRequest `json:"variant"`
}

type createOrderResponse struct {
	OrderID         string      `json:"orderId"`
	Amount          json.Number `json:"amount"`
	AmountMinor     int64       `json:"amountMinor"`
	Currency        string      `json:"currency"`
	GatewayOrderRef string      `json:"gatewayOrderRef"`
	Replayed        bool        `json:"replayed,omitempty"`
}

// CreateOrder создаёт заказ на вариант товара и платёжное намерение в шлюзе.
// Цена из тела запроса не используется.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed order body", http.StatusBadRequest)
		return
	}

	productID, err := uuid.Parse(strings.TrimSpace(req.ProductID))
	if err != nil {
		http.Error(w, "invalid productId", http.StatusBadRequest)
		return
	}

	vType, ok := model.ParseVariantType(req.Variant.Type)
	if !ok {
		http.Error(w, "unknown variant type", http.StatusBadRequest)
		return
	}
	license, ok := model.ParseLicense(req.Variant.License)
	if !ok {
		http.Error(w, "unknown license", http.StatusBadRequest)
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		http.Error(w, "idempotency key too long", http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateOrder(r.Context(), userID, productID, model.VariantSelector{Type: vType, License: license}, key)
	if err != nil {
		h.writeOrderError(w, err, userID)
		return
	}

	h.writeJSON(w, http.StatusOK, createOrderResponse{
		OrderID:         res.OrderID.String(),
		Amount:          amountJSON(res.Amount),
		AmountMinor:     res.Amount,
		Currency:        res.Currency,
		GatewayOrderRef: res.GatewayOrderRef,
		Replayed:        res.Replayed,
	})
}

func (h *Handler) writeOrderError(w http.ResponseWriter, err error, userID int64) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case errors.Is(err, pricing.ErrProductNotFound):
		http.Error(w, "product not found", http.StatusBadRequest)
	case errors.Is(err, pricing.ErrVariantNotOffered):
		http.Error(w, "variant not offered for this product", http.StatusBadRequest)
	case errors.Is(err, service.ErrIdempotencyKeyReused), errors.Is(err, service.ErrIdempotencyInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, gateway.ErrGatewayUnavailable), errors.Is(err, gateway.ErrGatewayRejected):
		http.Error(w, "payment provider error, please try again", http.StatusBadGateway)
	default:
		h.logger.Error("create order error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// ConfirmPayment принимает уведомление шлюза об оплате. Всегда отвечает 200,
// чтобы шлюз не повторял доставку; ошибки только логируются.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxConfirmationBody))
	if err != nil {
		h.logger.Warn("read confirmation body", zap.Error(err))
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := h.service.Reconcile(r.Context(), payload, r.Header.Get(gateway.SignatureHeader)); err != nil {
		h.logger.Warn("confirmation not applied", zap.Error(err))
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type orderVariantResponse struct {
	Type    string `json:"type"`
	License string `json:"license"`
}

type orderProductResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type orderResponse struct {
	OrderID         string               `json:"orderId"`
	Status          string               `json:"status"`
	Amount          json.Number          `json:"amount"`
	AmountMinor     int64                `json:"amountMinor"`
	Currency        string               `json:"currency"`
	Variant         orderVariantResponse `json:"variant"`
	GatewayOrderRef string               `json:"gatewayOrderRef,omitempty"`
	Product         orderProductResponse `json:"product"`
	DownloadURL     string               `json:"downloadUrl,omitempty"`
	CreatedAt       string               `json:"createdAt"`
	ResolvedAt      string               `json:"resolvedAt,omitempty"`
}

func newOrderResponse(v model.OrderView) orderResponse {
	o := v.Order
	resp := orderResponse{
		OrderID:         o.ID.String(),
		Status:          string(o.Status),
		Amount:          amountJSON(o.Amount),
		AmountMinor:     o.Amount,
		Currency:        o.Currency,
		Variant:         orderVariantResponse{Type: string(o.Variant.Type), License: string(o.Variant.License)},
		GatewayOrderRef: o.GatewayOrderRef,
		Product: orderProductResponse{
			ID:       v.Product.ID.String(),
			Name:     v.Product.Name,
			ImageURL: v.Product.ImageURL,
		},
		DownloadURL: v.DownloadURL,
		CreatedAt:   o.CreatedAt.Format(time.RFC3339),
	}
	if o.ResolvedAt != nil {
		resp.ResolvedAt = o.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

// ListOrders возвращает заказы текущего пользователя, начиная с самых новых.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	views, err := h.service.ListOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]orderResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, newOrderResponse(v))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает один заказ текущего пользователя.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	view, err := h.service.GetOrder(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.String("order", id.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, newOrderResponse(*view))
}
