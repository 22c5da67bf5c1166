package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/imageshop/internal/model"
	"github.com/mmeshcher/imageshop/internal/pricing"
	"github.com/mmeshcher/imageshop/internal/validation"
)

type variantResponse struct {
	Type       string      `json:"type"`
	License    string      `json:"license"`
	Price      json.Number `json:"price"`
	PriceMinor int64       `json:"priceMinor"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
}

type productResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	ImageURL    string            `json:"imageUrl"`
	Variants    []variantResponse `json:"variants"`
	CreatedAt   string            `json:"createdAt"`
}

func newProductResponse(p model.Product) productResponse {
	variants := make([]variantResponse, 0, len(p.Variants))
	for _, v := range p.Variants {
		dim := v.Type.Dimensions()
		variants = append(variants, variantResponse{
			Type:       string(v.Type),
			License:    string(v.License),
			Price:      amountJSON(v.Price),
			PriceMinor: v.Price,
			Width:      dim.Width,
			Height:     dim.Height,
		})
	}

	return productResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Variants:    variants,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// ListProducts возвращает каталог с поиском по началу названия.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("list products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, newProductResponse(p))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetProduct возвращает товар по идентификатору.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pricing.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get product error", zap.Error(err), zap.String("product", id.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, newProductResponse(*p))
}

type createProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Variants    []struct {
		Type    string          `json:"type"`
		License string          `json:"license"`
		Price   decimal.Decimal `json:"price"`
	} `json:"variants"`
}

// CreateProduct добавляет товар в каталог. Доступно только администратору.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed product body", http.StatusBadRequest)
		return
	}

	in := validation.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
	for _, v := range req.Variants {
		in.Variants = append(in.Variants, validation.VariantInput{Type: v.Type, License: v.License, Price: v.Price})
	}

	p, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		if errors.Is(err, validation.ErrInvalidProduct) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("create product error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, newProductResponse(*p))
}
