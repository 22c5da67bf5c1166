// Package model содержит доменные сущности магазина изображений.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role определяет уровень доступа пользователя.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User представляет зарегистрированного покупателя или администратора.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// VariantType описывает формат кадрирования изображения.
type VariantType string

const (
	VariantSquare   VariantType = "SQUARE"
	VariantWide     VariantType = "WIDE"
	VariantPortrait VariantType = "PORTRAIT"
)

// Dimensions задаёт размер изображения в пикселях.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var variantDimensions = map[VariantType]Dimensions{
	VariantSquare:   {Width: 1200, Height: 1200},
	VariantWide:     {Width: 1920, Height: 1080},
	VariantPortrait: {Width: 1080, Height: 1440},
}

// ParseVariantType нормализует тип варианта без учёта регистра.
func ParseVariantType(s string) (VariantType, bool) {
	t := VariantType(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := variantDimensions[t]
	return t, ok
}

// Dimensions возвращает размер изображения для типа варианта.
func (t VariantType) Dimensions() Dimensions {
	return variantDimensions[t]
}

// License описывает тип лицензии на изображение.
type License string

const (
	LicensePersonal   License = "personal"
	LicenseCommercial License = "commercial"
)

// ParseLicense нормализует лицензию без учёта регистра.
func ParseLicense(s string) (License, bool) {
	l := License(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LicensePersonal, LicenseCommercial:
		return l, true
	}
	return l, false
}

// Variant описывает покупаемую комбинацию формата и лицензии.
// Price хранится в минимальных единицах валюты.
type Variant struct {
	Type    VariantType
	License License
	Price   int64
}

// VariantSelector описывает выбор клиента. Цена в нём намеренно отсутствует.
type VariantSelector struct {
	Type    VariantType
	License License
}

// Matches сообщает, соответствует ли вариант выбору клиента.
func (s VariantSelector) Matches(v Variant) bool {
	return s.Type == v.Type && s.License == v.License
}

// Product описывает товар каталога.
type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	ImageURL    string
	Variants    []Variant
	CreatedAt   time.Time
}

// OrderStatus описывает статус оплаты заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// IsTerminal сообщает, является ли статус окончательным.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// Order описывает заказ пользователя. Все поля, кроме Status и ResolvedAt,
// записываются один раз при создании.
type Order struct {
	ID              uuid.UUID
	UserID          int64
	ProductID       uuid.UUID
	Variant         Variant
	Amount          int64
	Currency        string
	GatewayOrderRef string
	IdempotencyKey  string
	Status          OrderStatus
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// ProductSummary содержит краткие сведения о товаре для истории заказов.
type ProductSummary struct {
	ID       uuid.UUID
	Name     string
	ImageURL string
	Missing  bool
}

// OrderView описывает заказ вместе с данными товара и ссылкой на скачивание.
type OrderView struct {
	Order       Order
	Product     ProductSummary
	DownloadURL string
}

// OrderEvent описывает запись outbox о смене статуса заказа.
type OrderEvent struct {
	ID        int64
	OrderID   uuid.UUID
	UserID    int64
	Status    OrderStatus
	Amount    int64
	Currency  string
	CreatedAt time.Time
}
