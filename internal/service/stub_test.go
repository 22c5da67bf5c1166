package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/imageshop/internal/gateway"
	"github.com/mmeshcher/imageshop/internal/model"
	"github.com/mmeshcher/imageshop/internal/repository"
)

type memRepo struct {
	mu       sync.Mutex
	users    map[string]*model.User
	products map[uuid.UUID]model.Product
	orders   map[uuid.UUID]model.Order
	clock    time.Time

	createOrderErr error
	attachErr      error
	casCalls       int
	casSwaps       int
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:    make(map[string]*model.User),
		products: make(map[uuid.UUID]model.Product),
		orders:   make(map[uuid.UUID]model.Order),
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memRepo) Close() error { return nil }

func (m *memRepo) CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[login]; ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrUserExists, login)
	}
	u := &model.User{ID: int64(len(m.users) + 1), Login: login, PasswordHash: passwordHash, Role: role}
	m.users[login] = u
	return u, nil
}

func (m *memRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[login]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memRepo) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Variants = append([]model.Variant(nil), p.Variants...)
	m.products[p.ID] = p
	return &p, nil
}

func (m *memRepo) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrProductNotFound, id)
	}
	p.Variants = append([]model.Variant(nil), p.Variants...)
	return &p, nil
}

func (m *memRepo) ListProducts(ctx context.Context, search string) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.Product
	for _, p := range m.products {
		res = append(res, p)
	}
	return res, nil
}

func (m *memRepo) deleteProduct(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
}

func (m *memRepo) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createOrderErr != nil {
		return nil, false, m.createOrderErr
	}

	if o.IdempotencyKey != "" {
		for _, existing := range m.orders {
			if existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
				cp := existing
				return &cp, true, nil
			}
		}
	}

	m.clock = m.clock.Add(time.Second)
	created := *o
	created.CreatedAt = m.clock
	m.orders[o.ID] = created
	return &created, false, nil
}

func (m *memRepo) AttachGatewayRef(ctx context.Context, id uuid.UUID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.attachErr != nil {
		return m.attachErr
	}

	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.GatewayOrderRef != "" {
		return repository.ErrGatewayRefAlreadySet
	}
	o.GatewayOrderRef = ref
	m.orders[id] = o
	return nil
}

func (m *memRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memRepo) GetOrderByGatewayRef(ctx context.Context, ref string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.GatewayOrderRef != "" && o.GatewayOrderRef == ref {
			return &o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *memRepo) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next model.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.casCalls++
	if expected != model.OrderStatusPending || !next.IsTerminal() {
		return false, repository.ErrInvalidTransition
	}

	o, ok := m.orders[id]
	if !ok || o.Status != expected {
		return false, nil
	}
	m.casSwaps++
	o.Status = next
	now := m.clock
	o.ResolvedAt = &now
	m.orders[id] = o
	return true, nil
}

func (m *memRepo) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (m *memRepo) ListStalePendingOrders(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.Order
	for _, o := range m.orders {
		if o.Status == model.OrderStatusPending && o.CreatedAt.Before(olderThan) {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *memRepo) order(id uuid.UUID) model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memRepo) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type stubGateway struct {
	mu sync.Mutex

	nextRef   int
	createErr error
	intents   map[string]int64
	requests  []int64

	statuses  map[string]gateway.IntentStatus
	statusErr error

	verified  gateway.Confirmation
	verifyErr error
	byPayload map[string]gateway.Confirmation
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		intents:   make(map[string]int64),
		statuses:  make(map[string]gateway.IntentStatus),
		byPayload: make(map[string]gateway.Confirmation),
	}
}

func (g *stubGateway) CreateIntent(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, amount)
	if g.createErr != nil {
		return "", g.createErr
	}
	g.nextRef++
	ref := fmt.Sprintf("order_%d", g.nextRef)
	g.intents[ref] = amount
	return ref, nil
}

func (g *stubGateway) VerifyConfirmation(payload []byte, signature string) (gateway.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.verifyErr != nil {
		return gateway.Confirmation{}, g.verifyErr
	}
	if c, ok := g.byPayload[string(payload)]; ok {
		return c, nil
	}
	return g.verified, nil
}

func (g *stubGateway) FetchIntentStatus(ctx context.Context, ref string) (gateway.IntentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.statusErr != nil {
		return "", g.statusErr
	}
	if s, ok := g.statuses[ref]; ok {
		return s, nil
	}
	return gateway.IntentCreated, nil
}

func (g *stubGateway) confirm(ref string, outcome gateway.Outcome, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyErr = nil
	g.verified = gateway.Confirmation{
		Event:           "payment.captured",
		GatewayOrderRef: ref,
		Outcome:         outcome,
		Amount:          amount,
		Currency:        "USD",
	}
}

func (g *stubGateway) confirmWith(conf gateway.Confirmation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyErr = nil
	g.verified = conf
}

// confirmPayload задаёт подтверждение, возвращаемое для конкретного тела уведомления.
func (g *stubGateway) confirmPayload(payload string, conf gateway.Confirmation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byPayload[payload] = conf
}

func (m *memRepo) swaps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.casSwaps
}

func (g *stubGateway) intentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}
