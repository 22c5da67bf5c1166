package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/imageshop/internal/gateway"
	"github.com/mmeshcher/imageshop/internal/model"
)

func TestSweepPending(t *testing.T) {
	svc, repo, gw, sunset := newTestService(t)
	ctx := context.Background()

	paid, err := svc.CreateOrder(ctx, testUserID, sunset, squarePersonal, "")
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	unpaid, err := svc.CreateOrder(ctx, testUserID, sunset, squarePersonal, "")
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	orphan, _, err := repo.CreateOrder(ctx, &model.Order{
		ID:        uuid.New(),
		UserID:    testUserID,
		ProductID: sunset,
		Variant:   model.Variant{Type: model.VariantSquare, License: model.LicensePersonal, Price: 999},
		Amount:    999,
		Currency:  "USD",
		Status:    model.OrderStatusPending,
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	gw.statuses[paid.GatewayOrderRef] = gateway.IntentPaid

	// Nothing is old enough yet.
	if n, err := svc.SweepPending(ctx); err != nil || n != 0 {
		t.Fatalf("SweepPending = %d, %v; want 0, nil", n, err)
	}

	svc.now = func() time.Time { return repo.clock.Add(2 * time.Hour) }

	n, err := svc.SweepPending(ctx)
	if err != nil {
		t.Fatalf("SweepPending error: %v", err)
	}
	if n != 3 {
		t.Fatalf("resolved = %d, want 3", n)
	}

	if got := repo.order(paid.OrderID).Status; got != model.OrderStatusCompleted {
		t.Fatalf("paid order status = %s, want completed", got)
	}
	if got := repo.order(unpaid.OrderID).Status; got != model.OrderStatusFailed {
		t.Fatalf("unpaid order status = %s, want failed", got)
	}
	if got := repo.order(orphan.ID).Status; got != model.OrderStatusFailed {
		t.Fatalf("orphan order status = %s, want failed", got)
	}
}

func TestSweepPending_GatewayErrorKeepsOrderPending(t *testing.T) {
	svc, repo, gw, sunset := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreateOrder(ctx, testUserID, sunset, squarePersonal, "")
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	gw.statusErr = gateway.ErrGatewayUnavailable
	svc.now = func() time.Time { return repo.clock.Add(2 * time.Hour) }

	n, err := svc.SweepPending(ctx)
	if err != nil {
		t.Fatalf("SweepPending error: %v", err)
	}
	if n != 0 {
		t.Fatalf("resolved = %d, want 0", n)
	}
	if got := repo.order(res.OrderID).Status; got != model.OrderStatusPending {
		t.Fatalf("status = %s, want pending", got)
	}
}

func TestStartPendingSweep_StopsOnCancel(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.opts.SweepInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		svc.StartPendingSweep(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("StartPendingSweep did not return after cancel")
	}
}
