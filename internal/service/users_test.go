package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/imageshop/internal/model"
	"github.com/mmeshcher/imageshop/internal/repository"
	"github.com/mmeshcher/imageshop/internal/validation"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.RegisterUser(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}
	if u.Role != model.RoleUser {
		t.Fatalf("role = %s, want user", u.Role)
	}
	if string(u.PasswordHash) == "correct-horse" {
		t.Fatalf("password stored in plain text")
	}

	got, err := svc.AuthenticateUser(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("AuthenticateUser error: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("user id = %d, want %d", got.ID, u.ID)
	}

	if _, err := svc.AuthenticateUser(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.AuthenticateUser(ctx, "bob", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterUser_Errors(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RegisterUser(ctx, "alice", "short"); !errors.Is(err, ErrInvalidUserInput) {
		t.Fatalf("error = %v, want ErrInvalidUserInput", err)
	}
	if _, err := svc.RegisterUser(ctx, "  ", "long-enough"); !errors.Is(err, ErrInvalidUserInput) {
		t.Fatalf("error = %v, want ErrInvalidUserInput", err)
	}

	if _, err := svc.RegisterUser(ctx, "alice", "long-enough"); err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}
	if _, err := svc.RegisterUser(ctx, "alice", "long-enough"); !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("error = %v, want ErrUserExists", err)
	}
}

func TestCreateProduct(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	p, err := svc.CreateProduct(context.Background(), validation.ProductInput{
		Name:        "Forest",
		Description: "Morning fog",
		ImageURL:    "https://cdn.example.com/forest.jpg",
		Variants: []validation.VariantInput{
			{Type: "portrait", License: "Commercial", Price: decimal.RequireFromString("19.50")},
		},
	})
	if err != nil {
		t.Fatalf("CreateProduct error: %v", err)
	}

	stored, err := svc.GetProduct(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProduct error: %v", err)
	}
	want := model.Variant{Type: model.VariantPortrait, License: model.LicenseCommercial, Price: 1950}
	if len(stored.Variants) != 1 || stored.Variants[0] != want {
		t.Fatalf("variants = %+v, want [%+v]", stored.Variants, want)
	}
	if len(repo.products) != 2 {
		t.Fatalf("products = %d, want 2", len(repo.products))
	}

	if _, err := svc.CreateProduct(context.Background(), validation.ProductInput{Name: "Empty"}); !errors.Is(err, validation.ErrInvalidProduct) {
		t.Fatalf("error = %v, want ErrInvalidProduct", err)
	}
}
