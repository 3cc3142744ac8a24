package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"accounting/internal/core"
	"accounting/internal/ledger"
	"accounting/internal/ledger/ledgertest"
)

var (
	sharedOnce  sync.Once
	sharedStore *Store
	sharedErr   error
)

// newTestStore returns a store over an emptied database. Tests are skipped
// unless ACCOUNTING_TEST_DATABASE_URL points at a disposable database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("ACCOUNTING_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ACCOUNTING_TEST_DATABASE_URL not set")
	}
	sharedOnce.Do(func() {
		sharedStore, sharedErr = New(context.Background(), Config{URL: url, MaxConns: 8, Timeout: 10 * time.Second})
	})
	if sharedErr != nil {
		t.Fatalf("open store: %v", sharedErr)
	}
	_, err := sharedStore.pool.Exec(context.Background(),
		`TRUNCATE users, companies, funders, expenses, incomes, money_capitals RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return sharedStore
}

func TestLedgerConformance(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store {
		return newTestStore(t)
	})
}

func TestCreateCompanyRequiresFunder(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateCompany(context.Background(), ledgertest.Company("Lonely"))
	if !errors.Is(err, core.ErrFunderRequired) || !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("expected ErrFunderRequired, got %v", err)
	}
}

func setup(t *testing.T, s *Store, balance int64) (core.User, core.CompanyView) {
	t.Helper()
	ctx := context.Background()
	u, err := s.RegisterUser(ctx, core.User{Name: "payer", Password: "secret"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.PayUser(ctx, u.ID, core.Money{Cents: balance}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	c, err := s.CreateCompany(ctx, ledgertest.Company("Capital Co", "a"))
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	return u, c
}

func balance(t *testing.T, s *Store, id int64) int64 {
	t.Helper()
	u, err := s.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u.Balance.Cents
}

func TestMoneyCapitalLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u, c := setup(t, s, 10000)

	mc, err := s.CreateMoneyCapital(ctx, u.ID, c.ID, core.Money{Cents: 2500}, "seed")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if mc.User != "payer" || mc.Company != "Capital Co" {
		t.Fatalf("view names not joined: %+v", mc)
	}
	if got := balance(t, s, u.ID); got != 7500 {
		t.Fatalf("balance = %d, want 7500", got)
	}

	_, err = s.CreateMoneyCapital(ctx, u.ID, c.ID, core.Money{Cents: 9000}, "too much")
	var ib *core.InsufficientBalanceError
	if !errors.As(err, &ib) || ib.Available.Cents != 7500 {
		t.Fatalf("expected insufficient balance with 7500 available, got %v", err)
	}

	view, err := s.GetCompany(ctx, c.ID)
	if err != nil || len(view.MoneyCapitals) != 1 {
		t.Fatalf("aggregate money capitals: %+v, %v", view.MoneyCapitals, err)
	}

	list, err := s.ListMoneyCapitals(ctx, core.LedgerFilter{CompanyID: &c.ID})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %+v, %v", list, err)
	}

	if err := s.DeleteMoneyCapital(ctx, mc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := balance(t, s, u.ID); got != 10000 {
		t.Fatalf("balance after delete = %d, want 10000", got)
	}
	if err := s.DeleteMoneyCapital(ctx, mc.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCompanyDiffsMoneyCapitals(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u, c := setup(t, s, 10000)

	c.MoneyCapitals = []core.MoneyCapital{{UserID: u.ID, Value: core.Money{Cents: 4000}, Description: "first"}}
	got, err := s.UpdateCompany(ctx, c)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(got.MoneyCapitals) != 1 || balance(t, s, u.ID) != 6000 {
		t.Fatalf("new money capital not debited: %+v", got.MoneyCapitals)
	}

	got.MoneyCapitals[0].Description = "renamed"
	again, err := s.UpdateCompany(ctx, got)
	if err != nil {
		t.Fatalf("update description: %v", err)
	}
	if again.MoneyCapitals[0].Description != "renamed" || balance(t, s, u.ID) != 6000 {
		t.Fatalf("description change should not touch the balance: %+v", again.MoneyCapitals)
	}

	again.MoneyCapitals[0].Value = core.Money{Cents: 1}
	if _, err := s.UpdateCompany(ctx, again); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("changing a recorded value: expected ErrInvalidValue, got %v", err)
	}

	again.MoneyCapitals[0].Value = core.Money{Cents: 4000}
	again.MoneyCapitals = append(again.MoneyCapitals, core.MoneyCapital{UserID: u.ID, Value: core.Money{Cents: 7000}})
	if _, err := s.UpdateCompany(ctx, again); !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("overdraft through update: expected insufficient balance, got %v", err)
	}
	stored, _ := s.GetCompany(ctx, c.ID)
	if len(stored.MoneyCapitals) != 1 || balance(t, s, u.ID) != 6000 {
		t.Fatalf("failed update was not rolled back: %+v", stored.MoneyCapitals)
	}
}

func TestDeleteCompanyRestoresMoneyCapitals(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u, c := setup(t, s, 5000)

	if _, err := s.CreateMoneyCapital(ctx, u.ID, c.ID, core.Money{Cents: 2000}, ""); err != nil {
		t.Fatalf("money capital: %v", err)
	}
	if _, err := s.CreateExpense(ctx, u.ID, c.ID, core.Money{Cents: 1000}, ""); err != nil {
		t.Fatalf("expense: %v", err)
	}
	if err := s.DeleteCompany(ctx, c.ID); err != nil {
		t.Fatalf("delete company: %v", err)
	}
	if got := balance(t, s, u.ID); got != 5000 {
		t.Fatalf("balance = %d, want 5000", got)
	}
	if err := s.DeleteCompany(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
