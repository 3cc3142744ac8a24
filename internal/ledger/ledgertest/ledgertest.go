// Package ledgertest holds behavior every ledger backend must share. Backend
// packages call Run from their own tests with a constructor that returns an
// empty store.
package ledgertest

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

// Factory returns a fresh, empty store. It registers its own cleanup.
type Factory func(t *testing.T) ledger.Store

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s ledger.Store)
	}{
		{"EndToEnd", testEndToEnd},
		{"RejectsInvalidAndExcessiveDebits", testRejectsDebits},
		{"MissingPayerOrCompany", testMissingReferences},
		{"ConcurrentDebits", testConcurrentDebits},
		{"SearchCompanies", testSearch},
		{"UpdateCompanyIdempotent", testUpdateIdempotent},
		{"CompanyDatesKeepInstant", testCompanyDates},
		{"UpdateCompanyFunderDiff", testFunderDiff},
		{"Funders", testFunders},
		{"Incomes", testIncomes},
		{"LedgerFilters", testFilters},
		{"Users", testUsers},
		{"DeleteCompanyRestoresBalances", testDeleteCompany},
		{"DeleteUserRemovesLedgerRows", testDeleteUser},
		{"CanceledContext", testCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// Company builds a valid company view with the given funders.
func Company(name string, funders ...string) core.CompanyView {
	v := core.CompanyView{
		Company: core.Company{CompanyProfile: core.CompanyProfile{
			CommercialFeature: name,
			IsWorking:         true,
			LegalEntity:       "LLC",
			RegisterNumber:    "R-100",
			StartDate:         time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			GeneralTaxMission: "Cairo",
			ActivityNature:    "trade",
			ActivityLocation:  "Giza",
			Accounts:          "general",
			RecordNumber:      "55",
			UserName:          "portal-user",
			Email:             "office@example.com",
		}},
	}
	for _, f := range funders {
		v.Funders = append(v.Funders, core.Funder{Name: f})
	}
	return v
}

func mustCompany(t *testing.T, s ledger.Store, name string, funders ...string) core.CompanyView {
	t.Helper()
	c, err := s.CreateCompany(context.Background(), Company(name, funders...))
	if err != nil {
		t.Fatalf("create company %q: %v", name, err)
	}
	return c
}

func mustUser(t *testing.T, s ledger.Store, name string, balance int64) core.User {
	t.Helper()
	ctx := context.Background()
	u, err := s.RegisterUser(ctx, core.User{Name: name, Password: "pw-" + name})
	if err != nil {
		t.Fatalf("register %q: %v", name, err)
	}
	if balance != 0 {
		if u, err = s.PayUser(ctx, u.ID, core.NewMoney(balance, 0)); err != nil {
			t.Fatalf("pay %q: %v", name, err)
		}
	}
	return u
}

func balanceOf(t *testing.T, s ledger.Store, id int64) core.Money {
	t.Helper()
	u, err := s.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %d: %v", id, err)
	}
	return u.Balance
}

func expenseCount(t *testing.T, s ledger.Store, f core.LedgerFilter) int {
	t.Helper()
	rows, err := s.ListExpenses(context.Background(), f)
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	return len(rows)
}

func testEndToEnd(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "mina", 0)
	if u.Balance.Cents != 0 {
		t.Fatalf("new user balance = %v, want 0", u.Balance)
	}
	if _, err := s.PayUser(ctx, u.ID, core.NewMoney(100, 0)); err != nil {
		t.Fatalf("pay: %v", err)
	}
	c := mustCompany(t, s, "Nile Trading", "Fadi")

	e, err := s.CreateExpense(ctx, u.ID, c.ID, core.NewMoney(40, 0), "rent")
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if e.User != "mina" || e.Company != "Nile Trading" || e.Value != core.NewMoney(40, 0) || e.Time.IsZero() {
		t.Fatalf("unexpected expense view %+v", e)
	}
	if got := balanceOf(t, s, u.ID); got != core.NewMoney(60, 0) {
		t.Fatalf("balance after expense = %v, want 60.00", got)
	}
	if n := expenseCount(t, s, core.LedgerFilter{ActorID: &u.ID}); n != 1 {
		t.Fatalf("expense rows = %d, want 1", n)
	}

	if err := s.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	if got := balanceOf(t, s, u.ID); got != core.NewMoney(100, 0) {
		t.Fatalf("balance after delete = %v, want 100.00", got)
	}
	if n := expenseCount(t, s, core.LedgerFilter{ActorID: &u.ID}); n != 0 {
		t.Fatalf("expense rows = %d, want 0", n)
	}
	if err := s.DeleteExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func testRejectsDebits(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "sara", 100)
	c := mustCompany(t, s, "Delta Foods", "Omar")

	for _, v := range []core.Money{{Cents: 0}, {Cents: -500}} {
		if _, err := s.CreateExpense(ctx, u.ID, c.ID, v, "bad"); !errors.Is(err, core.ErrInvalidValue) {
			t.Fatalf("value %v: expected ErrInvalidValue, got %v", v, err)
		}
	}

	_, err := s.CreateExpense(ctx, u.ID, c.ID, core.NewMoney(100, 1), "too much")
	var ib *core.InsufficientBalanceError
	if !errors.As(err, &ib) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if ib.Requested != core.NewMoney(100, 1) || ib.Available != core.NewMoney(100, 0) {
		t.Fatalf("unexpected diagnostics %+v", ib)
	}

	if got := balanceOf(t, s, u.ID); got != core.NewMoney(100, 0) {
		t.Fatalf("balance changed to %v", got)
	}
	if n := expenseCount(t, s, core.LedgerFilter{}); n != 0 {
		t.Fatalf("expense rows = %d, want 0", n)
	}

	// Spending the exact balance is allowed.
	if _, err := s.CreateExpense(ctx, u.ID, c.ID, core.NewMoney(100, 0), "all"); err != nil {
		t.Fatalf("exact balance: %v", err)
	}
	if got := balanceOf(t, s, u.ID); got.Cents != 0 {
		t.Fatalf("balance = %v, want 0", got)
	}
}

func testMissingReferences(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "karim", 10)
	c := mustCompany(t, s, "Aswan Stone", "Laila")

	cases := []struct {
		name      string
		userID    int64
		companyID int64
		value     core.Money
		want      error
	}{
		{"missing payer", 9999, c.ID, core.NewMoney(1, 0), core.ErrNotFound},
		{"missing company", u.ID, 9999, core.NewMoney(1, 0), core.ErrNotFound},
		{"missing payer zero value", 9999, c.ID, core.Money{}, core.ErrNotFound},
		{"missing company negative value", u.ID, 9999, core.Money{Cents: -100}, core.ErrNotFound},
		{"known refs zero value", u.ID, c.ID, core.Money{}, core.ErrInvalidValue},
	}
	for _, tc := range cases {
		if _, err := s.CreateExpense(ctx, tc.userID, tc.companyID, tc.value, ""); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if _, err := s.CreateIncome(ctx, u.ID, 9999, core.Money{}, ""); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("income missing company zero value: expected ErrNotFound, got %v", err)
	}
	if got := balanceOf(t, s, u.ID); got != core.NewMoney(10, 0) {
		t.Fatalf("balance changed to %v", got)
	}
}

func testConcurrentDebits(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "race", 50)
	c := mustCompany(t, s, "Concurrent Co", "Nour")

	const workers = 8
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
		unexpected   []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateExpense(ctx, u.ID, c.ID, core.NewMoney(10, 0), "parallel")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, core.ErrInsufficientBalance):
				rejected++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	if len(unexpected) > 0 {
		t.Fatalf("unexpected errors: %v", unexpected)
	}
	if ok != 5 || rejected != workers-5 {
		t.Fatalf("successes = %d, rejections = %d; want 5 and %d", ok, rejected, workers-5)
	}
	if got := balanceOf(t, s, u.ID); got.Cents != 0 {
		t.Fatalf("final balance = %v, want 0", got)
	}
	if n := expenseCount(t, s, core.LedgerFilter{ActorID: &u.ID}); n != 5 {
		t.Fatalf("expense rows = %d, want 5", n)
	}

	// Two debits of the whole balance: exactly one wins.
	if _, err := s.PayUser(ctx, u.ID, core.NewMoney(30, 0)); err != nil {
		t.Fatalf("pay: %v", err)
	}
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := s.CreateExpense(ctx, u.ID, c.ID, core.NewMoney(30, 0), "whole")
			errs <- err
		}()
	}
	var wins, losses int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			wins++
		case errors.Is(err, core.ErrInsufficientBalance):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("wins = %d, losses = %d; want 1 and 1", wins, losses)
	}
	if got := balanceOf(t, s, u.ID); got.Cents != 0 {
		t.Fatalf("final balance = %v, want 0", got)
	}
}

func testSearch(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	nile := mustCompany(t, s, "Nile Trading", "Fadi Hassan", "Fatma Hassan")
	mustCompany(t, s, "Red Sea Fisheries", "Ahmed")
	ecole := mustCompany(t, s, "École Générale", "Ömer Şahin", "Zeynep")

	tests := []struct {
		query string
		want  int64
	}{
		{"nile", nile.ID},
		{"NILE trad", nile.ID},
		{"fadi", nile.ID},
		{"HASSAN", nile.ID},
		{strconv.FormatInt(nile.ID, 10), nile.ID},
		{"École Générale", ecole.ID},
		{"école", ecole.ID},
		{"ÉCOLE", ecole.ID},
		{"générale", ecole.ID},
		{"ömer", ecole.ID},
		{"ÖMER Ş", ecole.ID},
	}
	for _, tt := range tests {
		got, err := s.SearchCompanies(ctx, tt.query)
		if err != nil {
			t.Fatalf("search %q: %v", tt.query, err)
		}
		found := 0
		for _, c := range got {
			if c.ID == tt.want {
				found++
				if len(c.Funders) != 2 {
					t.Fatalf("search %q: funders = %v", tt.query, c.Funders)
				}
			}
		}
		if found != 1 {
			t.Fatalf("search %q: company %d appears %d times in %d results", tt.query, tt.want, found, len(got))
		}
	}

	all, err := s.SearchCompanies(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("empty query: got %d results, err %v", len(all), err)
	}

	for _, q := range []string{"zzz-no-such", "%", "_"} {
		if _, err := s.SearchCompanies(ctx, q); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("search %q: expected ErrNotFound, got %v", q, err)
		}
	}
}

func testUpdateIdempotent(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCompany(t, s, "Luxor Tours", "Hany")
	stop := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	file := "F-9"
	c.StopDate = &stop
	c.FileNumber = &file

	updated, err := s.UpdateCompany(ctx, c)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	again, err := s.UpdateCompany(ctx, updated)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	stored, err := s.GetCompany(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	a, _ := json.Marshal(updated)
	b, _ := json.Marshal(again)
	d, _ := json.Marshal(stored)
	if string(a) != string(b) || string(b) != string(d) {
		t.Fatalf("update with own values changed the company:\n%s\n%s\n%s", a, b, d)
	}
	if stored.FileNumber == nil || *stored.FileNumber != "F-9" || stored.StopDate == nil || !stored.StopDate.Equal(stop) {
		t.Fatalf("optional fields not stored: %+v", stored.CompanyProfile)
	}

	missing := c
	missing.ID = 9999
	if _, err := s.UpdateCompany(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testCompanyDates(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	cairo := time.FixedZone("EET", 3*60*60)
	start := time.Date(2024, 1, 2, 15, 4, 5, 0, cairo)
	stop := time.Date(2025, 6, 30, 23, 59, 30, 0, cairo)
	joined := time.Date(2024, 2, 14, 8, 30, 0, 0, time.UTC)

	v := Company("Aswan Clocks", "Karim")
	v.StartDate = start
	v.StopDate = &stop
	v.JoiningDate = &joined
	c, err := s.CreateCompany(ctx, v)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	check := func(stage string, got core.CompanyView) {
		t.Helper()
		if !got.StartDate.Equal(start) {
			t.Fatalf("%s: start_date = %s, want %s", stage, got.StartDate, start)
		}
		if got.StopDate == nil || !got.StopDate.Equal(stop) {
			t.Fatalf("%s: stop_date = %v, want %s", stage, got.StopDate, stop)
		}
		if got.JoiningDate == nil || !got.JoiningDate.Equal(joined) {
			t.Fatalf("%s: joining_date = %v, want %s", stage, got.JoiningDate, joined)
		}
	}

	stored, err := s.GetCompany(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	check("after create", stored)

	if _, err := s.UpdateCompany(ctx, stored); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, err = s.GetCompany(ctx, c.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	check("after update", stored)
}

func testFunderDiff(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCompany(t, s, "Sinai Mining", "Old Name")
	other := mustCompany(t, s, "Other Co", "Foreign")

	c.Funders[0].Name = "New Name"
	c.Funders = append(c.Funders,
		core.Funder{Name: "Added"},
		core.Funder{ID: other.Funders[0].ID, Name: "Not Stolen"},
	)
	got, err := s.UpdateCompany(ctx, c)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(got.Funders) != 3 {
		t.Fatalf("funders = %+v, want 3", got.Funders)
	}
	if got.Funders[0].ID != c.Funders[0].ID || got.Funders[0].Name != "New Name" {
		t.Fatalf("funder not renamed in place: %+v", got.Funders[0])
	}

	otherNow, err := s.GetCompany(ctx, other.ID)
	if err != nil {
		t.Fatalf("get other: %v", err)
	}
	if otherNow.Funders[0].Name != "Foreign" {
		t.Fatalf("funder of another company was modified: %+v", otherNow.Funders)
	}
}

func testFunders(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c := mustCompany(t, s, "Funded", "First")

	f, err := s.CreateFunder(ctx, c.ID, core.Funder{Name: "Second"})
	if err != nil {
		t.Fatalf("create funder: %v", err)
	}
	if f.CompanyID != c.ID || f.ID == 0 {
		t.Fatalf("unexpected funder %+v", f)
	}
	if _, err := s.CreateFunder(ctx, 9999, core.Funder{Name: "Ghost"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing company: expected ErrNotFound, got %v", err)
	}
	if _, err := s.CreateFunder(ctx, c.ID, core.Funder{Name: "  "}); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("empty name: expected ErrInvalidValue, got %v", err)
	}

	list, err := s.ListFunders(ctx, c.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("list funders = %v, %v", list, err)
	}
	if _, err := s.ListFunders(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("list for missing company: expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteFunder(ctx, f.ID); err != nil {
		t.Fatalf("delete funder: %v", err)
	}
	if err := s.DeleteFunder(ctx, f.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func testIncomes(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	admin, err := s.RegisterUser(ctx, core.User{Name: "boss", Password: "pw", IsAdmin: true})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	c := mustCompany(t, s, "Income Co", "Rana")

	in, err := s.CreateIncome(ctx, admin.ID, c.ID, core.NewMoney(250, 50), "invoice 7")
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	if in.Admin != "boss" || in.Company != "Income Co" || in.Value != core.NewMoney(250, 50) {
		t.Fatalf("unexpected income view %+v", in)
	}
	if got := balanceOf(t, s, admin.ID); got.Cents != 0 {
		t.Fatalf("income changed admin balance to %v", got)
	}

	if _, err := s.CreateIncome(ctx, admin.ID, c.ID, core.Money{}, ""); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("zero income: expected ErrInvalidValue, got %v", err)
	}
	if _, err := s.CreateIncome(ctx, 9999, c.ID, core.NewMoney(1, 0), ""); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing admin: expected ErrNotFound, got %v", err)
	}
	if _, err := s.CreateIncome(ctx, admin.ID, 9999, core.NewMoney(1, 0), ""); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing company: expected ErrNotFound, got %v", err)
	}

	list, err := s.ListIncomes(ctx, core.LedgerFilter{CompanyID: &c.ID})
	if err != nil || len(list) != 1 || list[0].ID != in.ID {
		t.Fatalf("list incomes = %+v, %v", list, err)
	}

	if err := s.DeleteIncome(ctx, in.ID); err != nil {
		t.Fatalf("delete income: %v", err)
	}
	if err := s.DeleteIncome(ctx, in.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
	if got := balanceOf(t, s, admin.ID); got.Cents != 0 {
		t.Fatalf("deleting income changed admin balance to %v", got)
	}
}

func testFilters(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	a := mustUser(t, s, "alpha", 100)
	b := mustUser(t, s, "beta", 100)
	c1 := mustCompany(t, s, "One", "x")
	c2 := mustCompany(t, s, "Two", "y")

	for _, p := range []struct{ user, company int64 }{
		{a.ID, c1.ID}, {a.ID, c2.ID}, {b.ID, c1.ID}, {a.ID, c1.ID},
	} {
		if _, err := s.CreateExpense(ctx, p.user, p.company, core.NewMoney(1, 0), ""); err != nil {
			t.Fatalf("create expense: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter core.LedgerFilter
		want   int
	}{
		{"none", core.LedgerFilter{}, 4},
		{"actor", core.LedgerFilter{ActorID: &a.ID}, 3},
		{"company", core.LedgerFilter{CompanyID: &c1.ID}, 3},
		{"both", core.LedgerFilter{ActorID: &a.ID, CompanyID: &c1.ID}, 2},
		{"other actor", core.LedgerFilter{ActorID: &b.ID, CompanyID: &c2.ID}, 0},
	}
	for _, tt := range tests {
		rows, err := s.ListExpenses(ctx, tt.filter)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if len(rows) != tt.want {
			t.Fatalf("%s: rows = %d, want %d", tt.name, len(rows), tt.want)
		}
		for i, r := range rows {
			if !tt.filter.Matches(r.UserID, r.CompanyID) {
				t.Fatalf("%s: row %+v does not match filter", tt.name, r)
			}
			if i > 0 && rows[i-1].Time.After(r.Time) {
				t.Fatalf("%s: rows not ordered by time", tt.name)
			}
		}
	}
}

func testUsers(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "hoda", 0)

	if _, err := s.RegisterUser(ctx, core.User{Name: "hoda", Password: "x"}); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("duplicate name: expected ErrInvalidValue, got %v", err)
	}
	if _, err := s.RegisterUser(ctx, core.User{Name: "", Password: "x"}); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("empty name: expected ErrInvalidValue, got %v", err)
	}

	got, err := s.LoginUser(ctx, "hoda", "pw-hoda")
	if err != nil || got.ID != u.ID {
		t.Fatalf("login: %+v, %v", got, err)
	}
	if got.Password != "" {
		t.Fatal("login leaked the password hash")
	}
	if _, err := s.LoginUser(ctx, "hoda", "wrong"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("wrong password: expected ErrNotFound, got %v", err)
	}
	if _, err := s.LoginUser(ctx, "nobody", "pw"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}

	if _, err := s.PayUser(ctx, u.ID, core.Money{Cents: -1}); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("negative pay: expected ErrInvalidValue, got %v", err)
	}
	if _, err := s.PayUser(ctx, 9999, core.NewMoney(1, 0)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("pay missing user: expected ErrNotFound, got %v", err)
	}
	paid, err := s.PayUser(ctx, u.ID, core.NewMoney(12, 34))
	if err != nil || paid.Balance != core.NewMoney(12, 34) {
		t.Fatalf("pay: %+v, %v", paid, err)
	}
	// Pay sets, it does not add.
	paid, err = s.PayUser(ctx, u.ID, core.NewMoney(5, 0))
	if err != nil || paid.Balance != core.NewMoney(5, 0) {
		t.Fatalf("second pay: %+v, %v", paid, err)
	}

	updated, err := s.UpdateUser(ctx, core.User{ID: u.ID, Name: "hoda2", Password: "new"})
	if err != nil || updated.Name != "hoda2" || updated.Balance != core.NewMoney(5, 0) {
		t.Fatalf("update: %+v, %v", updated, err)
	}
	if _, err := s.LoginUser(ctx, "hoda2", "new"); err != nil {
		t.Fatalf("login after update: %v", err)
	}
	if _, err := s.UpdateUser(ctx, core.User{ID: 9999, Name: "z", Password: "z"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update missing: expected ErrNotFound, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("list users = %+v, %v", users, err)
	}
	if _, err := s.GetUser(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get missing: expected ErrNotFound, got %v", err)
	}
}

func testDeleteCompany(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "payer", 100)
	c := mustCompany(t, s, "Doomed", "f")
	keep := mustCompany(t, s, "Kept", "g")

	for _, id := range []int64{c.ID, c.ID, keep.ID} {
		if _, err := s.CreateExpense(ctx, u.ID, id, core.NewMoney(20, 0), ""); err != nil {
			t.Fatalf("expense: %v", err)
		}
	}
	if got := balanceOf(t, s, u.ID); got != core.NewMoney(40, 0) {
		t.Fatalf("balance = %v, want 40", got)
	}

	if err := s.DeleteCompany(ctx, c.ID); err != nil {
		t.Fatalf("delete company: %v", err)
	}
	if got := balanceOf(t, s, u.ID); got != core.NewMoney(80, 0) {
		t.Fatalf("balance after company delete = %v, want 80", got)
	}
	if _, err := s.GetCompany(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get deleted: expected ErrNotFound, got %v", err)
	}
	if n := expenseCount(t, s, core.LedgerFilter{}); n != 1 {
		t.Fatalf("expense rows = %d, want 1", n)
	}
	if err := s.DeleteCompany(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func testDeleteUser(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "leaver", 10)
	c := mustCompany(t, s, "Stay", "h")
	if _, err := s.CreateExpense(ctx, u.ID, c.ID, core.NewMoney(1, 0), ""); err != nil {
		t.Fatalf("expense: %v", err)
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if n := expenseCount(t, s, core.LedgerFilter{}); n != 0 {
		t.Fatalf("expense rows = %d, want 0", n)
	}
	if err := s.DeleteUser(ctx, u.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func testCanceled(t *testing.T, s ledger.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ListUsers(ctx); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
