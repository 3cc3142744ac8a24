// Package ledger defines the storage contract consumed by the transport
// layer. Each backend implements the mandatory stores; money-capital and
// document stores are optional capabilities discovered by type assertion.
package ledger

import (
	"context"
	"io"
	"time"

	"accounting/internal/core"
)

type (
	CompanyStore interface {
		// CreateCompany persists the company profile and its initial funders
		// in one transaction.
		CreateCompany(ctx context.Context, c core.CompanyView) (core.CompanyView, error)
		// UpdateCompany rewrites the profile and diffs the supplied funders
		// (and, where supported, money capitals) against the stored rows.
		UpdateCompany(ctx context.Context, c core.CompanyView) (core.CompanyView, error)
		// SearchCompanies matches id text, commercial name and funder names
		// case-insensitively. An empty result is core.ErrNotFound.
		SearchCompanies(ctx context.Context, query string) ([]core.CompanyView, error)
		GetCompany(ctx context.Context, id int64) (core.CompanyView, error)
		DeleteCompany(ctx context.Context, id int64) error
	}

	FunderStore interface {
		CreateFunder(ctx context.Context, companyID int64, f core.Funder) (core.Funder, error)
		ListFunders(ctx context.Context, companyID int64) ([]core.Funder, error)
		DeleteFunder(ctx context.Context, id int64) error
	}

	UserStore interface {
		RegisterUser(ctx context.Context, u core.User) (core.User, error)
		UpdateUser(ctx context.Context, u core.User) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
		GetUser(ctx context.Context, id int64) (core.User, error)
		// LoginUser returns core.ErrNotFound unless name and password match.
		LoginUser(ctx context.Context, name, password string) (core.User, error)
		// PayUser sets the user's balance.
		PayUser(ctx context.Context, id int64, balance core.Money) (core.User, error)
		DeleteUser(ctx context.Context, id int64) error
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, userID, companyID int64, value core.Money, description string) (core.ExpenseView, error)
		ListExpenses(ctx context.Context, f core.LedgerFilter) ([]core.ExpenseView, error)
		DeleteExpense(ctx context.Context, id int64) error
	}

	IncomeStore interface {
		CreateIncome(ctx context.Context, adminID, companyID int64, value core.Money, description string) (core.IncomeView, error)
		ListIncomes(ctx context.Context, f core.LedgerFilter) ([]core.IncomeView, error)
		DeleteIncome(ctx context.Context, id int64) error
	}

	MoneyCapitalStore interface {
		CreateMoneyCapital(ctx context.Context, userID, companyID int64, value core.Money, description string) (core.MoneyCapitalView, error)
		ListMoneyCapitals(ctx context.Context, f core.LedgerFilter) ([]core.MoneyCapitalView, error)
		DeleteMoneyCapital(ctx context.Context, id int64) error
	}

	DocumentStore interface {
		CreateDocument(ctx context.Context, companyID int64, upload Upload) (core.DocumentView, error)
		ListDocuments(ctx context.Context, companyID int64) ([]core.DocumentView, error)
		GetDocument(ctx context.Context, id int64) (core.DocumentView, error)
		OpenDocument(ctx context.Context, id int64) (core.DocumentView, io.ReadCloser, error)
		DeleteDocument(ctx context.Context, id int64) error
		DeleteDocumentByPath(ctx context.Context, path string) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is the set of stores every backend provides.
	Store interface {
		CompanyStore
		FunderStore
		UserStore
		ExpenseStore
		IncomeStore
	}

	// CleanupPublisher hands file-store paths that lost their row to an
	// out-of-band cleaner.
	CleanupPublisher interface {
		PublishFileCleanup(ctx context.Context, paths []string, reason string) error
	}
)

// Reasons attached to file cleanup requests.
const (
	ReasonDocumentDeleted = "document_deleted"
	ReasonCompanyDeleted  = "company_deleted"
	ReasonCommitFailed    = "commit_failed"
	ReasonOrphanSweep     = "orphan_sweep"
)

// Upload is a file received from the transport layer.
type Upload struct {
	Name    string
	Content io.Reader
}

// DefaultTimeout bounds every store call when the caller's context has no
// earlier deadline.
const DefaultTimeout = 5 * time.Second

// WithTimeout applies d to ctx, falling back to DefaultTimeout.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
