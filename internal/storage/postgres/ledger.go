package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

// Debit tables. Both share the expense row shape.
const (
	expenses      = "expenses"
	moneyCapitals = "money_capitals"
)

// entry is a ledger row joined with its actor and company names.
type entry struct {
	id          int64
	value       core.Money
	description string
	time        time.Time
	actorID     int64
	companyID   int64
	actorName   string
	companyName string
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// debit locks the payer row, takes value from the balance and inserts the
// row into table. Payer and company are resolved before the value is checked. The conditional update refuses to go below zero even if
// the lock were bypassed.
func debit(ctx context.Context, tx pgx.Tx, table string, userID, companyID int64, value core.Money, description string) (entry, error) {
	e := entry{value: value, description: description, actorID: userID, companyID: companyID}

	var balance int64
	if err := tx.QueryRow(ctx, `SELECT name, value FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&e.actorName, &balance); err != nil {
		return entry{}, fmt.Errorf("lookup payer %d: %w", userID, err)
	}
	if err := tx.QueryRow(ctx, `SELECT commercial_feature FROM companies WHERE id = $1`, companyID).Scan(&e.companyName); err != nil {
		return entry{}, fmt.Errorf("lookup company %d: %w", companyID, err)
	}
	if err := value.Validate(); err != nil {
		return entry{}, fmt.Errorf("debit %s: %w", value, err)
	}

	tag, err := tx.Exec(ctx, `UPDATE users SET value = value - $1 WHERE id = $2 AND value >= $1`, value.Cents, userID)
	if err != nil {
		return entry{}, fmt.Errorf("debit payer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entry{}, &core.InsufficientBalanceError{Requested: value, Available: core.Money{Cents: balance}}
	}

	err = tx.QueryRow(ctx, `INSERT INTO `+table+` (value, description, user_id, company_id)
		VALUES ($1, $2, $3, $4) RETURNING id, time`, value.Cents, description, userID, companyID).Scan(&e.id, &e.time)
	if err != nil {
		return entry{}, fmt.Errorf("insert into %s: %w", table, err)
	}
	return e, nil
}

// refund deletes the debit row and credits its value back to the payer.
func refund(ctx context.Context, tx pgx.Tx, table string, id int64) error {
	var userID, cents int64
	if err := tx.QueryRow(ctx, `DELETE FROM `+table+` WHERE id = $1 RETURNING user_id, value`, id).Scan(&userID, &cents); err != nil {
		return fmt.Errorf("delete from %s %d: %w", table, id, err)
	}
	tag, err := tx.Exec(ctx, `UPDATE users SET value = value + $1 WHERE id = $2`, cents, userID)
	if err != nil {
		return fmt.Errorf("credit payer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credit payer %d: %w", userID, core.ErrNotFound)
	}
	return nil
}

// CreateExpense debits the payer and records the expense atomically.
func (s *Store) CreateExpense(ctx context.Context, userID, companyID int64, value core.Money, description string) (core.ExpenseView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var e entry
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		e, err = debit(ctx, tx, expenses, userID, companyID, value, description)
		return err
	})
	if err != nil {
		return core.ExpenseView{}, s.fail("create expense", err)
	}
	return e.expense(), nil
}

// DeleteExpense removes the expense and credits its value back to the payer.
func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		return refund(ctx, tx, expenses, id)
	})
	if err != nil {
		return s.fail("delete expense", err)
	}
	return nil
}

func (s *Store) ListExpenses(ctx context.Context, f core.LedgerFilter) ([]core.ExpenseView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := listEntries(ctx, s.pool, expenses, "user_id", f)
	if err != nil {
		return nil, s.fail("list expenses", err)
	}
	out := make([]core.ExpenseView, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.expense())
	}
	return out, nil
}

// CreateIncome records funds received by a company. The admin must exist but
// their balance is not touched.
func (s *Store) CreateIncome(ctx context.Context, adminID, companyID int64, value core.Money, description string) (core.IncomeView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	e := entry{value: value, description: description, actorID: adminID, companyID: companyID}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, adminID).Scan(&e.actorName); err != nil {
			return fmt.Errorf("lookup admin %d: %w", adminID, err)
		}
		if err := tx.QueryRow(ctx, `SELECT commercial_feature FROM companies WHERE id = $1`, companyID).Scan(&e.companyName); err != nil {
			return fmt.Errorf("lookup company %d: %w", companyID, err)
		}
		if err := value.Validate(); err != nil {
			return fmt.Errorf("income %s: %w", value, err)
		}
		return tx.QueryRow(ctx, `INSERT INTO incomes (value, description, admin_id, company_id)
			VALUES ($1, $2, $3, $4) RETURNING id, time`, value.Cents, description, adminID, companyID).Scan(&e.id, &e.time)
	})
	if err != nil {
		return core.IncomeView{}, s.fail("create income", err)
	}
	return e.income(), nil
}

func (s *Store) ListIncomes(ctx context.Context, f core.LedgerFilter) ([]core.IncomeView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := listEntries(ctx, s.pool, "incomes", "admin_id", f)
	if err != nil {
		return nil, s.fail("list incomes", err)
	}
	out := make([]core.IncomeView, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.income())
	}
	return out, nil
}

// DeleteIncome removes the income row. No balance changes.
func (s *Store) DeleteIncome(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM incomes WHERE id = $1`, id)
	if err != nil {
		return s.fail("delete income", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete income %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// listEntries reads table joined with actor and company names in one query.
// table and actorCol are package constants, never caller input.
func listEntries(ctx context.Context, q querier, table, actorCol string, f core.LedgerFilter) ([]entry, error) {
	where, args := ledger.FilterClause(f, "t."+actorCol, "t.company_id", 1, ledger.Dollar)
	rows, err := q.Query(ctx, `SELECT t.id, t.value, t.description, t.time, t.`+actorCol+`, t.company_id,
			u.name, c.commercial_feature
		FROM `+table+` t
		JOIN users u ON u.id = t.`+actorCol+`
		JOIN companies c ON c.id = t.company_id`+where+`
		ORDER BY t.time, t.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entry, error) {
		var e entry
		err := row.Scan(&e.id, &e.value.Cents, &e.description, &e.time, &e.actorID, &e.companyID, &e.actorName, &e.companyName)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return entries, nil
}

func (e entry) expense() core.ExpenseView {
	return core.ExpenseView{
		Expense: core.Expense{
			ID:          e.id,
			Value:       e.value,
			Description: e.description,
			Time:        e.time.UTC(),
			UserID:      e.actorID,
			CompanyID:   e.companyID,
		},
		User:    e.actorName,
		Company: e.companyName,
	}
}

func (e entry) income() core.IncomeView {
	return core.IncomeView{
		Income: core.Income{
			ID:          e.id,
			Value:       e.value,
			Description: e.description,
			Time:        e.time.UTC(),
			AdminID:     e.actorID,
			CompanyID:   e.companyID,
		},
		Admin:   e.actorName,
		Company: e.companyName,
	}
}

func (e entry) moneyCapital() core.MoneyCapitalView {
	return core.MoneyCapitalView{
		MoneyCapital: core.MoneyCapital{
			ID:          e.id,
			Value:       e.value,
			Description: e.description,
			Time:        e.time.UTC(),
			UserID:      e.actorID,
			CompanyID:   e.companyID,
		},
		User:    e.actorName,
		Company: e.companyName,
	}
}
