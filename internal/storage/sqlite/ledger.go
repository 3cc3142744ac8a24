package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

// entry is a ledger row joined with its actor and company names.
type entry struct {
	id          int64
	value       core.Money
	description string
	time        string
	actorID     int64
	companyID   int64
	actorName   string
	companyName string
}

// CreateExpense debits the payer and records the expense atomically.
func (s *Store) CreateExpense(ctx context.Context, userID, companyID int64, value core.Money, description string) (core.ExpenseView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var e entry
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		e, err = s.debit(ctx, tx, userID, companyID, value, description)
		return err
	})
	if err != nil {
		return core.ExpenseView{}, s.fail("create expense", err)
	}
	return e.expense()
}

// debit takes value from the payer and inserts the expense row. Payer and
// company are resolved before the value is checked. The caller's transaction
// holds the write lock, and the conditional update refuses to take the
// balance below zero.
func (s *Store) debit(ctx context.Context, tx *sql.Tx, userID, companyID int64, value core.Money, description string) (entry, error) {
	e := entry{value: value, description: description, actorID: userID, companyID: companyID}

	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT name, value FROM users WHERE id = ?`, userID).Scan(&e.actorName, &balance); err != nil {
		return entry{}, fmt.Errorf("lookup payer %d: %w", userID, err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT commercial_feature FROM companies WHERE id = ?`, companyID).Scan(&e.companyName); err != nil {
		return entry{}, fmt.Errorf("lookup company %d: %w", companyID, err)
	}
	if err := value.Validate(); err != nil {
		return entry{}, fmt.Errorf("debit %s: %w", value, err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE users SET value = value - ? WHERE id = ? AND value >= ?`, value.Cents, userID, value.Cents)
	if err != nil {
		return entry{}, fmt.Errorf("debit payer: %w", err)
	}
	if n, err := affected(res); err != nil {
		return entry{}, err
	} else if n == 0 {
		return entry{}, &core.InsufficientBalanceError{Requested: value, Available: core.Money{Cents: balance}}
	}

	e.time = formatTime(s.now())
	res, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (value, description, time, user_id, company_id) VALUES (?, ?, ?, ?, ?)`,
		value.Cents, description, e.time, userID, companyID)
	if err != nil {
		return entry{}, fmt.Errorf("insert expense: %w", err)
	}
	if e.id, err = res.LastInsertId(); err != nil {
		return entry{}, fmt.Errorf("expense id: %w", err)
	}
	return e, nil
}

// DeleteExpense removes the expense and credits its value back to the payer.
func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var userID, cents int64
		if err := tx.QueryRowContext(ctx, `DELETE FROM expenses WHERE id = ? RETURNING user_id, value`, id).Scan(&userID, &cents); err != nil {
			return fmt.Errorf("delete expense %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `UPDATE users SET value = value + ? WHERE id = ?`, cents, userID)
		if err != nil {
			return fmt.Errorf("credit payer: %w", err)
		}
		if n, err := affected(res); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("credit payer %d: %w", userID, core.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return s.fail("delete expense", err)
	}
	return nil
}

func (s *Store) ListExpenses(ctx context.Context, f core.LedgerFilter) ([]core.ExpenseView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.listEntries(ctx, "expenses", "user_id", f)
	if err != nil {
		return nil, s.fail("list expenses", err)
	}
	out := make([]core.ExpenseView, 0, len(entries))
	for _, e := range entries {
		v, err := e.expense()
		if err != nil {
			return nil, s.fail("list expenses", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// CreateIncome records funds received by a company. The admin must exist but
// their balance is not touched.
func (s *Store) CreateIncome(ctx context.Context, adminID, companyID int64, value core.Money, description string) (core.IncomeView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	e := entry{value: value, description: description, actorID: adminID, companyID: companyID}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT name FROM users WHERE id = ?`, adminID).Scan(&e.actorName); err != nil {
			return fmt.Errorf("lookup admin %d: %w", adminID, err)
		}
		if err := tx.QueryRowContext(ctx, `SELECT commercial_feature FROM companies WHERE id = ?`, companyID).Scan(&e.companyName); err != nil {
			return fmt.Errorf("lookup company %d: %w", companyID, err)
		}
		if err := value.Validate(); err != nil {
			return fmt.Errorf("income %s: %w", value, err)
		}
		e.time = formatTime(s.now())
		res, err := tx.ExecContext(ctx,
			`INSERT INTO incomes (value, description, time, admin_id, company_id) VALUES (?, ?, ?, ?, ?)`,
			value.Cents, description, e.time, adminID, companyID)
		if err != nil {
			return fmt.Errorf("insert income: %w", err)
		}
		e.id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return core.IncomeView{}, s.fail("create income", err)
	}
	return e.income()
}

func (s *Store) ListIncomes(ctx context.Context, f core.LedgerFilter) ([]core.IncomeView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.listEntries(ctx, "incomes", "admin_id", f)
	if err != nil {
		return nil, s.fail("list incomes", err)
	}
	out := make([]core.IncomeView, 0, len(entries))
	for _, e := range entries {
		v, err := e.income()
		if err != nil {
			return nil, s.fail("list incomes", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// DeleteIncome removes the income row. No balance changes.
func (s *Store) DeleteIncome(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM incomes WHERE id = ?`, id)
	if err != nil {
		return s.fail("delete income", err)
	}
	if n, err := affected(res); err != nil {
		return s.fail("delete income", err)
	} else if n == 0 {
		return fmt.Errorf("delete income %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// listEntries reads table joined with actor and company names in one query.
// table and actorCol are package constants, never caller input.
func (s *Store) listEntries(ctx context.Context, table, actorCol string, f core.LedgerFilter) ([]entry, error) {
	where, args := ledger.FilterClause(f, "t."+actorCol, "t.company_id", 1, ledger.QuestionMark)
	rows, err := s.db.QueryContext(ctx, `SELECT t.id, t.value, t.description, t.time, t.`+actorCol+`, t.company_id,
			u.name, c.commercial_feature
		FROM `+table+` t
		JOIN users u ON u.id = t.`+actorCol+`
		JOIN companies c ON c.id = t.company_id`+where+`
		ORDER BY t.time, t.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.value.Cents, &e.description, &e.time, &e.actorID, &e.companyID, &e.actorName, &e.companyName); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (e entry) expense() (core.ExpenseView, error) {
	t, err := parseTime(e.time)
	if err != nil {
		return core.ExpenseView{}, err
	}
	return core.ExpenseView{
		Expense: core.Expense{
			ID:          e.id,
			Value:       e.value,
			Description: e.description,
			Time:        t,
			UserID:      e.actorID,
			CompanyID:   e.companyID,
		},
		User:    e.actorName,
		Company: e.companyName,
	}, nil
}

func (e entry) income() (core.IncomeView, error) {
	t, err := parseTime(e.time)
	if err != nil {
		return core.IncomeView{}, err
	}
	return core.IncomeView{
		Income: core.Income{
			ID:          e.id,
			Value:       e.value,
			Description: e.description,
			Time:        t,
			AdminID:     e.actorID,
			CompanyID:   e.companyID,
		},
		Admin:   e.actorName,
		Company: e.companyName,
	}, nil
}
