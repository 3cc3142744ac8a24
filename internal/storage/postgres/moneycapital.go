package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

// CreateMoneyCapital debits the payer exactly like an expense.
func (s *Store) CreateMoneyCapital(ctx context.Context, userID, companyID int64, value core.Money, description string) (core.MoneyCapitalView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var e entry
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		e, err = debit(ctx, tx, moneyCapitals, userID, companyID, value, description)
		return err
	})
	if err != nil {
		return core.MoneyCapitalView{}, s.fail("create money capital", err)
	}
	return e.moneyCapital(), nil
}

func (s *Store) ListMoneyCapitals(ctx context.Context, f core.LedgerFilter) ([]core.MoneyCapitalView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := listEntries(ctx, s.pool, moneyCapitals, "user_id", f)
	if err != nil {
		return nil, s.fail("list money capitals", err)
	}
	out := make([]core.MoneyCapitalView, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.moneyCapital())
	}
	return out, nil
}

// DeleteMoneyCapital removes the row and credits the payer.
func (s *Store) DeleteMoneyCapital(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		return refund(ctx, tx, moneyCapitals, id)
	})
	if err != nil {
		return s.fail("delete money capital", err)
	}
	return nil
}

// listMoneyCapitalRows returns the bare rows of one company for the
// aggregate view.
func listMoneyCapitalRows(ctx context.Context, q querier, companyID int64) ([]core.MoneyCapital, error) {
	rows, err := q.Query(ctx, `SELECT id, value, description, time, user_id, company_id
		FROM money_capitals WHERE company_id = $1 ORDER BY time, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query money capitals: %w", err)
	}
	capitals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.MoneyCapital, error) {
		var mc core.MoneyCapital
		err := row.Scan(&mc.ID, &mc.Value.Cents, &mc.Description, &mc.Time, &mc.UserID, &mc.CompanyID)
		mc.Time = mc.Time.UTC()
		return mc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan money capitals: %w", err)
	}
	if capitals == nil {
		capitals = []core.MoneyCapital{}
	}
	return capitals, nil
}
