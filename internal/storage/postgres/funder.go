package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

func (s *Store) CreateFunder(ctx context.Context, companyID int64, f core.Funder) (core.Funder, error) {
	if err := f.Validate(); err != nil {
		return core.Funder{}, err
	}

	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := core.Funder{Name: strings.TrimSpace(f.Name), CompanyID: companyID}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO funders (name, company_id) VALUES ($1, $2) RETURNING id`, out.Name, companyID).Scan(&out.ID)
	if err != nil {
		return core.Funder{}, s.fail("create funder", err)
	}
	return out, nil
}

func (s *Store) ListFunders(ctx context.Context, companyID int64) ([]core.Funder, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`, companyID).Scan(&exists); err != nil {
		return nil, s.fail("list funders", err)
	}
	if !exists {
		return nil, fmt.Errorf("list funders of company %d: %w", companyID, core.ErrNotFound)
	}
	funders, err := listFunders(ctx, s.pool, companyID)
	if err != nil {
		return nil, s.fail("list funders", err)
	}
	return funders, nil
}

func (s *Store) DeleteFunder(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM funders WHERE id = $1`, id)
	if err != nil {
		return s.fail("delete funder", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete funder %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func listFunders(ctx context.Context, q querier, companyID int64) ([]core.Funder, error) {
	rows, err := q.Query(ctx, `SELECT id, name, company_id FROM funders WHERE company_id = $1 ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query funders: %w", err)
	}
	funders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Funder, error) {
		var f core.Funder
		err := row.Scan(&f.ID, &f.Name, &f.CompanyID)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan funders: %w", err)
	}
	if funders == nil {
		funders = []core.Funder{}
	}
	return funders, nil
}
