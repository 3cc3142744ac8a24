package sqlite

import (
	"context"
	"fmt"
	"strings"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

func (s *Store) CreateFunder(ctx context.Context, companyID int64, f core.Funder) (core.Funder, error) {
	if err := f.Validate(); err != nil {
		return core.Funder{}, err
	}

	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	name := strings.TrimSpace(f.Name)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO funders (name, company_id) SELECT ?, id FROM companies WHERE id = ?`, name, companyID)
	if err != nil {
		return core.Funder{}, s.fail("create funder", err)
	}
	if n, err := affected(res); err != nil {
		return core.Funder{}, s.fail("create funder", err)
	} else if n == 0 {
		return core.Funder{}, fmt.Errorf("create funder for company %d: %w", companyID, core.ErrNotFound)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Funder{}, s.fail("create funder", err)
	}
	return core.Funder{ID: id, Name: name, CompanyID: companyID}, nil
}

func (s *Store) ListFunders(ctx context.Context, companyID int64) ([]core.Funder, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM companies WHERE id = ?`, companyID).Scan(&exists); err != nil {
		return nil, s.fail("list funders", err)
	}
	funders, err := listFunders(ctx, s.db, companyID)
	if err != nil {
		return nil, s.fail("list funders", err)
	}
	return funders, nil
}

func (s *Store) DeleteFunder(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM funders WHERE id = ?`, id)
	if err != nil {
		return s.fail("delete funder", err)
	}
	if n, err := affected(res); err != nil {
		return s.fail("delete funder", err)
	} else if n == 0 {
		return fmt.Errorf("delete funder %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func listFunders(ctx context.Context, q querier, companyID int64) ([]core.Funder, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, company_id FROM funders WHERE company_id = ? ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query funders: %w", err)
	}
	defer rows.Close()

	funders := []core.Funder{}
	for rows.Next() {
		var f core.Funder
		if err := rows.Scan(&f.ID, &f.Name, &f.CompanyID); err != nil {
			return nil, fmt.Errorf("scan funder: %w", err)
		}
		funders = append(funders, f)
	}
	return funders, rows.Err()
}
