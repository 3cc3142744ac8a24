package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

const companyColumns = `c.id, c.commercial_feature, c.is_working, c.legal_entity, c.file_number,
	c.register_number, c.start_date, c.stop_date, c.general_tax_mission, c.value_tax_mission,
	c.activity_nature, c.activity_location, c.accounts, c.joining_date, c.natural_id, c.record_side,
	c.record_number, c.user_name, c.passport, c.verification_code, c.email`

func profileArgs(p core.CompanyProfile) []any {
	return []any{
		p.CommercialFeature, p.IsWorking, p.LegalEntity, p.FileNumber, p.RegisterNumber,
		p.StartDate, p.StopDate, p.GeneralTaxMission, p.ValueTaxMission, p.ActivityNature,
		p.ActivityLocation, p.Accounts, p.JoiningDate, p.NaturalID, p.RecordSide,
		p.RecordNumber, p.UserName, p.Passport, p.VerificationCode, p.Email,
	}
}

func scanCompany(row pgx.Row) (core.Company, error) {
	var c core.Company
	p := &c.CompanyProfile
	err := row.Scan(&c.ID, &p.CommercialFeature, &p.IsWorking, &p.LegalEntity, &p.FileNumber,
		&p.RegisterNumber, &p.StartDate, &p.StopDate, &p.GeneralTaxMission, &p.ValueTaxMission,
		&p.ActivityNature, &p.ActivityLocation, &p.Accounts, &p.JoiningDate, &p.NaturalID, &p.RecordSide,
		&p.RecordNumber, &p.UserName, &p.Passport, &p.VerificationCode, &p.Email)
	return c, err
}

func validateCompany(v core.CompanyView) error {
	if err := v.Validate(); err != nil {
		return err
	}
	for _, f := range v.Funders {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CreateCompany stores the profile with at least one funder. Money-capital
// rows in the view are ignored here; they are added through the ledger.
func (s *Store) CreateCompany(ctx context.Context, v core.CompanyView) (core.CompanyView, error) {
	if len(v.Funders) == 0 {
		return core.CompanyView{}, fmt.Errorf("create company: %w", core.ErrFunderRequired)
	}
	if err := validateCompany(v); err != nil {
		return core.CompanyView{}, fmt.Errorf("create company: %w", err)
	}

	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out core.CompanyView
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `INSERT INTO companies (
				commercial_feature, is_working, legal_entity, file_number, register_number,
				start_date, stop_date, general_tax_mission, value_tax_mission, activity_nature,
				activity_location, accounts, joining_date, natural_id, record_side,
				record_number, user_name, passport, verification_code, email)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
			RETURNING id`, profileArgs(v.CompanyProfile)...).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert company: %w", err)
		}

		batch := &pgx.Batch{}
		for _, f := range v.Funders {
			batch.Queue(`INSERT INTO funders (name, company_id) VALUES ($1, $2)`, strings.TrimSpace(f.Name), id)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert funders: %w", err)
		}

		out, err = loadCompany(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.CompanyView{}, s.fail("create company", err)
	}

	slog.InfoContext(ctx, "Company created", "company_id", out.ID, "funders", len(out.Funders))
	return out, nil
}

// UpdateCompany rewrites the profile, diffs funders (rename when the id
// belongs to this company, insert otherwise) and diffs money capitals: rows
// without a matching id are debited through the ledger, matching rows may
// only change their description.
func (s *Store) UpdateCompany(ctx context.Context, v core.CompanyView) (core.CompanyView, error) {
	if err := validateCompany(v); err != nil {
		return core.CompanyView{}, fmt.Errorf("update company: %w", err)
	}
	for _, mc := range v.MoneyCapitals {
		if err := mc.Value.Validate(); err != nil {
			return core.CompanyView{}, fmt.Errorf("update company: money capital: %w", err)
		}
	}

	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out core.CompanyView
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE companies SET
				commercial_feature = $1, is_working = $2, legal_entity = $3, file_number = $4,
				register_number = $5, start_date = $6, stop_date = $7, general_tax_mission = $8,
				value_tax_mission = $9, activity_nature = $10, activity_location = $11, accounts = $12,
				joining_date = $13, natural_id = $14, record_side = $15, record_number = $16,
				user_name = $17, passport = $18, verification_code = $19, email = $20
			WHERE id = $21`, append(profileArgs(v.CompanyProfile), v.ID)...)
		if err != nil {
			return fmt.Errorf("update company: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update company %d: %w", v.ID, core.ErrNotFound)
		}

		for _, f := range v.Funders {
			name := strings.TrimSpace(f.Name)
			if f.ID != 0 {
				tag, err := tx.Exec(ctx, `UPDATE funders SET name = $1 WHERE id = $2 AND company_id = $3`, name, f.ID, v.ID)
				if err != nil {
					return fmt.Errorf("update funder: %w", err)
				}
				if tag.RowsAffected() == 1 {
					continue
				}
			}
			if _, err := tx.Exec(ctx, `INSERT INTO funders (name, company_id) VALUES ($1, $2)`, name, v.ID); err != nil {
				return fmt.Errorf("insert funder: %w", err)
			}
		}

		for _, mc := range v.MoneyCapitals {
			if err := syncMoneyCapital(ctx, tx, v.ID, mc); err != nil {
				return err
			}
		}

		out, err = loadCompany(ctx, tx, v.ID)
		return err
	})
	if err != nil {
		return core.CompanyView{}, s.fail("update company", err)
	}
	return out, nil
}

func syncMoneyCapital(ctx context.Context, tx pgx.Tx, companyID int64, mc core.MoneyCapital) error {
	if mc.ID != 0 {
		var (
			cents int64
			desc  string
		)
		err := tx.QueryRow(ctx, `SELECT value, description FROM money_capitals
			WHERE id = $1 AND company_id = $2 FOR UPDATE`, mc.ID, companyID).Scan(&cents, &desc)
		switch {
		case err == nil:
			if cents != mc.Value.Cents {
				return fmt.Errorf("money capital %d: %w: recorded value cannot change", mc.ID, core.ErrInvalidValue)
			}
			if desc != mc.Description {
				if _, err := tx.Exec(ctx, `UPDATE money_capitals SET description = $1 WHERE id = $2`, mc.Description, mc.ID); err != nil {
					return fmt.Errorf("update money capital: %w", err)
				}
			}
			return nil
		case !isNoRows(err):
			return fmt.Errorf("lookup money capital: %w", err)
		}
	}
	_, err := debit(ctx, tx, moneyCapitals, mc.UserID, companyID, mc.Value, mc.Description)
	return err
}

func (s *Store) SearchCompanies(ctx context.Context, query string) ([]core.CompanyView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT DISTINCT ON (c.id) `+companyColumns+`
		FROM companies c
		LEFT JOIN funders f ON f.company_id = c.id
		WHERE c.id::TEXT ILIKE $1 OR c.commercial_feature ILIKE $1 OR f.name ILIKE $1
		ORDER BY c.id`, ledger.ContainsPattern(query))
	if err != nil {
		return nil, s.fail("search companies", err)
	}
	companies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Company, error) {
		return scanCompany(row)
	})
	if err != nil {
		return nil, s.fail("search companies", err)
	}
	if len(companies) == 0 {
		return nil, fmt.Errorf("search companies %q: %w", query, core.ErrNotFound)
	}

	out := make([]core.CompanyView, len(companies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range companies {
		i, c := i, c
		g.Go(func() error {
			v, err := attach(gctx, s.pool, c)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.fail("search companies", err)
	}
	return out, nil
}

func (s *Store) GetCompany(ctx context.Context, id int64) (core.CompanyView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := loadCompany(ctx, s.pool, id)
	if err != nil {
		return core.CompanyView{}, s.fail("get company", err)
	}
	return v, nil
}

// DeleteCompany credits payers for every cascaded expense and money capital,
// then removes the company.
func (s *Store) DeleteCompany(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM companies WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			return fmt.Errorf("lookup company %d: %w", id, err)
		}
		_, err := tx.Exec(ctx, `UPDATE users u SET value = u.value + r.total
			FROM (
				SELECT user_id, SUM(value) AS total FROM (
					SELECT user_id, value FROM expenses WHERE company_id = $1
					UNION ALL
					SELECT user_id, value FROM money_capitals WHERE company_id = $1
				) rows GROUP BY user_id
			) r
			WHERE u.id = r.user_id`, id)
		if err != nil {
			return fmt.Errorf("restore balances: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete company: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.fail("delete company", err)
	}

	slog.InfoContext(ctx, "Company deleted", "company_id", id)
	return nil
}

func loadCompany(ctx context.Context, q querier, id int64) (core.CompanyView, error) {
	c, err := scanCompany(q.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies c WHERE c.id = $1`, id))
	if err != nil {
		return core.CompanyView{}, fmt.Errorf("load company %d: %w", id, err)
	}
	return attach(ctx, q, c)
}

// attach loads the funders and money capitals of c.
func attach(ctx context.Context, q querier, c core.Company) (core.CompanyView, error) {
	funders, err := listFunders(ctx, q, c.ID)
	if err != nil {
		return core.CompanyView{}, err
	}
	capitals, err := listMoneyCapitalRows(ctx, q, c.ID)
	if err != nil {
		return core.CompanyView{}, err
	}
	return core.CompanyView{Company: c, Funders: funders, MoneyCapitals: capitals}, nil
}
