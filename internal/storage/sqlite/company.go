package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

const profileColumns = `commercial_feature, is_working, legal_entity, file_number, register_number,
	start_date, stop_date, general_tax_mission, value_tax_mission, activity_nature, activity_location,
	accounts, joining_date, natural_id, record_side, record_number, user_name, passport,
	verification_code, email`

const selectCompany = `SELECT c.id, c.commercial_feature, c.is_working, c.legal_entity, c.file_number,
	c.register_number, c.start_date, c.stop_date, c.general_tax_mission, c.value_tax_mission,
	c.activity_nature, c.activity_location, c.accounts, c.joining_date, c.natural_id, c.record_side,
	c.record_number, c.user_name, c.passport, c.verification_code, c.email
	FROM companies c`

func profileArgs(p core.CompanyProfile) []any {
	return []any{
		p.CommercialFeature, p.IsWorking, p.LegalEntity, p.FileNumber, p.RegisterNumber,
		formatTime(p.StartDate), formatTimePtr(p.StopDate), p.GeneralTaxMission, p.ValueTaxMission,
		p.ActivityNature, p.ActivityLocation, p.Accounts, formatTimePtr(p.JoiningDate), p.NaturalID,
		p.RecordSide, p.RecordNumber, p.UserName, p.Passport, p.VerificationCode, p.Email,
	}
}

func scanCompany(row scanner) (core.Company, error) {
	var (
		c                   core.Company
		p                   = &c.CompanyProfile
		start               string
		stop, joining       sql.NullString
		fileNo, valueTax    sql.NullString
		naturalID, side     sql.NullString
		passport, verifCode sql.NullString
	)
	err := row.Scan(&c.ID, &p.CommercialFeature, &p.IsWorking, &p.LegalEntity, &fileNo,
		&p.RegisterNumber, &start, &stop, &p.GeneralTaxMission, &valueTax,
		&p.ActivityNature, &p.ActivityLocation, &p.Accounts, &joining, &naturalID, &side,
		&p.RecordNumber, &p.UserName, &passport, &verifCode, &p.Email)
	if err != nil {
		return core.Company{}, err
	}

	if p.StartDate, err = parseTime(start); err != nil {
		return core.Company{}, err
	}
	if p.StopDate, err = parseTimePtr(stop); err != nil {
		return core.Company{}, err
	}
	if p.JoiningDate, err = parseTimePtr(joining); err != nil {
		return core.Company{}, err
	}
	p.FileNumber = nullString(fileNo)
	p.ValueTaxMission = nullString(valueTax)
	p.NaturalID = nullString(naturalID)
	p.RecordSide = nullString(side)
	p.Passport = nullString(passport)
	p.VerificationCode = nullString(verifCode)
	return c, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// CreateCompany stores the profile and its funders. Funders are optional in
// this backend.
func (s *Store) CreateCompany(ctx context.Context, v core.CompanyView) (core.CompanyView, error) {
	if err := v.Validate(); err != nil {
		return core.CompanyView{}, err
	}
	for _, f := range v.Funders {
		if err := f.Validate(); err != nil {
			return core.CompanyView{}, err
		}
	}

	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out core.CompanyView
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO companies (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			profileArgs(v.CompanyProfile)...)
		if err != nil {
			return fmt.Errorf("insert company: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("company id: %w", err)
		}
		for _, f := range v.Funders {
			if _, err := tx.ExecContext(ctx, `INSERT INTO funders (name, company_id) VALUES (?, ?)`, strings.TrimSpace(f.Name), id); err != nil {
				return fmt.Errorf("insert funder: %w", err)
			}
		}
		out, err = s.loadCompany(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.CompanyView{}, s.fail("create company", err)
	}

	slog.InfoContext(ctx, "Company created", "company_id", out.ID, "funders", len(out.Funders))
	return out, nil
}

// UpdateCompany rewrites the profile and diffs funders: a funder whose id
// belongs to this company is renamed, any other funder is inserted.
func (s *Store) UpdateCompany(ctx context.Context, v core.CompanyView) (core.CompanyView, error) {
	if err := v.Validate(); err != nil {
		return core.CompanyView{}, err
	}
	for _, f := range v.Funders {
		if err := f.Validate(); err != nil {
			return core.CompanyView{}, err
		}
	}

	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out core.CompanyView
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		args := append(profileArgs(v.CompanyProfile), v.ID)
		res, err := tx.ExecContext(ctx, `UPDATE companies SET
			commercial_feature = ?, is_working = ?, legal_entity = ?, file_number = ?, register_number = ?,
			start_date = ?, stop_date = ?, general_tax_mission = ?, value_tax_mission = ?, activity_nature = ?,
			activity_location = ?, accounts = ?, joining_date = ?, natural_id = ?, record_side = ?,
			record_number = ?, user_name = ?, passport = ?, verification_code = ?, email = ?
			WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update company: %w", err)
		}
		if n, err := affected(res); err != nil {
			return err
		} else if n == 0 {
			return core.ErrNotFound
		}

		for _, f := range v.Funders {
			name := strings.TrimSpace(f.Name)
			if f.ID != 0 {
				res, err := tx.ExecContext(ctx, `UPDATE funders SET name = ? WHERE id = ? AND company_id = ?`, name, f.ID, v.ID)
				if err != nil {
					return fmt.Errorf("update funder: %w", err)
				}
				if n, err := affected(res); err != nil {
					return err
				} else if n == 1 {
					continue
				}
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO funders (name, company_id) VALUES (?, ?)`, name, v.ID); err != nil {
				return fmt.Errorf("insert funder: %w", err)
			}
		}

		out, err = s.loadCompany(ctx, tx, v.ID)
		return err
	})
	if err != nil {
		return core.CompanyView{}, s.fail("update company", err)
	}
	return out, nil
}

// SearchCompanies matches the id text, the commercial name or any funder
// name, ignoring case. Companies without funders are still searchable.
func (s *Store) SearchCompanies(ctx context.Context, query string) ([]core.CompanyView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	pattern := foldCase(ledger.ContainsPattern(query))
	rows, err := s.db.QueryContext(ctx, selectCompany+`
		WHERE c.id IN (
			SELECT DISTINCT c2.id FROM companies c2
			LEFT JOIN funders f ON f.company_id = c2.id
			WHERE CAST(c2.id AS TEXT) LIKE ? ESCAPE '\'
			   OR fold_case(c2.commercial_feature) LIKE ? ESCAPE '\'
			   OR fold_case(f.name) LIKE ? ESCAPE '\'
		)
		ORDER BY c.id`, pattern, pattern, pattern)
	if err != nil {
		return nil, s.fail("search companies", err)
	}
	var companies []core.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			rows.Close()
			return nil, s.fail("search companies", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, s.fail("search companies", err)
	}
	rows.Close()

	if len(companies) == 0 {
		return nil, fmt.Errorf("search companies %q: %w", query, core.ErrNotFound)
	}

	out := make([]core.CompanyView, len(companies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range companies {
		i, c := i, c
		g.Go(func() error {
			funders, err := listFunders(gctx, s.db, c.ID)
			if err != nil {
				return err
			}
			out[i] = core.CompanyView{Company: c, Funders: funders}
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

	v, err := s.loadCompany(ctx, s.db, id)
	if err != nil {
		return core.CompanyView{}, s.fail("get company", err)
	}
	return v, nil
}

// DeleteCompany removes the company and everything attached to it. Payers of
// the cascaded expenses are credited back first, then the company's document
// bytes are removed once the rows are gone.
func (s *Store) DeleteCompany(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var paths []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM companies WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("lookup company: %w", err)
		}

		_, err := tx.ExecContext(ctx, `UPDATE users SET value = value + (
				SELECT COALESCE(SUM(e.value), 0) FROM expenses e WHERE e.company_id = ? AND e.user_id = users.id)
			WHERE id IN (SELECT user_id FROM expenses WHERE company_id = ?)`, id, id)
		if err != nil {
			return fmt.Errorf("restore balances: %w", err)
		}

		docs, err := listDocuments(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, d := range docs {
			paths = append(paths, d.Path)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete company: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.fail("delete company", err)
	}

	// Bytes left under the company directory by earlier failures go too.
	if listed, err := s.files.List(ctx, strconv.FormatInt(id, 10)); err != nil {
		slog.WarnContext(ctx, "Failed to list company files", "company_id", id, "error", err)
	} else {
		paths = mergePaths(paths, listed)
	}

	slog.InfoContext(ctx, "Company deleted", "company_id", id, "files", len(paths))
	return s.removeFiles(ctx, paths, ledger.ReasonCompanyDeleted)
}

func (s *Store) loadCompany(ctx context.Context, q querier, id int64) (core.CompanyView, error) {
	c, err := scanCompany(q.QueryRowContext(ctx, selectCompany+` WHERE c.id = ?`, id))
	if err != nil {
		return core.CompanyView{}, fmt.Errorf("load company %d: %w", id, err)
	}
	funders, err := listFunders(ctx, q, id)
	if err != nil {
		return core.CompanyView{}, err
	}
	return core.CompanyView{Company: c, Funders: funders}, nil
}

func mergePaths(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, p := range a {
		seen[p] = true
	}
	for _, p := range b {
		if !seen[p] {
			seen[p] = true
			a = append(a, p)
		}
	}
	return a
}
