package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

const selectUser = `SELECT id, name, password, is_admin, value FROM users`

func scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Name, &u.Password, &u.IsAdmin, &u.Balance.Cents); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// RegisterUser creates a user with a zero balance.
func (s *Store) RegisterUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := ledger.HashPassword(u.Password)
	if err != nil {
		return core.User{}, err
	}

	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := core.User{Name: strings.TrimSpace(u.Name), IsAdmin: u.IsAdmin}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (name, password, is_admin, value) VALUES ($1, $2, $3, 0) RETURNING id`,
		out.Name, hash, u.IsAdmin).Scan(&out.ID)
	if err != nil {
		return core.User{}, s.fail("register user", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", out.ID, "is_admin", out.IsAdmin)
	return out, nil
}

// UpdateUser changes name and password. Role and balance are untouched.
func (s *Store) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := ledger.HashPassword(u.Password)
	if err != nil {
		return core.User{}, err
	}

	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET name = $1, password = $2 WHERE id = $3 RETURNING id, name, password, is_admin, value`,
		strings.TrimSpace(u.Name), hash, u.ID))
	if err != nil {
		return core.User{}, s.fail("update user", err)
	}
	out.Password = ""
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, selectUser+` ORDER BY id`)
	if err != nil {
		return nil, s.fail("list users", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.User, error) {
		u, err := scanUser(row)
		u.Password = ""
		return u, err
	})
	if err != nil {
		return nil, s.fail("list users", err)
	}
	if users == nil {
		users = []core.User{}
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (core.User, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := scanUser(s.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
	if err != nil {
		return core.User{}, s.fail("get user", err)
	}
	u.Password = ""
	return u, nil
}

func (s *Store) LoginUser(ctx context.Context, name, password string) (core.User, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := scanUser(s.pool.QueryRow(ctx, selectUser+` WHERE name = $1`, strings.TrimSpace(name)))
	if err != nil {
		return core.User{}, s.fail("login user", err)
	}
	if err := ledger.CheckPassword(u.Password, password); err != nil {
		return core.User{}, fmt.Errorf("login user: %w", err)
	}
	u.Password = ""
	return u, nil
}

// PayUser sets the balance to the given amount.
func (s *Store) PayUser(ctx context.Context, id int64, balance core.Money) (core.User, error) {
	if balance.IsNegative() {
		return core.User{}, fmt.Errorf("pay user: %w", core.ErrInvalidValue)
	}

	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET value = $1 WHERE id = $2 RETURNING id, name, password, is_admin, value`, balance.Cents, id))
	if err != nil {
		return core.User{}, s.fail("pay user", err)
	}
	u.Password = ""

	slog.InfoContext(ctx, "User balance set", "user_id", id, "amount_cents", balance.Cents)
	return u, nil
}

// DeleteUser removes the user; their ledger rows go with them.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return s.fail("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete user %d: %w", id, core.ErrNotFound)
	}
	return nil
}
