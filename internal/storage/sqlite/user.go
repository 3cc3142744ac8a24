package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

const selectUser = `SELECT id, name, password, is_admin, value FROM users`

func scanUser(row scanner) (core.User, error) {
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

	name := strings.TrimSpace(u.Name)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, password, is_admin, value) VALUES (?, ?, ?, 0)`, name, hash, u.IsAdmin)
	if err != nil {
		return core.User{}, s.fail("register user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, s.fail("register user", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", id, "is_admin", u.IsAdmin)
	return core.User{ID: id, Name: name, IsAdmin: u.IsAdmin}, nil
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

	res, err := s.db.ExecContext(ctx, `UPDATE users SET name = ?, password = ? WHERE id = ?`,
		strings.TrimSpace(u.Name), hash, u.ID)
	if err != nil {
		return core.User{}, s.fail("update user", err)
	}
	if n, err := affected(res); err != nil {
		return core.User{}, s.fail("update user", err)
	} else if n == 0 {
		return core.User{}, fmt.Errorf("update user %d: %w", u.ID, core.ErrNotFound)
	}
	return s.getUser(ctx, u.ID, "update user")
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, selectUser+` ORDER BY id`)
	if err != nil {
		return nil, s.fail("list users", err)
	}
	defer rows.Close()

	users := []core.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, s.fail("list users", err)
		}
		u.Password = ""
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list users", err)
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (core.User, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.getUser(ctx, id, "get user")
}

func (s *Store) getUser(ctx context.Context, id int64, op string) (core.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
	if err != nil {
		return core.User{}, s.fail(op, err)
	}
	u.Password = ""
	return u, nil
}

func (s *Store) LoginUser(ctx context.Context, name, password string) (core.User, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE name = ?`, strings.TrimSpace(name)))
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

	res, err := s.db.ExecContext(ctx, `UPDATE users SET value = ? WHERE id = ?`, balance.Cents, id)
	if err != nil {
		return core.User{}, s.fail("pay user", err)
	}
	if n, err := affected(res); err != nil {
		return core.User{}, s.fail("pay user", err)
	} else if n == 0 {
		return core.User{}, fmt.Errorf("pay user %d: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "User balance set", "user_id", id, "amount_cents", balance.Cents)
	return s.getUser(ctx, id, "pay user")
}

// DeleteUser removes the user; their ledger rows go with them.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return s.fail("delete user", err)
	}
	if n, err := affected(res); err != nil {
		return s.fail("delete user", err)
	} else if n == 0 {
		return fmt.Errorf("delete user %d: %w", id, core.ErrNotFound)
	}
	return nil
}
