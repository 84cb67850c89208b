package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
)

const userColumns = `id, name, email, role, status, created_at, updated_at`

// ListUsers returns every account ordered by id, without password hashes.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.SelectContext(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// GetUser retrieves a single account by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, &entity.NotFoundError{Kind: "user", ID: id}
	}
	if err != nil {
		return model.User{}, fmt.Errorf("getting user %s: %w", id, err)
	}
	return u, nil
}

// CreateUser stores u with a bcrypt hash of password.
func (s *SQLiteStore) CreateUser(ctx context.Context, u model.User, password string) (model.User, error) {
	if err := u.Validate(); err != nil {
		return model.User{}, err
	}
	hash, err := source.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}
	now := s.clock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, email, role, password_hash, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.Role, hash, u.Status, now, now,
	)
	if isUniqueViolation(err, "users.email") {
		return model.User{}, &entity.DuplicateKeyError{Kind: "user", Field: "email", Value: u.EmailKey()}
	}
	if err != nil {
		return model.User{}, fmt.Errorf("creating user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("reading user id: %w", err)
	}
	return s.GetUser(ctx, strconv.FormatInt(id, 10))
}

// UpdateUser overwrites the profile fields of an account. The password
// hash and creation time are kept.
func (s *SQLiteStore) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
	if err := u.Validate(); err != nil {
		return model.User{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, role = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		u.Name, u.Email, u.Role, u.Status, s.clock(), u.ID,
	)
	if isUniqueViolation(err, "users.email") {
		return model.User{}, &entity.DuplicateKeyError{Kind: "user", Field: "email", Value: u.EmailKey()}
	}
	if err != nil {
		return model.User{}, fmt.Errorf("updating user %s: %w", u.ID, err)
	}
	if err := checkAffected(res, "user", u.ID); err != nil {
		return model.User{}, err
	}
	return s.GetUser(ctx, u.ID)
}

// DeleteUser removes an account, its memberships, and any task assignment
// or project management that referenced it.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM project_members WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("removing memberships of user %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE tasks SET assignee_id = NULL WHERE assignee_id = ?", id); err != nil {
		return fmt.Errorf("unassigning tasks of user %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE projects SET manager_id = NULL WHERE manager_id = ?", id); err != nil {
		return fmt.Errorf("clearing projects managed by user %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", id, err)
	}
	if err := checkAffected(res, "user", id); err != nil {
		return err
	}
	return tx.Commit()
}

// Authenticate checks email and password against the stored hash.
// Unknown, inactive and mismatched accounts all get the same error.
func (s *SQLiteStore) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u,
		"SELECT "+userColumns+", password_hash FROM users WHERE email = ?",
		model.User{Email: email}.EmailKey(),
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("looking up user: %w", err)
	}
	if err != nil || u.Status != model.UserActive || !source.CheckPassword(u.PasswordHash, password) {
		return model.User{}, &source.AuthError{Kind: source.KindSQLite, Message: "invalid email or password"}
	}
	return u.Public(), nil
}
