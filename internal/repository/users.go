package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/bookledger/backend/internal/models"
)

const userColumns = `id, username, email, first_name, last_name, password_hash, created_at`

func (t *pgTx) CreateUser(ctx context.Context, user *models.User) error {
	row := t.tx.QueryRowxContext(ctx, `
		INSERT INTO users (username, email, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		user.Username, strings.ToLower(user.Email), user.FirstName, user.LastName, user.PasswordHash)
	if err := row.Scan(&user.ID, &user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username = $1`, username); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}
