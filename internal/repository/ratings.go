package repository

import (
	"context"
	"fmt"

	"github.com/bookledger/backend/internal/models"
)

// UpsertRating stores the rating of a user for a book, replacing any
// previous value for the same pair.
func (s *Store) UpsertRating(ctx context.Context, rating *models.Rating) error {
	err := s.db.GetContext(ctx, &rating.ID, `
		INSERT INTO ratings (user_id, book_id, rate)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, book_id) DO UPDATE SET rate = EXCLUDED.rate
		RETURNING id`, rating.UserID, rating.BookID, string(rating.Rate))
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

func (s *Store) ListRatings(ctx context.Context, bookID int64) ([]models.Rating, error) {
	ratings := []models.Rating{}
	err := s.db.SelectContext(ctx, &ratings, `
		SELECT r.id, r.user_id, r.book_id, r.rate, u.username
		FROM ratings r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = $1
		ORDER BY r.id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return ratings, nil
}
