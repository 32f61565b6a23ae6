package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/bookledger/backend/internal/models"
)

const qrCacheTTL = 24 * time.Hour

// BookLookup resolves a book for the share code.
type BookLookup interface {
	GetBook(ctx context.Context, bookID int64) (*models.Book, error)
}

// QRService renders share codes that point at a book's public details
// page. Rendered PNGs are cached in Redis when it is available.
type QRService struct {
	books   BookLookup
	redis   *redis.Client
	baseURL string
}

func NewQRService(books BookLookup, redis *redis.Client, baseURL string) *QRService {
	return &QRService{
		books:   books,
		redis:   redis,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *QRService) DetailsURL(bookID int64) string {
	return fmt.Sprintf("%s/api/v1/details/%d", s.baseURL, bookID)
}

// BookQRCode returns a 256px PNG encoding the details URL of the book.
func (s *QRService) BookQRCode(ctx context.Context, bookID int64) ([]byte, error) {
	if _, err := s.books.GetBook(ctx, bookID); err != nil {
		return nil, mapNotFound(err, ErrBookNotFound)
	}

	key := fmt.Sprintf("qr:book:%d", bookID)
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			return cached, nil
		}
		if err != redis.Nil {
			slog.Warn("qr cache read failed", "book_id", bookID, "error", err)
		}
	}

	qr, err := qrcode.New(s.DetailsURL(bookID), qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, buf.Bytes(), qrCacheTTL).Err(); err != nil {
			slog.Warn("qr cache write failed", "book_id", bookID, "error", err)
		}
	}
	return buf.Bytes(), nil
}
