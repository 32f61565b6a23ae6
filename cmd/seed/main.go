package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bookledger/backend/internal/database"
	"github.com/bookledger/backend/internal/models"
	"github.com/bookledger/backend/internal/repository"
)

var categories = []models.Category{
	{Name: "Fiction", Slug: "fiction"},
	{Name: "Science Fiction", Slug: "science-fiction"},
	{Name: "History", Slug: "history"},
	{Name: "Programming", Slug: "programming"},
}

var books = []struct {
	book  models.Book
	slugs []string
}{
	{models.Book{Title: "Dune", Description: "Desert planet, spice and politics.", Image: "covers/dune.jpg", BorrowingPrice: 20, AvailableCopies: 3}, []string{"fiction", "science-fiction"}},
	{models.Book{Title: "The Left Hand of Darkness", Description: "An envoy on the ice world of Gethen.", Image: "covers/left-hand.jpg", BorrowingPrice: 15, AvailableCopies: 2}, []string{"fiction", "science-fiction"}},
	{models.Book{Title: "Pride and Prejudice", Description: "Manners and marriage in Regency England.", Image: "covers/pride.jpg", BorrowingPrice: 10, AvailableCopies: 4}, []string{"fiction"}},
	{models.Book{Title: "SPQR", Description: "A history of ancient Rome.", Image: "covers/spqr.jpg", BorrowingPrice: 25, AvailableCopies: 1}, []string{"history"}},
	{models.Book{Title: "The Go Programming Language", Description: "Donovan and Kernighan on Go.", Image: "covers/gopl.jpg", BorrowingPrice: 30, AvailableCopies: 2}, []string{"programming"}},
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using environment")
	}
	viper.AutomaticEnv()
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	ctx := context.Background()
	db := database.InitDatabase(ctx)
	defer db.Close()

	store := repository.NewStore(db, 0)

	existing, err := store.ListBooks(ctx, models.BookFilter{})
	if err != nil {
		slog.Error("failed to list books", "error", err)
		os.Exit(1)
	}
	if len(existing) > 0 {
		slog.Info("catalog already seeded", "books", len(existing))
		return
	}

	err = store.WithTx(ctx, func(tx repository.Tx) error {
		bySlug := make(map[string]models.Category, len(categories))
		for _, c := range categories {
			if err := tx.CreateCategory(ctx, &c); err != nil {
				return err
			}
			bySlug[c.Slug] = c
			slog.Info("category created", "slug", c.Slug, "id", c.ID)
		}

		for _, entry := range books {
			book := entry.book
			for _, slug := range entry.slugs {
				book.Categories = append(book.Categories, bySlug[slug])
			}
			if err := tx.CreateBook(ctx, &book); err != nil {
				return err
			}
			slog.Info("book created", "title", book.Title, "id", book.ID, "copies", book.AvailableCopies)
		}
		return nil
	})
	if err != nil {
		slog.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	slog.Info("catalog seeded", "categories", len(categories), "books", len(books))
}
