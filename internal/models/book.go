package models

import "github.com/shopspring/decimal"

type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

// Book is a catalog entry. AvailableCopies never drops below zero.
type Book struct {
	ID              int64      `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	Image           string     `json:"image" db:"image"`
	BorrowingPrice  int        `json:"borrowing_price" db:"borrowing_price"`
	AvailableCopies int        `json:"available_copies" db:"available_copies"`
	Categories      []Category `json:"categories" db:"-"`
}

// IsAvailable reports whether at least one copy can be lent out.
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// Price returns the borrowing price as a decimal amount.
func (b *Book) Price() decimal.Decimal {
	return decimal.NewFromInt(int64(b.BorrowingPrice))
}

// BookFilter narrows catalog listings. Zero values match everything.
type BookFilter struct {
	CategorySlug string
	Query        string
}
