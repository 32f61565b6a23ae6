package handlers

import (
	"context"
	"net/http"
)

// BookQR renders share codes for books.
type BookQR interface {
	BookQRCode(ctx context.Context, bookID int64) ([]byte, error)
}

type QRHandler struct {
	service BookQR
}

func NewQRHandler(service BookQR) *QRHandler {
	return &QRHandler{service: service}
}

// BookQR returns a QR code linking to the book's details page
// @Summary Book share QR code
// @Description PNG QR code encoding the public details URL of a book
// @Tags catalog
// @Produce png
// @Param id path int true "Book ID"
// @Success 200 {file} binary
// @Failure 404 {object} services.ErrorResponse
// @Router /books/{id}/qr [get]
func (h *QRHandler) BookQR(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	png, err := h.service.BookQRCode(r.Context(), bookID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(png)
}
