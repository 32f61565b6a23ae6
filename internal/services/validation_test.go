package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ratingForm struct {
	Rate  string `json:"rate" validate:"required,oneof=Poor Okay Good Excellent Outstanding"`
	Email string `json:"email" validate:"required,email"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&ratingForm{Rate: "Good", Email: "reader@example.com"})
		assert.NoError(t, err)
	})

	t.Run("invalid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&ratingForm{Rate: "Great"})
		require.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 2)
	})
}

func TestValidationHelper_DecodeJSON(t *testing.T) {
	vh := NewValidationHelper()

	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
		wantError  string
	}{
		{name: "valid", body: `{"rate":"Good","email":"reader@example.com"}`, wantOK: true, wantStatus: http.StatusOK},
		{name: "malformed", body: `{"rate":`, wantStatus: http.StatusBadRequest, wantError: "Invalid request body"},
		{name: "unknown field", body: `{"rate":"Good","email":"reader@example.com","admin":true}`, wantStatus: http.StatusBadRequest, wantError: "Invalid request body"},
		{name: "two objects", body: `{"rate":"Good","email":"reader@example.com"}{}`, wantStatus: http.StatusBadRequest, wantError: "Request body must only contain a single JSON object"},
		{name: "fails validation", body: `{"rate":"Great","email":"reader@example.com"}`, wantStatus: http.StatusBadRequest, wantError: "Validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/rating/1", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var form ratingForm
			ok := vh.DecodeJSON(w, r, &form)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				var response ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, tt.wantError, response.Error)
			}
		})
	}
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("with validation errors", func(t *testing.T) {
		validationErr := NewValidationHelper().ValidateStruct(&ratingForm{Rate: "Great", Email: "nope"})
		require.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Contains(t, response.Details, "Rate")
		assert.Contains(t, response.Details, "Email")
	})

	t.Run("non validation error carries no details", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, ErrOutOfStock)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Nil(t, response.Details)
	})
}

func TestSendCodedError(t *testing.T) {
	w := httptest.NewRecorder()
	SendCodedError(w, ErrInsufficientFunds, http.StatusConflict)

	assert.Equal(t, http.StatusConflict, w.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Insufficient balance", response.Error)
	assert.Equal(t, "INSUFFICIENT_FUNDS", response.Code)
}
