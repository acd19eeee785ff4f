package core

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Linear PredictionModel = "linear"
	Arima  PredictionModel = "arima"

	// RoleOwner is the role every self-registered account receives.
	RoleOwner = "owner"

	// DateLayout is the wire format for transaction dates.
	DateLayout = "2006-01-02"
)

type (
	TransactionType string

	PredictionModel string

	User struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}

	Token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		User        User   `json:"user"`
	}

	Registration struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	Credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	Transaction struct {
		ID       int64           `json:"id"`
		UserID   int64           `json:"user_id"`
		Type     TransactionType `json:"type"`
		Category string          `json:"category"`
		Amount   float64         `json:"amount"`
		Date     string          `json:"date"`
		Note     *string         `json:"note,omitempty"`
	}

	// NewTransaction is the payload for a manually entered transaction.
	NewTransaction struct {
		Type     TransactionType `json:"type" validate:"required,oneof=income expense"`
		Category string          `json:"category" validate:"required,max=120"`
		Amount   float64         `json:"amount" validate:"gt=0"`
		Date     string          `json:"date" validate:"required,datetime=2006-01-02"`
		Note     *string         `json:"note,omitempty"`
	}

	UploadResult struct {
		InsertedRows int    `json:"inserted_rows"`
		SkippedRows  int    `json:"skipped_rows"`
		Message      string `json:"message"`
	}

	ChatQuestion struct {
		Question string `json:"question"`
	}

	ChatAnswer struct {
		Answer string `json:"answer"`
	}

	// Page selects a window of the transaction list. Zero values are omitted
	// from the request.
	Page struct {
		Limit  int
		Offset int
	}
)

var (
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrCategoryTooLong = errors.New("category too long")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a manual entry the way the entry form constrains it.
// The first failing field decides the returned error.
func (t NewTransaction) Validate() error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch verrs[0].Field() {
	case "Type":
		return ErrInvalidType
	case "Category":
		if verrs[0].Tag() == "required" {
			return ErrEmptyCategory
		}
		return ErrCategoryTooLong
	case "Amount":
		return ErrInvalidAmount
	case "Date":
		return ErrInvalidDate
	}
	return err
}

// ParseTransactionType maps form input onto a transaction type. Anything
// other than "expense" is treated as income, matching the entry form.
func ParseTransactionType(s string) TransactionType {
	if strings.EqualFold(strings.TrimSpace(s), string(Expense)) {
		return Expense
	}
	return Income
}

// Today returns the current local date in wire format.
func Today() string {
	return time.Now().Format(DateLayout)
}

// SanitizeEmail normalizes an address before it is sent to the backend.
func SanitizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
