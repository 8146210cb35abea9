package core

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the ISO calendar date format used by Record.Date.
const DateLayout = "2006-01-02"

// MaxNotesLength is the maximum number of characters allowed in Record.Notes.
const MaxNotesLength = 200

type (
	// Record is a single expense entry. ID is assigned once, by the client or
	// the server, and never changes afterwards.
	Record struct {
		ID       string  `json:"id" validate:"required"`
		Title    string  `json:"title" validate:"notblank,min=3"`
		Amount   float64 `json:"amount" validate:"gt=0"`
		Date     string  `json:"date" validate:"required,isodate"`
		Category string  `json:"category" validate:"notblank"`
		Notes    string  `json:"notes,omitempty" validate:"max=200"`
	}
)

var (
	ErrMissingID     = errors.New("missing record id")
	ErrEmptyTitle    = errors.New("empty title")
	ErrTitleTooShort = errors.New("title too short (min 3 characters)")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date (expected YYYY-MM-DD)")
	ErrFutureDate    = errors.New("date cannot be in the future")
	ErrEmptyCategory = errors.New("empty category")
	ErrNotesTooLong  = errors.New("notes too long (max 200 characters)")
)

var recordValidate *validator.Validate

func init() {
	recordValidate = validator.New()
	_ = recordValidate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = recordValidate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	})
}

// Validate checks the record against today's date in local time.
func (r Record) Validate() error {
	return r.ValidateAt(time.Now())
}

// ValidateAt checks the record shape and that its date is not after today.
// Callers validate before building a PendingAction; the queue itself accepts
// any well-typed record.
func (r Record) ValidateAt(today time.Time) error {
	if math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) {
		return ErrInvalidAmount
	}
	if err := recordValidate.Struct(r); err != nil {
		return translateValidation(err)
	}
	d, _ := r.ParsedDate()
	y, m, day := today.Date()
	if d.After(time.Date(y, m, day, 0, 0, 0, 0, time.UTC)) {
		return ErrFutureDate
	}
	return nil
}

// ParsedDate returns Date as a UTC midnight time.
func (r Record) ParsedDate() (time.Time, error) {
	t, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// AmountCents returns the amount rounded half-up to integer cents.
func (r Record) AmountCents() int64 {
	return int64(math.Round(r.Amount * 100))
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.StructField() {
	case "ID":
		return ErrMissingID
	case "Title":
		if fe.Tag() == "min" {
			return ErrTitleTooShort
		}
		return ErrEmptyTitle
	case "Amount":
		return ErrInvalidAmount
	case "Date":
		return ErrInvalidDate
	case "Category":
		return ErrEmptyCategory
	case "Notes":
		return ErrNotesTooLong
	}
	return err
}
