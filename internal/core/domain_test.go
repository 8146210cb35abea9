package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var today = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func validRecord() Record {
	return Record{
		ID:       "r1",
		Title:    "Groceries",
		Amount:   12.5,
		Date:     "2025-06-01",
		Category: "Food",
		Notes:    "weekly shop",
	}
}

func TestRecordValidateAt(t *testing.T) {
	if err := validRecord().ValidateAt(today); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	sameDay := validRecord()
	sameDay.Date = "2025-06-15"
	if err := sameDay.ValidateAt(today); err != nil {
		t.Fatalf("today must be accepted, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Record)
		want   error
	}{
		{"missing id", func(r *Record) { r.ID = "" }, ErrMissingID},
		{"blank title", func(r *Record) { r.Title = "   " }, ErrEmptyTitle},
		{"short title", func(r *Record) { r.Title = "ab" }, ErrTitleTooShort},
		{"zero amount", func(r *Record) { r.Amount = 0 }, ErrInvalidAmount},
		{"negative amount", func(r *Record) { r.Amount = -3 }, ErrInvalidAmount},
		{"bad date", func(r *Record) { r.Date = "15/06/2025" }, ErrInvalidDate},
		{"future date", func(r *Record) { r.Date = "2025-06-16" }, ErrFutureDate},
		{"empty category", func(r *Record) { r.Category = "" }, ErrEmptyCategory},
		{"long notes", func(r *Record) { r.Notes = strings.Repeat("x", 201) }, ErrNotesTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := r.ValidateAt(today)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ValidateAt() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRecordNotesAtLimit(t *testing.T) {
	r := validRecord()
	r.Notes = strings.Repeat("é", MaxNotesLength)
	if err := r.ValidateAt(today); err != nil {
		t.Fatalf("200 characters must be accepted, got %v", err)
	}
}

func TestAmountCents(t *testing.T) {
	cases := []struct {
		amount float64
		want   int64
	}{
		{12.5, 1250},
		{0.1 + 0.2, 30},
		{19.99, 1999},
	}
	for _, tc := range cases {
		if got := (Record{Amount: tc.amount}).AmountCents(); got != tc.want {
			t.Errorf("AmountCents(%v) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}

func TestSyncStatusString(t *testing.T) {
	if SyncIdle.String() != "idle" || SyncSyncing.String() != "syncing" || SyncDone.String() != "done" {
		t.Fatalf("unexpected status names")
	}
}
