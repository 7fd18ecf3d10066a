package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

func TestNormalizePhoneUsesE164(t *testing.T) {
	got, err := NormalizePhone("+1 650-253-0000", "IN")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != "+16502530000" {
		t.Fatalf("expected +16502530000, got %s", got)
	}

	if _, err := NormalizePhone("12", "IN"); err == nil {
		t.Fatalf("expected short number to be rejected")
	}
}

func TestProcessValidationErrors(t *testing.T) {
	type input struct {
		Name string `validate:"required"`
	}
	err := validator.New().Struct(input{})
	got := ProcessValidationErrors(err)
	if got["Name"] != "required" {
		t.Fatalf("expected Name=required, got %v", got)
	}

	got = ProcessValidationErrors(errors.New("unexpected EOF"))
	if got["body"] != "unexpected EOF" {
		t.Fatalf("expected body error, got %v", got)
	}
}

func TestAddMonths(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	got := AddMonths(start, 1)
	if !got.Equal(time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %s", got)
	}
	got = AddMonths(start, 11)
	if !got.Equal(time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %s", got)
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{gorm.ErrDuplicatedKey, true},
		{fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey), true},
		{errors.New("UNIQUE constraint failed: chits.chit_number"), true},
		{errors.New("Error 1062: Duplicate entry"), true},
		{errors.New("connection refused"), false},
	}
	for _, c := range cases {
		if got := IsDuplicateKeyErr(c.err); got != c.want {
			t.Fatalf("IsDuplicateKeyErr(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestValidationErrorIsDetectable(t *testing.T) {
	err := fmt.Errorf("record payment: %w", NewValidationError("chit is %s", "completed"))
	if !IsValidationError(err) {
		t.Fatalf("expected wrapped validation error to be detected")
	}
	if IsValidationError(ErrorRecordNotFound) {
		t.Fatalf("not found is not a validation error")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hashed, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hashed, "s3cret"); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := ComparePassword(hashed, "wrong"); err == nil {
		t.Fatalf("expected mismatch")
	}
}
