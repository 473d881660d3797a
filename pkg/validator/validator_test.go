package validator

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	Name     string `json:"name" validate:"notblank,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Confirm  string `json:"password_confirmation" validate:"eqfield=Password"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Name:     "alice",
		Email:    "alice@example.com",
		Password: "secret",
		Confirm:  "secret",
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructCollectsEveryFailure(t *testing.T) {
	payload := testPayload{
		Name:     "   ",
		Email:    "invalid",
		Password: "secret",
		Confirm:  "other",
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	fields := vErrs.Fields()
	for _, name := range []string{"name", "email", "password_confirmation"} {
		if len(fields[name]) == 0 {
			t.Fatalf("expected %s to be reported, got %#v", name, fields)
		}
	}
	if !strings.Contains(fields["email"][0], "valid email") {
		t.Fatalf("unexpected email message %q", fields["email"][0])
	}
	if !strings.Contains(fields["password_confirmation"][0], "confirmation does not match") {
		t.Fatalf("unexpected confirmation message %q", fields["password_confirmation"][0])
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("authcore", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "authcore"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"authcore"`
	}

	if err := ValidateStruct(custom{Value: "authcore"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}
