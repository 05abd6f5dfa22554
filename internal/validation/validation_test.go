package validation

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

type vehicle struct {
	Plate    string `json:"plate_number" validate:"required"`
	Year     int    `json:"year,omitempty" validate:"omitempty,min=1900,notfutureyear"`
	Make     int64  `json:"car_make,omitempty" validate:"required_without=MakeText"`
	MakeText string `json:"car_make_text,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	v := Struct(vehicle{Year: 1850, Email: "nope"})
	want := map[string]string{
		"plate_number": "required",
		"year":         "out_of_range",
		"car_make":     "required",
		"email":        "invalid_email",
	}
	for field, r := range want {
		if v[field] != r {
			t.Fatalf("field %s: expected %q got %q (all: %v)", field, r, v[field], v)
		}
	}
}

func TestYearUpperBound(t *testing.T) {
	next := time.Now().Year() + 1
	if v := Struct(vehicle{Plate: "A", MakeText: "Toyota", Year: next}); !v.Empty() {
		t.Fatalf("next year must be accepted: %v", v)
	}
	if v := Struct(vehicle{Plate: "A", MakeText: "Toyota", Year: next + 1}); v["year"] != "out_of_range" {
		t.Fatalf("year after next must be rejected: %v", v)
	}
}

func TestFreeTextSatisfiesRequiredWithout(t *testing.T) {
	if v := Struct(vehicle{Plate: "A", MakeText: "Lada"}); !v.Empty() {
		t.Fatalf("expected valid, got %v", v)
	}
}

func TestFailWrapsErrInvalid(t *testing.T) {
	if Fail("step", Violations{}) != nil {
		t.Fatalf("empty violations must not fail")
	}
	err := Fail("step", Violations{"plate_number": "required"})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	var verr *Error
	if !errors.As(err, &verr) || verr.Violations["plate_number"] != "required" {
		t.Fatalf("unexpected error %#v", err)
	}
}
