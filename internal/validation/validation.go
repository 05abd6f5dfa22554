package validation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrInvalid is matched by every *Error via errors.Is.
var ErrInvalid = errors.New("validation failed")

// Violations maps a field name to the rule it broke.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Fields returns the violated field names in a stable order.
func (v Violations) Fields() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Merge copies other into v, prefixing every key.
func (v Violations) Merge(prefix string, other Violations) {
	for k, rule := range other {
		v[prefix+k] = rule
	}
}

// Required records a violation when value is blank.
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// Error is a local validation failure; no request was sent.
type Error struct {
	Scope      string
	Violations Violations
}

func (e *Error) Error() string {
	if e.Violations.Empty() {
		return fmt.Sprintf("%s: invalid", e.Scope)
	}
	return fmt.Sprintf("%s: invalid %s", e.Scope, strings.Join(e.Violations.Fields(), ", "))
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Fail builds an *Error, or returns nil when there is nothing to report.
func Fail(scope string, v Violations) error {
	if v.Empty() {
		return nil
	}
	return &Error{Scope: scope, Violations: v}
}

var (
	once     sync.Once
	instance *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
		instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		_ = instance.RegisterValidation("notfutureyear", notFutureYear)
	})
	return instance
}

// notFutureYear accepts model years up to next calendar year.
func notFutureYear(fl validator.FieldLevel) bool {
	return fl.Field().Int() <= int64(time.Now().Year()+1)
}

// Struct validates s against its `validate` tags and reports violations keyed
// by JSON field name.
func Struct(s any) Violations {
	v := Violations{}
	err := engine().Struct(s)
	if err == nil {
		return v
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v["_"] = err.Error()
		return v
	}
	for _, fe := range fieldErrs {
		v[fe.Field()] = rule(fe.Tag())
	}
	return v
}

func rule(tag string) string {
	switch tag {
	case "required", "required_without", "required_if":
		return "required"
	case "min", "max", "gte", "lte", "notfutureyear":
		return "out_of_range"
	case "email":
		return "invalid_email"
	case "oneof":
		return "invalid_choice"
	default:
		return tag
	}
}
