package ledger

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/bursar-dev/bursar/internal/model"
)

// ValidationError describes a single rejected field of a transaction.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// StudentChecker tests whether a student ID is enrolled.
type StudentChecker interface {
	Exists(id string) bool
}

// transactionInput mirrors the fields of model.Transaction checked by tags.
type transactionInput struct {
	StudentID   string          `validate:"required"`
	Kind        string          `validate:"required,oneof=invoice payment manual_debit manual_credit"`
	Amount      decimal.Decimal `validate:"gt=0"`
	Description string          `validate:"max=256"`
	Reference   string          `validate:"max=64"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

var hundred = decimal.NewFromInt(100)

// Validate checks a transaction before it may enter the ledger. It returns
// every problem found; nil means the transaction is acceptable.
func Validate(t model.Transaction, students StudentChecker) []ValidationError {
	var errs []ValidationError

	err := validate.Struct(transactionInput{
		StudentID:   strings.TrimSpace(t.StudentID),
		Kind:        string(t.Kind),
		Amount:      t.Amount,
		Description: t.Description,
		Reference:   t.Reference,
	})
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			errs = append(errs, ValidationError{Field: fe.Field(), Description: describe(fe)})
		}
	} else if err != nil {
		errs = append(errs, ValidationError{Field: "transaction", Description: err.Error()})
	}

	if t.Amount.IsPositive() && !t.Amount.Mul(hundred).Equal(t.Amount.Mul(hundred).Floor()) {
		errs = append(errs, ValidationError{
			Field:       "Amount",
			Description: fmt.Sprintf("amount %s has more than 2 decimal places", t.Amount),
		})
	}

	if t.Date.IsZero() {
		errs = append(errs, ValidationError{Field: "Date", Description: "date is required"})
	}

	if t.StudentID != "" && students != nil && !students.Exists(t.StudentID) {
		errs = append(errs, ValidationError{
			Field:       "StudentID",
			Description: fmt.Sprintf("unknown student %q", t.StudentID),
		})
	}

	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("%v is not one of [%s]", fe.Value(), fe.Param())
	case "gt":
		return "must be greater than zero"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

func joinErrors(errs []ValidationError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
