package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/garyjia/sales-reports/internal/domain/apperr"
	"github.com/garyjia/sales-reports/internal/domain/entity"
)

// ReportInput is the caller-supplied content of a report.
// Location ids may be omitted by branch users; they default to the actor's branch.
type ReportInput struct {
	Period        string              `json:"period" validate:"omitempty,datetime=2006-01"`
	BranchID      int64               `json:"branch_id" validate:"omitempty,gt=0"`
	SubdistrictID int64               `json:"subdistrict_id" validate:"omitempty,gt=0"`
	CityID        int64               `json:"city_id" validate:"omitempty,gt=0"`
	Stock         decimal.NullDecimal `json:"stock"`
	Expenses      decimal.NullDecimal `json:"expenses"`
	Income        decimal.NullDecimal `json:"income"`
	Notes         string              `json:"notes" validate:"max=2000"`
	Submit        bool                `json:"submit"`
}

// draftFields are required for any stored report
type draftFields struct {
	Period        string `json:"period" validate:"required,datetime=2006-01"`
	BranchID      int64  `json:"branch_id" validate:"required,gt=0"`
	SubdistrictID int64  `json:"subdistrict_id" validate:"required,gt=0"`
	CityID        int64  `json:"city_id" validate:"required,gt=0"`
}

// submissionFields are required before a report enters review
type submissionFields struct {
	draftFields
	Stock    decimal.NullDecimal `json:"stock" validate:"required"`
	Expenses decimal.NullDecimal `json:"expenses" validate:"required"`
	Income   decimal.NullDecimal `json:"income" validate:"required"`
}

type commentInput struct {
	Body string `json:"body" validate:"required,max=2000"`
}

type rejectInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report field names the way clients send them
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// a NullDecimal is present only when Valid
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.NullDecimal); ok && d.Valid {
			return d.Decimal.String()
		}
		return nil
	}, decimal.NullDecimal{})

	return v
}

// validateStruct converts validator errors into an apperr.ValidationError
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	out := apperr.NewValidationError(nil)
	for _, fe := range verrs {
		out.Add(fe.Field(), "%s", describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return fmt.Sprintf("must match layout %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed on %q", fe.Tag())
	}
}

func draftOf(r *entity.Report) draftFields {
	return draftFields{
		Period:        r.Period,
		BranchID:      r.BranchID,
		SubdistrictID: r.SubdistrictID,
		CityID:        r.CityID,
	}
}

func submissionOf(r *entity.Report) submissionFields {
	return submissionFields{
		draftFields: draftOf(r),
		Stock:       r.Stock,
		Expenses:    r.Expenses,
		Income:      r.Income,
	}
}

// applyContent copies the creator-editable content of in onto r
func applyContent(r *entity.Report, in ReportInput) {
	r.Period = in.Period
	r.Stock = in.Stock
	r.Expenses = in.Expenses
	r.Income = in.Income
	r.Notes = strings.TrimSpace(in.Notes)
}

// applyCorrection copies a reviewer's correction onto r; omitted fields are kept.
// Reviewers may not move a report to another period or location.
func applyCorrection(r *entity.Report, in ReportInput) error {
	verr := apperr.NewValidationError(nil)
	if in.Period != "" && in.Period != r.Period {
		verr.Add("period", "cannot be changed during review")
	}
	if in.BranchID != 0 && in.BranchID != r.BranchID {
		verr.Add("branch_id", "cannot be changed during review")
	}
	if in.SubdistrictID != 0 && in.SubdistrictID != r.SubdistrictID {
		verr.Add("subdistrict_id", "cannot be changed during review")
	}
	if in.CityID != 0 && in.CityID != r.CityID {
		verr.Add("city_id", "cannot be changed during review")
	}
	if verr.HasErrors() {
		return verr
	}

	if in.Stock.Valid {
		r.Stock = in.Stock
	}
	if in.Expenses.Valid {
		r.Expenses = in.Expenses
	}
	if in.Income.Valid {
		r.Income = in.Income
	}
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		r.Notes = notes
	}
	return nil
}
