package model

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/okian/wcs/internal/domain/period"
)

var validate = newValidator() //nolint:gochecknoglobals // validator caches struct metadata

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("isoweek", func(fl validator.FieldLevel) bool {
		_, err := period.Parse(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.Float32 && f.Kind() != reflect.Float64 {
			return true
		}
		return !math.IsNaN(f.Float()) && !math.IsInf(f.Float(), 0)
	})
	return v
}

// Validate checks an activity record at the ingestion boundary. Out of range
// values are rejected, never clamped. reportingDays bounds the daily post
// count for the period.
func (a *ActivityRecord) Validate(reportingDays int) error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidActivity, describe(err))
	}
	if a.Collaboration.DailyPostsInPeriod > reportingDays {
		return fmt.Errorf("%w: collaboration.daily_posts_in_period %d exceeds %d reporting days",
			ErrInvalidActivity, a.Collaboration.DailyPostsInPeriod, reportingDays)
	}
	return nil
}

// Validate checks a roster entry.
func (e *Employee) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEmployee, describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
