package attendance

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/wazoefu/mahudhurio/core"
)

var (
	statusTag  = "status"
	statusText = "must be one of present, absent, late or excused"

	notFutureTag  = "notfuture"
	notFutureText = "date cannot be in the future"

	uniqueTag  = "unique"
	uniqueText = "student ids must be unique within a submission"
)

// RegisterValidators registers the attendance domain validations on the
// shared validator instance.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	validate.RegisterStructValidation(newSubmissionStructValidation, NewSubmission{})
	validate.RegisterStructValidation(updateSubmissionStructValidation, UpdateSubmission{})
	core.RegisterCustomTranslation(validate, translator, notFutureTag, notFutureText)
	core.RegisterCustomTranslation(validate, translator, uniqueTag, uniqueText, true)
}

func statusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}

// A submission for a day that has not happened yet is always malformed;
// the comparison is on calendar days so "later today" still passes.
func newSubmissionStructValidation(sl validator.StructLevel) {
	sub := sl.Current().Interface().(NewSubmission)
	if dateInFuture(sub.Date) {
		sl.ReportError(sub.Date, "date", "Date", notFutureTag, "")
	}
}

func updateSubmissionStructValidation(sl validator.StructLevel) {
	sub := sl.Current().Interface().(UpdateSubmission)
	if sub.Date != nil && dateInFuture(*sub.Date) {
		sl.ReportError(sub.Date, "date", "Date", notFutureTag, "")
	}
}

func dateInFuture(date time.Time) bool {
	return core.DateOnly(date).After(core.DateOnly(time.Now()))
}
