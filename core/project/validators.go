package project

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-portal/core"
)

var (
	sdgTag  = "sdg"
	sdgText = "select one of the 17 sustainable development goals"

	projectTypeTag  = "projecttype"
	projectTypeText = "select a valid project type"

	descFileTag  = "descfile"
	descFileText = "a project description file is required"

	endDateTag  = "enddate"
	endDateText = "end date cannot be before start date"
)

func init() {
	_ = core.Validate.RegisterValidation(sdgTag, optionValidation(SDGTypes))
	core.RegisterCustomTranslation(sdgTag, sdgText)

	_ = core.Validate.RegisterValidation(projectTypeTag, optionValidation(ProjectTypes))
	core.RegisterCustomTranslation(projectTypeTag, projectTypeText)

	// must run on empty values too
	_ = core.Validate.RegisterValidation(descFileTag, descFileValidation, true)
	core.RegisterCustomTranslation(descFileTag, descFileText)

	core.Validate.RegisterStructValidation(draftStructValidation, Draft{})
	core.RegisterCustomTranslation(endDateTag, endDateText)
}

// Validate runs every field validator on d and returns the failures keyed by field.
// The result is empty when d is valid.
func Validate(d Draft) core.FieldErrors {
	return core.ValidateStruct(d)
}

// ValidateField returns the error message of a single field, or "" when it is valid.
func ValidateField(d Draft, field string) string {
	return Validate(d)[field]
}

// CanAdvance reports whether every field validator passes.
func CanAdvance(d Draft) bool {
	return len(Validate(d)) == 0
}

// Custom Validators

func optionValidation(opts []Option) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return hasOption(opts, fl.Field().String())
	}
}

func descFileValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// draftStructValidation checks that the end date is not strictly before the start date.
func draftStructValidation(sl validator.StructLevel) {
	d, ok := sl.Current().Interface().(Draft)
	if !ok || d.StartDate.IsZero() || d.EndDate.IsZero() {
		return
	}
	if core.TruncateDate(d.EndDate).Before(core.TruncateDate(d.StartDate)) {
		sl.ReportError(d.EndDate, FieldEndDate, "EndDate", endDateTag, "")
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
