package grade

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo/core"
)

var (
	assessmentTypeTag  = "assessment_type"
	assessmentTypeText = "invalid assessment type; expected one of: " + strings.Join(AssessmentTypes, ", ")
)

// InitValidators registers the gradebook validation tags. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(assessmentTypeTag, assessmentTypeValidation)
	core.RegisterCustomTranslation(validate, translator, assessmentTypeTag, assessmentTypeText)
}

func assessmentTypeValidation(fl validator.FieldLevel) bool {
	typ := fl.Field().String()
	for _, t := range AssessmentTypes {
		if typ == t {
			return true
		}
	}
	return false
}
