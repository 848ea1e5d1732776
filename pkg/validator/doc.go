// Package validator provides small, composable validation rules that
// produce structured, translatable errors.
//
// Rules are plain values created by helper constructors and evaluated with
// Apply, which collects every failing rule into a ValidationErrors value:
//
//	err := validator.Apply(
//	    validator.RequiredString("email", rec.Email),
//	    validator.Email("email", rec.Email),
//	    validator.MaxLenString("name", rec.Name, 200),
//	)
//	if validator.IsValidationError(err) {
//	    for _, e := range validator.ExtractValidationErrors(err) {
//	        log.Println(e.Field, e.Message)
//	    }
//	}
//
// Each error carries a TranslationKey and TranslationValues so callers can
// replace the default English message via ValidationErrors.Translate.
package validator
