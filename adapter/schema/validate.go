package schema

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

var validate = sync.OnceValue(func() *validator.Validate {
	return validator.New()
})

func validateRules(path string, v any, rules string) (err error) {
	defer func() {
		// validator panics on unknown tags
		if r := recover(); r != nil {
			err = &domain.ErrConfiguration{Reason: fmt.Sprintf("invalid rules %q on %q: %v", rules, path, r)}
		}
	}()
	err = validate().Var(v, rules)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	failed := make([]string, len(fieldErrs))
	for n, fe := range fieldErrs {
		failed[n] = fe.Tag()
		if fe.Param() != "" {
			failed[n] += "=" + fe.Param()
		}
	}
	return &domain.ErrValidation{
		Path:     path,
		Expected: rules,
		Actual:   fmt.Sprint(v),
		Reason:   "failed rule " + strings.Join(failed, ","),
	}
}
