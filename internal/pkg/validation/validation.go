package validation

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

// phonePattern is the local mobile format: 77 or 17 followed by six digits.
var phonePattern = regexp.MustCompile(`^(77|17)\d{6}$`)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		mustRegister(instance)
	})
	return instance
}

// RegisterGinRules installs the custom rules into gin's binding engine so that
// `binding:"hhmm"` style tags work in request DTOs.
func RegisterGinRules() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		mustRegister(v)
	}
}

// IsPhone reports whether v matches the local mobile format.
func IsPhone(v string) bool {
	return phonePattern.MatchString(v)
}

func mustRegister(v *validator.Validate) {
	rules := map[string]validator.Func{
		"hhmm":       validateClock,
		"localphone": validatePhone,
		"isodate":    validateDate,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := slot.ParseClock(fl.Field().String())
	return err == nil
}

func validatePhone(fl validator.FieldLevel) bool {
	return IsPhone(fl.Field().String())
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := slot.ParseDate(fl.Field().String())
	return err == nil
}
