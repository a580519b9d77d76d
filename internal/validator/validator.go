// Package validator provides custom validation functions shared by Gin's
// binding engine and the configuration loader.
package validator

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	regionCodeRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,7}$`)
	clockRegex      = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("region_code", validateRegionCode)
	_ = v.RegisterValidation("project_status", validateProjectStatus)
	_ = v.RegisterValidation("hhmm", validateClock)
	_ = v.RegisterValidation("recipient", validateRecipient)
}

// New returns a standalone validator with the custom validators registered.
func New() *validator.Validate {
	v := validator.New()
	RegisterOn(v)
	return v
}

func validateRegionCode(fl validator.FieldLevel) bool {
	return regionCodeRegex.MatchString(fl.Field().String())
}

func validateProjectStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "PENDING", "IN_PROGRESS", "COMPLETE":
		return true
	}
	return false
}

func validateClock(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(fl.Field().String())
}

func validateRecipient(fl validator.FieldLevel) bool {
	channel, address, ok := strings.Cut(fl.Field().String(), ":")
	if !ok || address == "" {
		return false
	}
	switch channel {
	case "email", "slack", "log":
		return true
	}
	return false
}
