package api

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"storefront/internal/models"
)

var registerOnce sync.Once

// registerValidators adds the storefront tags to gin's validator
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return models.Category(fl.Field().String()).Valid()
		})
	})
}
