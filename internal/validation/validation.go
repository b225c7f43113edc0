// internal/validation/validation.go
package validation

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"boq-portal.kz/internal/auth"
	"boq-portal.kz/internal/roles"
)

var validate *validator.Validate
var alphaSpaceRegex = regexp.MustCompile(`^[\p{L}\s-]+$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("complex_password", validateComplexPassword)
	validate.RegisterValidation("alpha_space", validateAlphaSpace)
	validate.RegisterValidation("role_token", validateRoleToken)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateStruct возвращает ошибки по полям формы или nil.
func ValidateStruct(data interface{}) url.Values {
	err := validate.Struct(data)
	if err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) url.Values {
	errorsMap := url.Values{}
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrs {
			errorsMap.Add(fieldErr.Field(), getErrorMessage(fieldErr))
		}
	} else {
		errorsMap.Add("general", "Ошибка валидации: "+err.Error())
	}
	return errorsMap
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "Это поле обязательно для заполнения."
	case "email":
		return "Введите корректный адрес электронной почты."
	case "min":
		return fmt.Sprintf("Минимальная длина этого поля: %s символов.", err.Param())
	case "max":
		return fmt.Sprintf("Максимальная длина этого поля: %s символов.", err.Param())
	case "gt", "gte":
		return "Некорректный идентификатор."
	case "startswith":
		return fmt.Sprintf("Значение должно начинаться с %q.", err.Param())
	case "complex_password":
		return "Пароль должен содержать буквы, цифры и символы."
	case "alpha_space":
		return "Поле может содержать только буквы, пробелы и дефисы."
	case "role_token":
		return "Неизвестная роль."
	default:
		return fmt.Sprintf("Некорректное значение для поля %s (тег: %s).", err.Field(), err.Tag())
	}
}

func validateAlphaSpace(fl validator.FieldLevel) bool {
	return alphaSpaceRegex.MatchString(fl.Field().String())
}

func validateComplexPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if password == "" {
		return true
	}
	return auth.IsPasswordComplex(password)
}

// role_token принимает только роли из таблицы, в любом из представлений.
func validateRoleToken(fl validator.FieldLevel) bool {
	_, err := roles.Parse(fl.Field().String())
	return err == nil
}
