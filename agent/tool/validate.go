package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
)

// selfValidator lets an input add rules that struct tags cannot express.
type selfValidator interface {
	Validate() error
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report fields by their wire name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("trimmin", trimmedMin); err != nil {
		panic(err)
	}
	return v
}

// trimmedMin is min=N measured in runes after surrounding whitespace is dropped,
// so the check applies to the value that gets stored.
func trimmedMin(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		panic(fmt.Sprintf("trimmin: bad param %q", fl.Param()))
	}
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
}

// ValidateStruct runs the tag rules and the optional Validate hook of v.
// Every failing field is reported in one *contract.ValidationError.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return contractx.NewValidationError(contractx.FieldError{Rule: "struct", Message: err.Error()})
		}
		fields := make([]contractx.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, toFieldError(fe))
		}
		return contractx.NewValidationError(fields...)
	}

	if sv, ok := v.(selfValidator); ok {
		if err := sv.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// VerifyOutput checks a handler result. Failures are schema violations, never validation errors,
// because the caller did nothing wrong.
func VerifyOutput(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	return nil
}

func toFieldError(fe validator.FieldError) contractx.FieldError {
	field := fieldPath(fe.Namespace())
	return contractx.FieldError{
		Field:   field,
		Rule:    fe.Tag(),
		Message: describe(fe, field),
	}
}

// fieldPath drops the root struct name: "CreateOrderInput.orderLines[0].quantity" -> "orderLines[0].quantity".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func describe(fe validator.FieldError, field string) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "uuid":
		return fmt.Sprintf("%s must be a UUID", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "trimmin":
		return fmt.Sprintf("%s must be at least %s characters long, not counting surrounding spaces", field, fe.Param())
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		default:
			return fmt.Sprintf("%s must be at least %s", field, fe.Param())
		}
	default:
		return fmt.Sprintf("%s failed the %s rule", field, fe.Tag())
	}
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "arguments"
		}
		return contractx.NewValidationError(contractx.FieldError{
			Field:   field,
			Rule:    "type",
			Message: fmt.Sprintf("%s must be %s, got %s", field, jsonTypeName(typeErr.Type), typeErr.Value),
		})
	}
	return contractx.NewValidationError(contractx.FieldError{
		Field:   "arguments",
		Rule:    "json",
		Message: err.Error(),
	})
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "a valid value"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}
