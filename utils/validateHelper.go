package utils

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. Decimal fields validate as float64 so that
// numeric tags (gt, gte) work on them; json tag names are used in field details.
// max_scale=N rejects decimals with more than N fractional digits.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		_ = validate.RegisterValidation("max_scale", validateMaxScale)
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// validateMaxScale reads the decimal from the parent struct, since the field itself has
// already been turned into a float64.
func validateMaxScale(fl validator.FieldLevel) bool {
	places, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	parent := fl.Parent()
	for parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	if parent.Kind() == reflect.Struct {
		field := parent.FieldByName(fl.StructFieldName())
		for field.Kind() == reflect.Ptr {
			if field.IsNil() {
				return true
			}
			field = field.Elem()
		}
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.Equal(d.Truncate(int32(places)))
		}
	}
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		d := decimal.NewFromFloat(fl.Field().Float())
		return d.Equal(d.Truncate(int32(places)))
	default:
		return true
	}
}

// ValidateStruct runs struct tag validation and converts failures into a ValidationError.
func ValidateStruct(input interface{}) error {
	err := Validator().Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := ProcessValidationErrors(verrs)
		names := make([]string, 0, len(fields))
		for _, ve := range verrs {
			names = append(names, ve.Field())
		}
		return ValidationError("invalid input: "+strings.Join(names, ", "), fields)
	}
	return ValidationError(err.Error(), nil)
}

func ProcessValidationErrors(validationErrors validator.ValidationErrors) map[string]string {
	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		if ve.Param() != "" {
			errorResponse[ve.Field()] = ve.Tag() + "=" + ve.Param()
		} else {
			errorResponse[ve.Field()] = ve.Tag()
		}
	}
	return errorResponse
}

// ValidateResourceId checks id exists in T's table, returning ReferenceNotFoundError otherwise.
func ValidateResourceId[T any](ctx context.Context, tx *gorm.DB, resource string, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, tx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ReferenceNotFoundError(resource, id)
	}
	return nil
}

// ValidateResourcesId checks that ALL ids exist.
func ValidateResourcesId[M any, ID comparable](ctx context.Context, tx *gorm.DB, resource string, ids []ID) error {
	unqIds := UniqueSlice(ids)
	if len(unqIds) == 0 {
		return nil
	}
	count, err := ResourceCountWhere[M](ctx, tx, "id IN ?", unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return ReferenceNotFoundError(resource, unqIds)
	}
	return nil
}

func ResourceCountWhere[T any](ctx context.Context, tx *gorm.DB, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	if err := tx.WithContext(ctx).Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
