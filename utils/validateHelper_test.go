package utils_test

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scaledInput struct {
	Quantity decimal.Decimal  `json:"quantity" validate:"gt=0,max_scale=4"`
	Price    *decimal.Decimal `json:"price" validate:"omitempty,gte=0,max_scale=4"`
}

func TestValidateStructMaxScale(t *testing.T) {
	cases := []struct {
		name     string
		quantity string
		price    string
		field    string
	}{
		{name: "whole", quantity: "12"},
		{name: "four places", quantity: "0.0001", price: "19.9999"},
		{name: "trailing zeros", quantity: "1.50000000"},
		{name: "five places", quantity: "0.00001", field: "quantity"},
		{name: "pointer five places", quantity: "1", price: "2.12345", field: "price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := scaledInput{Quantity: decimal.RequireFromString(tc.quantity)}
			if tc.price != "" {
				p := decimal.RequireFromString(tc.price)
				input.Price = &p
			}
			err := utils.ValidateStruct(&input)
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var appErr *utils.AppError
			require.True(t, errors.As(err, &appErr), "got %v", err)
			assert.Equal(t, utils.CodeValidationError, appErr.Code)
			assert.Equal(t, "max_scale=4", appErr.Details[tc.field])
		})
	}
}
