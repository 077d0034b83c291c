// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/storefront/internal/platform/apperr"
	"github.com/taibuivan/storefront/internal/platform/validate"
)

/*
TestValidator_Required verifies that blank and whitespace-only values fail.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		hasError bool
	}{
		{"present", "reset-token", false},
		{"empty", "", true},
		{"whitespace_only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&validate.Validator{}).Required("token", tt.value).Err()
			if !tt.hasError {
				assert.NoError(t, err)
				return
			}

			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, []apperr.FieldError{{Field: "token", Message: "This field is required"}}, ae.Details)
		})
	}
}

/*
TestValidator_MaxLen verifies that the limit counts characters, not bytes.
*/
func TestValidator_MaxLen(t *testing.T) {
	assert.NoError(t, (&validate.Validator{}).MaxLen("bio", "Сайн уу", 7).Err())

	err := (&validate.Validator{}).MaxLen("bio", strings.Repeat("a", 8), 7).Err()
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "Maximum 7 characters", ae.Details[0].Message)
}

/*
TestValidator_Custom verifies that only a failed condition is recorded.
*/
func TestValidator_Custom(t *testing.T) {
	assert.NoError(t, (&validate.Validator{}).Custom("profile", false, "At least one field is required").Err())

	ae := apperr.As((&validate.Validator{}).Custom("profile", true, "At least one field is required").Err())
	require.NotNil(t, ae)
	assert.Equal(t, "profile", ae.Details[0].Field)
}

/*
TestValidator_Chain verifies that every failure across the chain is kept, in order.
*/
func TestValidator_Chain(t *testing.T) {
	err := (&validate.Validator{}).
		Required("token", "").
		Apply("password", validate.KindPassword, "short").
		MaxLen("bio", strings.Repeat("x", 11), 10).
		Err()

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "VALIDATION_ERROR", ae.Code)

	fields := make([]string, 0, len(ae.Details))
	for _, detail := range ae.Details {
		fields = append(fields, detail.Field)
	}
	assert.Equal(t, "token", fields[0])
	assert.Equal(t, "bio", fields[len(fields)-1])
	assert.Greater(t, len(fields), 3)
}

/*
TestValidator_Passing verifies that a clean chain yields no error.
*/
func TestValidator_Passing(t *testing.T) {
	err := (&validate.Validator{}).
		Required("token", "abc").
		Apply("email", validate.KindEmail, "ada@shop.test").
		Apply("phone", validate.KindPhone, "").
		MaxLen("bio", "hello", 10).
		Err()

	assert.NoError(t, err)
}
