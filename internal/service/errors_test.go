package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestDuplicateEmail(t *testing.T) {
	assert.ErrorIs(t, duplicateEmail(fmt.Errorf("update users: %w", gorm.ErrDuplicatedKey)), ErrDuplicateEmail)

	other := errors.New("connection reset")
	assert.Equal(t, other, duplicateEmail(other))
	assert.NoError(t, duplicateEmail(nil))
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{ErrAlreadyApproved, ErrConflict},
		{ErrNotDeleted, ErrConflict},
		{ErrSelfDelete, ErrConflict},
		{ErrProfileIncomplete, ErrValidation},
		{ErrNoProfileImage, ErrNotFound},
		{newValidationError("reason", "required"), ErrValidation},
		{unknownReference("roles", []string{"ghost"}), ErrUnknownReference},
		{fmt.Errorf("wrapped: %w", ErrAlreadyApproved), ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
		})
	}
	assert.False(t, errors.Is(ErrAlreadyApproved, ErrValidation))
}

func TestValidationErrorMessage(t *testing.T) {
	v := &ValidationError{}
	assert.NoError(t, v.orNil())

	v.add("year", "too old")
	v.add("price", "must not be negative")
	v.add("year", "ignored second message")

	var target *ValidationError
	assert.True(t, errors.As(v.orNil(), &target))
	assert.Equal(t, "too old", target.Fields["year"])
	assert.Equal(t, "validation failed: price: must not be negative; year: too old", v.Error())
}
