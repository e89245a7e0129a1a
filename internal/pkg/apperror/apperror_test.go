package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	errSlotTaken   = New(http.StatusBadRequest, "INVALID_SLOT", "slot has already started")
	errNotOffered  = New(http.StatusBadRequest, "INVALID_SLOT", "slot is not offered")
	errUnknownUser = New(http.StatusNotFound, CodeNotFound, "user not found")
)

func TestIsMatchesOnlyTheSameSentinel(t *testing.T) {
	assert.ErrorIs(t, errSlotTaken, errSlotTaken)
	assert.NotErrorIs(t, errSlotTaken, errNotOffered)
	assert.NotErrorIs(t, errNotOffered, errSlotTaken)
	assert.NotErrorIs(t, errUnknownUser, New(http.StatusNotFound, CodeNotFound, "user not found"))
}

func TestDerivedErrorsKeepTheirSentinel(t *testing.T) {
	detailed := errSlotTaken.WithDetails(map[string]string{"start": "09:00"})
	assert.ErrorIs(t, detailed, errSlotTaken)
	assert.NotErrorIs(t, detailed, errNotOffered)
	assert.Equal(t, http.StatusBadRequest, detailed.Status)
	assert.Nil(t, errSlotTaken.Details)

	// A copy of a copy still points at the original.
	again := detailed.WithDetails("twice")
	assert.ErrorIs(t, again, errSlotTaken)

	cause := errors.New("parse failure")
	reworded := errNotOffered.WithMessage("slot 25:00 is not offered", cause)
	assert.ErrorIs(t, reworded, errNotOffered)
	assert.ErrorIs(t, reworded, cause)
	assert.Equal(t, "slot 25:00 is not offered", reworded.Error())
	assert.Equal(t, "slot is not offered", errNotOffered.Message)

	wrapped := fmt.Errorf("submit: %w", detailed)
	assert.ErrorIs(t, wrapped, errSlotTaken)
	assert.NotErrorIs(t, wrapped, errNotOffered)

	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "INVALID_SLOT", appErr.Code)
}
