package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolutionErrors(t *testing.T) {
	a := &ResolutionError{RaceID: 1, CompetitorID: 2, Code: "XYZ", Err: ErrUnknownCode}
	b := &ResolutionError{RaceID: 3, CompetitorID: 4, Err: ErrMissingManualValue}

	assert.Nil(t, ResolutionErrors(nil))
	assert.Nil(t, ResolutionErrors(errors.New("other")))
	assert.Equal(t, []*ResolutionError{a}, ResolutionErrors(a))
	assert.Equal(t, []*ResolutionError{a, b}, ResolutionErrors(errors.Join(a, b)))
	assert.Equal(t, []*ResolutionError{a, b},
		ResolutionErrors(fmt.Errorf("series 1: %w", errors.Join(a, b))))
}

func TestResolutionErrorMessage(t *testing.T) {
	assert.Equal(t, "race 1, competitor 2, code XYZ: unknown score code",
		(&ResolutionError{RaceID: 1, CompetitorID: 2, Code: "XYZ", Err: ErrUnknownCode}).Error())
	assert.Equal(t, "race 1, competitor 2: missing manual value",
		(&ResolutionError{RaceID: 1, CompetitorID: 2, Err: ErrMissingManualValue}).Error())
}

func TestIsConfigError(t *testing.T) {
	assert.True(t, IsConfigError(fmt.Errorf("x: %w", ErrCyclicAlias)))
	assert.True(t, IsConfigError(&ResolutionError{Err: ErrUnresolvableDependency}))
	assert.True(t, IsConfigError(&ResolutionError{Err: ErrMissingPlace}))
	assert.False(t, IsConfigError(errors.New("connection refused")))
	assert.False(t, IsConfigError(nil))
}
