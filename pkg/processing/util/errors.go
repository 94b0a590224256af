package util

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCode            = errors.New("unknown score code")
	ErrCyclicAlias            = errors.New("cyclic alias")
	ErrUnresolvableDependency = errors.New("unresolvable dependency")
	ErrInvalidDiscardPattern  = errors.New("invalid discard pattern")
	ErrMissingManualValue     = errors.New("missing manual value")
	ErrMissingPlace           = errors.New("missing place")
)

// ResolutionError carries the context needed to show an actionable message
// for a single result that could not be scored.
type ResolutionError struct {
	RaceID       int
	CompetitorID int
	Code         string
	Err          error
}

func (e *ResolutionError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("race %d, competitor %d: %v", e.RaceID, e.CompetitorID, e.Err)
	}
	return fmt.Sprintf("race %d, competitor %d, code %s: %v",
		e.RaceID, e.CompetitorID, e.Code, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ResolutionErrors extracts all ResolutionErrors contained in err.
// Works on wrapped errors and on errors created by errors.Join.
func ResolutionErrors(err error) []*ResolutionError {
	switch x := err.(type) {
	case nil:
		return nil
	case *ResolutionError:
		return []*ResolutionError{x}
	case interface{ Unwrap() []error }:
		ret := make([]*ResolutionError, 0)
		for _, e := range x.Unwrap() {
			ret = append(ret, ResolutionErrors(e)...)
		}
		return ret
	case interface{ Unwrap() error }:
		return ResolutionErrors(x.Unwrap())
	default:
		return nil
	}
}

// IsConfigError reports whether err is caused by the scoring configuration
// (codes, patterns) instead of infrastructure problems.
func IsConfigError(err error) bool {
	for _, e := range []error{
		ErrUnknownCode,
		ErrCyclicAlias,
		ErrUnresolvableDependency,
		ErrInvalidDiscardPattern,
		ErrMissingManualValue,
		ErrMissingPlace,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
