package cabinetserr

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinels_SurviveWrapping(t *testing.T) {
	cases := []error{
		ErrInputOpenFailed,
		ErrInputMalformed,
		ErrOutputWriteFailed,
		ErrCollectiveFailed,
		ErrConfigInvalid,
	}
	for _, want := range cases {
		wrapped := fmt.Errorf("context: %w", want)
		if !errors.Is(wrapped, want) {
			t.Errorf("expected errors.Is to find %v through wrapping", want)
		}
	}
}

func TestSentinels_AreDistinct(t *testing.T) {
	cases := []error{
		ErrInputOpenFailed,
		ErrInputMalformed,
		ErrOutputWriteFailed,
		ErrCollectiveFailed,
		ErrConfigInvalid,
	}
	for i := range cases {
		for j := range cases {
			if i == j {
				continue
			}
			if errors.Is(cases[i], cases[j]) {
				t.Errorf("expected %v and %v to be distinct sentinels", cases[i], cases[j])
			}
		}
	}
}
