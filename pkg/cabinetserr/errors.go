// Package cabinetserr defines the sentinel errors raised by the
// clustering engine and its I/O adapters. Callers should compare
// against these with errors.Is after unwrapping, the same way the
// teacher's retriever and embedding interfaces expose sentinels for
// their own terminal conditions.
package cabinetserr

import "errors"

var (
	// ErrInputOpenFailed means the coordinator could not open the
	// input file.
	ErrInputOpenFailed = errors.New("cabinets: input open failed")

	// ErrInputMalformed means the header line was unparsable, or a
	// document line had fewer than S+1 whitespace-separated tokens.
	ErrInputMalformed = errors.New("cabinets: input malformed")

	// ErrOutputWriteFailed means the coordinator could not write the
	// final assignment output.
	ErrOutputWriteFailed = errors.New("cabinets: output write failed")

	// ErrCollectiveFailed means the underlying transport reported a
	// failure during a collective or point-to-point call.
	ErrCollectiveFailed = errors.New("cabinets: collective operation failed")

	// ErrConfigInvalid means C == 0, W > D, or S == 0.
	ErrConfigInvalid = errors.New("cabinets: invalid configuration")
)
