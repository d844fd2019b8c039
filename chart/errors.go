// Package chart holds the headless numeric core of the live plot: the sample
// ring buffer, the viewport and its resampling, axis tick planning and the
// pan/zoom/hover controller. Nothing here renders or blocks.
package chart

import "errors"

var (
	ErrInsufficientData   = errors.New("insufficient data")
	ErrInvalidSelection   = errors.New("no valid tag selected")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)
