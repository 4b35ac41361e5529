package godown

import "errors"

var (
	// ErrInvalidBinID is returned when a bin id is missing or non-positive.
	ErrInvalidBinID = errors.New("godown: invalid bin id")
	// ErrInvalidDate is returned when a required date is zero.
	ErrInvalidDate = errors.New("godown: invalid date")
	// ErrNegativeQuantity is returned when bags or net weight are below zero.
	ErrNegativeQuantity = errors.New("godown: negative quantity")
	// ErrWeightlessBags is returned when a positive bag count carries no weight.
	ErrWeightlessBags = errors.New("godown: bags present with zero net weight")
	// ErrBinNotFound is returned when a referenced bin does not exist.
	ErrBinNotFound = errors.New("godown: bin not found")
	// ErrNegativeBalance is returned by strict batch processing when a
	// movement would drive the running balance below zero.
	ErrNegativeBalance = errors.New("godown: movement drives balance negative")
)
