package control

import "errors"

var (
	ErrDuplicateParameter = errors.New("control: parameter already registered")
	ErrDuplicateModulator = errors.New("control: modulator already registered")
	ErrUnknownParameter   = errors.New("control: unknown parameter")
	ErrUnknownModulator   = errors.New("control: unknown modulator")
	ErrSlotRange          = errors.New("control: slot index out of range")
	ErrSlotOccupied       = errors.New("control: slot already has a modulator")
	ErrSlotEmpty          = errors.New("control: slot has no modulator")
	ErrInvalidRange       = errors.New("control: invalid parameter range")
)
