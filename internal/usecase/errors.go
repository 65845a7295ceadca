package usecase

import "errors"

// Input and detection failures. Each maps to a fixed client message.
var (
	ErrNoImage               = errors.New("no image provided")
	ErrNoIdentifier          = errors.New("no identifier provided")
	ErrUnknownIdentifier     = errors.New("unknown identifier")
	ErrNoFaceDetected        = errors.New("no face detected")
	ErrMultipleFacesDetected = errors.New("multiple faces detected")
)
