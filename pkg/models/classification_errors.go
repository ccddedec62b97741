package models

import "errors"

var (
	errMissingCategory      = errors.New("classification result missing required category")
	errConfidenceOutOfRange = errors.New("classification confidence must be finite and within [0,1]")
	errTooManyNextSteps     = errors.New("narrative immediate_next_steps must contain at most 5 items")
)
