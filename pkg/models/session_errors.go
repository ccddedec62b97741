package models

import "errors"

var (
	errUnknownQuestionID        = errors.New("response references a question id not present in the session")
	errSessionIllegalTransition = errors.New("illegal clarification session transition")
)
