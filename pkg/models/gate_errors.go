package models

import "errors"

var (
	errGateTerminal          = errors.New("quality gate is in a terminal state")
	errGateIllegalTransition = errors.New("illegal quality gate transition")
)
