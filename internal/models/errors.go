package models

import "errors"

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrRuleSetNotFound  = errors.New("no active rule set for account")
	ErrPositionNotFound = errors.New("position not found")
	ErrPositionClosed   = errors.New("position is already closed")
	ErrUsernameTaken    = errors.New("username already registered")
)
