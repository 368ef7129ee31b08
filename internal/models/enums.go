package models

import (
	"fmt"
	"strings"
)

// AccountStatus is the challenge state of an account.
// FAILED and PASSED are terminal until the account buys a new challenge.
type AccountStatus string

const (
	StatusActive AccountStatus = "ACTIVE"
	StatusFailed AccountStatus = "FAILED"
	StatusPassed AccountStatus = "PASSED"
)

// Valid reports whether s is one of the known statuses.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusFailed, StatusPassed:
		return true
	}
	return false
}

// Terminal reports whether no further risk evaluation may change s.
func (s AccountStatus) Terminal() bool {
	return s == StatusFailed || s == StatusPassed
}

// Side is the direction of a position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts BUY or SELL in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// ParsePositionStatus accepts OPEN or CLOSED in any case.
func ParsePositionStatus(s string) (PositionStatus, error) {
	switch PositionStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case PositionOpen:
		return PositionOpen, nil
	case PositionClosed:
		return PositionClosed, nil
	}
	return "", fmt.Errorf("unknown position status %q", s)
}
