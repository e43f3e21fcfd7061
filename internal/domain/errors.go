package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrBettingClosed       = errors.New("betting closed for this match")
	ErrInvalidSelection    = errors.New("selected team is not in this match")
	ErrOddsUnavailable     = errors.New("odds not available for this selection")
	ErrInvalidStake        = errors.New("stake must be positive with at most two decimal places")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAlreadySettled      = errors.New("match already settled")
	ErrBonusAlreadyApplied = errors.New("round bonus already applied")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrLockHeld            = errors.New("lock already held")
)
