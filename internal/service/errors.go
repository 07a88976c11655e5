package service

import "errors"

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrManagerNotFound = errors.New("manager not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidStatus   = errors.New("invalid task status")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the ticket's current state.
	ErrInvalidTransition = errors.New("invalid status transition")
)
