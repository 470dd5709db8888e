package tracker

import "errors"

var (
	ErrDuplicateApplication   = errors.New("driver already has a bus service application")
	ErrInvalidTransition      = errors.New("application has already been decided")
	ErrNotApproved            = errors.New("bus service is not approved")
	ErrNotActive              = errors.New("bus service is not active")
	ErrRouteComputationFailed = errors.New("route computation failed")
	ErrRecordNotFound         = errors.New("bus service not found")
	ErrInvalidPosition        = errors.New("invalid position")
	ErrInvalidApplication     = errors.New("invalid application")
)
