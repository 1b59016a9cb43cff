package gym

import "errors"

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrPlanNotFound   = errors.New("plan not found")
	ErrNoPlan         = errors.New("member has no plan")
	ErrPlanExpired    = errors.New("current plan is expired")
	ErrUsernameTaken  = errors.New("username already taken")
)
