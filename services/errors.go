package services

import "errors"

// Domain errors. Handlers translate these into HTTP status codes; anything
// else is treated as an internal error.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrCategoryNotFound   = errors.New("waste category not found")
	ErrDisposalNotFound   = errors.New("waste disposal not found")
	ErrRewardNotFound     = errors.New("reward not found")
	ErrRedemptionNotFound = errors.New("redemption not found")

	ErrManagerNotAssigned        = errors.New("disposal has no assigned manager")
	ErrDisposalNotCompleted      = errors.New("disposal is not completed")
	ErrRewardsAlreadyDistributed = errors.New("rewards already distributed for this disposal")
	ErrInvalidTransition         = errors.New("illegal status transition")
	ErrNotAssignedManager        = errors.New("disposal is assigned to another manager")
	ErrInsufficientPoints        = errors.New("insufficient points")
	ErrRewardUnavailable         = errors.New("reward is not available for redemption")
	ErrInvalidQuantity           = errors.New("quantity must be positive")
)
