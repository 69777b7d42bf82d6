package types

import "errors"

var (
	// ErrValidation marks a missing selection or invalid amount; never reaches the network
	ErrValidation = errors.New("validation error")

	// ErrNetwork marks a transport failure or non-success response from a collaborator
	ErrNetwork = errors.New("network error")

	// ErrWallet marks a missing, disconnected or rejecting wallet
	ErrWallet = errors.New("wallet error")

	// ErrSwapData marks a collaborator response that lacks required fields
	ErrSwapData = errors.New("swap data error")
)
