package registry

import "errors"

var (
	// Authentication errors.
	ErrMissingFields   = errors.New("missing wallet, signature, or challenge")
	ErrDuplicateWallet = errors.New("wallet is already connected")
	ErrUnknownPlayer   = errors.New("unknown player")

	// Bet validation errors.
	ErrBetOutOfBounds = errors.New("bet amount outside allowed range")
	ErrBetCooldown    = errors.New("bet requests are rate limited, try again shortly")
	ErrNotInLobby     = errors.New("bets are only accepted during the lobby phase")
)
