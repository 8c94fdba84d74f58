package auth

import "errors"

var (
	// ErrInvalidInitData: Telegram initData failed signature or shape checks.
	ErrInvalidInitData = errors.New("invalid authentication data")
	// ErrInvalidToken: session token is malformed, expired or signed with another key.
	ErrInvalidToken = errors.New("invalid session token")
)
