package dex

import (
	"errors"

	"github.com/uhyunpark/hyperspot/pkg/app/core/spot"
	"github.com/uhyunpark/hyperspot/pkg/crypto"
)

var (
	ErrInvalidTx      = errors.New("invalid transaction")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrStaleNonce     = errors.New("nonce already used")
	ErrNotAdmin       = errors.New("sender is not the admin")
	ErrNotMatcher     = errors.New("sender is not the matcher")
)

// resultCode labels a failed delivery. Engine errors keep the engine's labels.
func resultCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTx):
		return "invalid_tx"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, crypto.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrStaleNonce):
		return "stale_nonce"
	case errors.Is(err, ErrNotAdmin):
		return "not_admin"
	case errors.Is(err, ErrNotMatcher):
		return "not_matcher"
	}
	return spot.Reason(err)
}
