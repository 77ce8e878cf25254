package offering

import "errors"

var (
	// ErrInvalidConfiguration is returned when a router is constructed with a
	// missing collaborator or a zero beneficiary/router identity.
	ErrInvalidConfiguration = errors.New("offering router: invalid configuration")
	// ErrInvalidPayer is returned when an offering names the zero identity as
	// payer.
	ErrInvalidPayer = errors.New("offering router: payer required")
	// ErrAmountBelowMinimum is returned when an offering is below the
	// configured floor. No state changes.
	ErrAmountBelowMinimum = errors.New("offering router: amount below minimum")
	// ErrTransferFailed wraps a value-asset rejection of the pull payment.
	ErrTransferFailed = errors.New("offering router: transfer failed")
	// ErrIssuanceFailed wraps a collectible registry rejection of the mint.
	// The caller must discard the whole transition, including the transfer.
	ErrIssuanceFailed = errors.New("offering router: issuance failed")
)
