package offering

import (
	"fmt"
	"math/big"
	"time"

	"saisen/core/events"
	"saisen/native/calendar"
)

var zeroAddress [20]byte

// ValueAsset is the narrow surface the router needs from the value-transfer
// adapter: a pull payment on behalf of the router identity.
type ValueAsset interface {
	TransferFrom(spender, from, to [20]byte, amount *big.Int) error
}

// Issuer is the narrow surface the router needs from the collectible
// registry: mint one unit of the month's token class to the payer.
type Issuer interface {
	Mint(caller, to [20]byte, id uint32, qty uint64) error
}

// LedgerState is the per-payer eligibility record: the last month a
// collectible was issued, 0 meaning never.
type LedgerState interface {
	LastMintedMonth(addr [20]byte) (uint32, error)
	SetLastMintedMonth(addr [20]byte, month uint32) error
}

// Config captures the immutable collaborators and parameters of a router.
type Config struct {
	Asset         ValueAsset
	Issuer        Issuer
	RouterAddress [20]byte // spender identity payers approve, holds the minter role
	Beneficiary   [20]byte
	MinimumAmount *big.Int
}

// Receipt is the outcome record of one accepted offering. Field presence
// mirrors the emitted event; indexers depend on it staying stable.
type Receipt struct {
	Payer   [20]byte
	Amount  *big.Int
	MonthID uint32
	Minted  bool
}

// Router decides, exactly once per payer per calendar month, whether an
// offering earns a commemorative collectible, and routes the payment to the
// beneficiary. Every call to Offer is a complete transition: the owner is
// expected to run it inside a state transaction and discard on error.
type Router struct {
	cfg     Config
	ledger  LedgerState
	emitter events.Emitter
	nowFn   func() int64
}

// NewRouter validates the configuration and returns a router bound to the
// eligibility ledger.
func NewRouter(cfg Config, ledger LedgerState) (*Router, error) {
	if cfg.Asset == nil {
		return nil, fmt.Errorf("%w: value asset required", ErrInvalidConfiguration)
	}
	if cfg.Issuer == nil {
		return nil, fmt.Errorf("%w: collectible issuer required", ErrInvalidConfiguration)
	}
	if ledger == nil {
		return nil, fmt.Errorf("%w: eligibility ledger required", ErrInvalidConfiguration)
	}
	if cfg.RouterAddress == zeroAddress {
		return nil, fmt.Errorf("%w: router address must not be zero", ErrInvalidConfiguration)
	}
	if cfg.Beneficiary == zeroAddress {
		return nil, fmt.Errorf("%w: beneficiary must not be zero", ErrInvalidConfiguration)
	}
	if cfg.MinimumAmount == nil || cfg.MinimumAmount.Sign() < 0 {
		return nil, fmt.Errorf("%w: minimum amount required", ErrInvalidConfiguration)
	}
	bound := cfg
	bound.MinimumAmount = new(big.Int).Set(cfg.MinimumAmount)
	return &Router{
		cfg:     bound,
		ledger:  ledger,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}, nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Router) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (r *Router) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// Offer processes a single offering from payer. On success it returns the
// outcome record; any error means the whole transition must be discarded by
// the caller so no partial effects persist.
func (r *Router) Offer(payer [20]byte, amount *big.Int) (*Receipt, error) {
	if payer == zeroAddress {
		return nil, ErrInvalidPayer
	}
	if amount == nil || amount.Cmp(r.cfg.MinimumAmount) < 0 {
		offered := "0"
		if amount != nil {
			offered = amount.String()
		}
		return nil, fmt.Errorf("%w: offered %s, minimum %s", ErrAmountBelowMinimum, offered, r.cfg.MinimumAmount)
	}

	monthID := calendar.MonthID(r.nowFn())

	if err := r.cfg.Asset.TransferFrom(r.cfg.RouterAddress, payer, r.cfg.Beneficiary, amount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	last, err := r.ledger.LastMintedMonth(payer)
	if err != nil {
		return nil, err
	}
	minted := last != monthID
	if minted {
		// Ledger update precedes the mint so any reentrant Offer for the
		// same payer already reads as ineligible.
		if err := r.ledger.SetLastMintedMonth(payer, monthID); err != nil {
			return nil, err
		}
		if err := r.cfg.Issuer.Mint(r.cfg.RouterAddress, payer, monthID, 1); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIssuanceFailed, err)
		}
	}

	receipt := &Receipt{
		Payer:   payer,
		Amount:  new(big.Int).Set(amount),
		MonthID: monthID,
		Minted:  minted,
	}
	r.emitter.Emit(events.OfferingRecorded{
		Payer:   receipt.Payer,
		Amount:  new(big.Int).Set(receipt.Amount),
		MonthID: receipt.MonthID,
		Minted:  receipt.Minted,
	})
	return receipt, nil
}

// CurrentMonthID returns the month identifier derived from the router's time
// source at the moment of the call.
func (r *Router) CurrentMonthID() uint32 {
	return calendar.MonthID(r.nowFn())
}

// IsEligibleForMint reports whether the payer's next qualifying offering in
// the current month would mint a collectible.
func (r *Router) IsEligibleForMint(payer [20]byte) (bool, error) {
	last, err := r.ledger.LastMintedMonth(payer)
	if err != nil {
		return false, err
	}
	return last != r.CurrentMonthID(), nil
}

// LastMintedMonth returns the month of the payer's most recent issuance, 0
// when none.
func (r *Router) LastMintedMonth(payer [20]byte) (uint32, error) {
	return r.ledger.LastMintedMonth(payer)
}

// MinimumAmount returns the configured offering floor.
func (r *Router) MinimumAmount() *big.Int {
	return new(big.Int).Set(r.cfg.MinimumAmount)
}

// Beneficiary returns the fixed recipient of all offering value.
func (r *Router) Beneficiary() [20]byte { return r.cfg.Beneficiary }

// RouterAddress returns the spender identity payers approve.
func (r *Router) RouterAddress() [20]byte { return r.cfg.RouterAddress }
