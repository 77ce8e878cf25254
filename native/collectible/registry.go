package collectible

import (
	"errors"
	"fmt"
	"strconv"
)

// RoleMinter gates mint-by-id issuance; the offering router must hold it.
const RoleMinter = "collectible.minter"

var (
	ErrNilState      = errors.New("collectible registry: state not configured")
	ErrNotMinter     = errors.New("collectible registry: caller lacks minter role")
	ErrInvalidAmount = errors.New("collectible registry: quantity must be positive")
)

// RegistryState describes the functionality the registry needs from the
// surrounding state implementation.
type RegistryState interface {
	CollectibleBalance(addr [20]byte, id uint32) (uint64, error)
	SetCollectibleBalance(addr [20]byte, id uint32, count uint64) error
	HasRole(role string, addr [20]byte) bool
}

// Registry implements a mint-by-id collectible store, one token class per
// calendar month. Minting is deliberately not idempotent per (recipient, id):
// the router's eligibility ledger is the sole guard against double issuance.
type Registry struct {
	state   RegistryState
	baseURI string
}

// NewRegistry binds a registry to the state backend. baseURI anchors the
// metadata location returned by URI.
func NewRegistry(st RegistryState, baseURI string) *Registry {
	return &Registry{state: st, baseURI: baseURI}
}

// Mint issues qty units of the token class id to the recipient. Restricted
// to holders of the collectible minter role.
func (r *Registry) Mint(caller, to [20]byte, id uint32, qty uint64) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if !r.state.HasRole(RoleMinter, caller) {
		return ErrNotMinter
	}
	if qty == 0 {
		return ErrInvalidAmount
	}
	count, err := r.state.CollectibleBalance(to, id)
	if err != nil {
		return err
	}
	return r.state.SetCollectibleBalance(to, id, count+qty)
}

// BalanceOf returns how many units of the token class id addr holds.
func (r *Registry) BalanceOf(addr [20]byte, id uint32) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, ErrNilState
	}
	return r.state.CollectibleBalance(addr, id)
}

// URI returns the metadata location for a token class, formed from the
// configured base URI and the decimal id.
func (r *Registry) URI(id uint32) string {
	if r == nil || r.baseURI == "" {
		return ""
	}
	return fmt.Sprintf("%s%s.json", r.baseURI, strconv.FormatUint(uint64(id), 10))
}
