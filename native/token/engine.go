package token

import (
	"errors"
	"fmt"
	"math/big"

	"saisen/core/state"
)

// Roles gating privileged token operations.
const (
	RoleMinter = "token.minter"
	RoleAdmin  = "token.admin"
)

var (
	ErrNilState              = errors.New("token engine: state not configured")
	ErrUnknownToken          = errors.New("token engine: token not registered")
	ErrPaused                = errors.New("token engine: token paused")
	ErrInsufficientBalance   = errors.New("token engine: insufficient balance")
	ErrInsufficientAllowance = errors.New("token engine: insufficient allowance")
	ErrNotMinter             = errors.New("token engine: caller lacks minter role")
	ErrNotAdmin              = errors.New("token engine: caller lacks admin role")
	ErrInvalidAmount         = errors.New("token engine: amount must be positive")
)

// EngineState describes the functionality the token engine needs from the
// surrounding state implementation.
type EngineState interface {
	Token(symbol string) (*state.TokenMetadata, error)
	SetTokenPaused(symbol string, paused bool) error
	Balance(addr [20]byte, symbol string) (*big.Int, error)
	SetBalance(addr [20]byte, symbol string, amount *big.Int) error
	Allowance(owner, spender [20]byte, symbol string) (*big.Int, error)
	SetAllowance(owner, spender [20]byte, symbol string, amount *big.Int) error
	HasRole(role string, addr [20]byte) bool
}

// Engine implements the value-asset surface the offering router depends on:
// an allowance/approve model with pull payments via TransferFrom.
type Engine struct {
	state  EngineState
	symbol string
}

// NewEngine binds a token engine to the state backend for a single asset
// symbol.
func NewEngine(st EngineState, symbol string) *Engine {
	return &Engine{state: st, symbol: symbol}
}

// Symbol returns the asset symbol the engine operates on.
func (e *Engine) Symbol() string { return e.symbol }

func (e *Engine) metadata() (*state.TokenMetadata, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	meta, err := e.state.Token(e.symbol)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, e.symbol)
	}
	return meta, nil
}

// Mint credits newly issued units to the recipient. Restricted to holders of
// the token minter role; intended for provisioning and dev networks.
func (e *Engine) Mint(caller, to [20]byte, amount *big.Int) error {
	meta, err := e.metadata()
	if err != nil {
		return err
	}
	if meta.Paused {
		return ErrPaused
	}
	if !e.state.HasRole(RoleMinter, caller) {
		return ErrNotMinter
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := e.state.Balance(to, e.symbol)
	if err != nil {
		return err
	}
	return e.state.SetBalance(to, e.symbol, new(big.Int).Add(balance, amount))
}

// Approve sets the amount spender may pull from owner.
func (e *Engine) Approve(owner, spender [20]byte, amount *big.Int) error {
	if _, err := e.metadata(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return e.state.SetAllowance(owner, spender, e.symbol, amount)
}

// Allowance returns the remaining amount spender may pull from owner.
func (e *Engine) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.Allowance(owner, spender, e.symbol)
}

// BalanceOf returns the balance held by addr.
func (e *Engine) BalanceOf(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.Balance(addr, e.symbol)
}

// TransferFrom moves amount from the payer to the recipient on behalf of
// spender, consuming allowance. All failure modes surface as typed errors so
// the router can report the exact reason a pull was rejected.
func (e *Engine) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	meta, err := e.metadata()
	if err != nil {
		return err
	}
	if meta.Paused {
		return ErrPaused
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	allowance, err := e.state.Allowance(from, spender, e.symbol)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance, amount)
	}
	fromBalance, err := e.state.Balance(from, e.symbol)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance, amount)
	}
	if err := e.state.SetAllowance(from, spender, e.symbol, new(big.Int).Sub(allowance, amount)); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	toBalance, err := e.state.Balance(to, e.symbol)
	if err != nil {
		return err
	}
	if err := e.state.SetBalance(from, e.symbol, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return e.state.SetBalance(to, e.symbol, new(big.Int).Add(toBalance, amount))
}

// SetPaused toggles the paused flag. Restricted to the token admin role.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	if _, err := e.metadata(); err != nil {
		return err
	}
	if !e.state.HasRole(RoleAdmin, caller) {
		return ErrNotAdmin
	}
	return e.state.SetTokenPaused(e.symbol, paused)
}
