package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"saisen/core/events"
	"saisen/core/state"
	"saisen/history"
	"saisen/native/collectible"
	"saisen/native/offering"
	"saisen/native/token"
	"saisen/observability"
	"saisen/storage"
)

var zeroAddress [20]byte

// Config captures the immutable parameters of a node. Addresses and the
// minimum amount mirror the router's construction-time configuration;
// the thresholds feed the treasury monitoring query.
type Config struct {
	Symbol    string
	TokenName string
	Decimals  uint8

	RouterAddress [20]byte
	Beneficiary   [20]byte
	// Operator optionally receives the token minter and admin roles during
	// provisioning, for dev-network faucets and pause control.
	Operator [20]byte

	MinimumAmount      *big.Int
	CollectibleBaseURI string

	TreasuryLowThreshold  *big.Int
	TreasuryHighThreshold *big.Int
}

// TreasuryStatus reports the beneficiary balance against the configured
// alerting thresholds.
type TreasuryStatus struct {
	Balance       *big.Int
	LowThreshold  *big.Int
	HighThreshold *big.Int
	Level         string // "low", "ok", or "high"
}

// Node owns the router state and serializes every state-changing transition
// behind a write lock, running each inside a buffered storage transaction
// that is committed only when the whole transition succeeds. Read-only
// queries take the read lock, so no caller observes a transition between its
// steps. This reproduces the call-level atomicity the router design depends
// on.
type Node struct {
	mu      sync.RWMutex
	db      storage.Database
	history *history.Store
	cfg     Config
	logger  *slog.Logger
	metrics *observability.RouterMetrics
	nowFn   func() int64
}

// NewNode validates the configuration, provisions genesis state (token
// registration and roles) and returns a ready node. hist may be nil when no
// audit persistence is wanted (tests).
func NewNode(db storage.Database, hist *history.Store, cfg Config, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: storage required", offering.ErrInvalidConfiguration)
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("%w: asset symbol required", offering.ErrInvalidConfiguration)
	}
	if cfg.RouterAddress == zeroAddress {
		return nil, fmt.Errorf("%w: router address must not be zero", offering.ErrInvalidConfiguration)
	}
	if cfg.Beneficiary == zeroAddress {
		return nil, fmt.Errorf("%w: beneficiary must not be zero", offering.ErrInvalidConfiguration)
	}
	if cfg.MinimumAmount == nil || cfg.MinimumAmount.Sign() < 0 {
		return nil, fmt.Errorf("%w: minimum amount required", offering.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	node := &Node{
		db:      db,
		history: hist,
		cfg:     cfg,
		logger:  logger,
		metrics: observability.Router(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
	if err := node.provision(); err != nil {
		return nil, err
	}
	return node, nil
}

// SetNowFunc overrides the time source for deterministic tests.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		n.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	n.nowFn = now
}

// provision registers the value asset and grants the router its minter role.
// Idempotent across restarts.
func (n *Node) provision() error {
	manager := state.NewManager(n.db)
	meta, err := manager.Token(n.cfg.Symbol)
	if err != nil {
		return err
	}
	if meta == nil {
		name := n.cfg.TokenName
		if name == "" {
			name = n.cfg.Symbol
		}
		if err := manager.RegisterToken(n.cfg.Symbol, name, n.cfg.Decimals); err != nil {
			return err
		}
	}
	if err := manager.SetRole(collectible.RoleMinter, n.cfg.RouterAddress); err != nil {
		return err
	}
	if n.cfg.Operator != zeroAddress {
		if err := manager.SetRole(token.RoleMinter, n.cfg.Operator); err != nil {
			return err
		}
		if err := manager.SetRole(token.RoleAdmin, n.cfg.Operator); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) routerConfig(asset offering.ValueAsset, issuer offering.Issuer) offering.Config {
	return offering.Config{
		Asset:         asset,
		Issuer:        issuer,
		RouterAddress: n.cfg.RouterAddress,
		Beneficiary:   n.cfg.Beneficiary,
		MinimumAmount: n.cfg.MinimumAmount,
	}
}

func (n *Node) newRouter(manager *state.Manager) (*offering.Router, error) {
	asset := token.NewEngine(manager, n.cfg.Symbol)
	issuer := collectible.NewRegistry(manager, n.cfg.CollectibleBaseURI)
	router, err := offering.NewRouter(n.routerConfig(asset, issuer), manager)
	if err != nil {
		return nil, err
	}
	router.SetNowFunc(n.nowFn)
	return router, nil
}

type eventCollector struct {
	collected []events.Event
}

func (c *eventCollector) Emit(evt events.Event) {
	c.collected = append(c.collected, evt)
}

func offeringOutcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, offering.ErrAmountBelowMinimum):
		return "below_minimum"
	case errors.Is(err, offering.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, offering.ErrIssuanceFailed):
		return "issuance_failed"
	default:
		return "error"
	}
}

// Offer runs one offering transition for payer. The transition either
// commits fully (payment moved, ledger updated, collectible minted when owed,
// outcome record persisted) or leaves no trace.
func (n *Node) Offer(payer [20]byte, amount *big.Int) (*offering.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	txn := storage.NewTxn(n.db)
	defer txn.Discard()

	router, err := n.newRouter(state.NewManager(txn))
	if err != nil {
		return nil, err
	}
	collector := &eventCollector{}
	router.SetEmitter(collector)

	receipt, err := router.Offer(payer, amount)
	if err != nil {
		n.metrics.ObserveOffering(offeringOutcome(err), false)
		n.logger.Info("offering rejected",
			"payer", common.BytesToAddress(payer[:]).Hex(),
			"reason", offeringOutcome(err),
			"error", err.Error(),
		)
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		n.metrics.ObserveOffering("commit_failed", false)
		return nil, fmt.Errorf("commit offering: %w", err)
	}

	n.metrics.ObserveOffering(offeringOutcome(nil), receipt.Minted)
	n.updateTreasuryGauge()
	n.logger.Info("offering recorded",
		"payer", common.BytesToAddress(receipt.Payer[:]).Hex(),
		"amount", receipt.Amount.String(),
		"monthId", receipt.MonthID,
		"minted", receipt.Minted,
	)

	// The audit trail is fed from the emitted outcome events; a history
	// write failure is logged but does not unwind the committed offering.
	if n.history != nil {
		for _, evt := range collector.collected {
			recorded, ok := evt.(events.OfferingRecorded)
			if !ok {
				continue
			}
			if _, err := n.history.Append(history.Record{
				Payer:     common.BytesToAddress(recorded.Payer[:]).Hex(),
				Amount:    recorded.Amount.String(),
				MonthID:   recorded.MonthID,
				Minted:    recorded.Minted,
				Timestamp: n.nowFn(),
			}); err != nil {
				n.logger.Error("append offering history", "error", err.Error())
			}
		}
	}
	return receipt, nil
}

// Approve sets the router's allowance from owner to amount.
func (n *Node) Approve(owner [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	txn := storage.NewTxn(n.db)
	defer txn.Discard()
	engine := token.NewEngine(state.NewManager(txn), n.cfg.Symbol)
	if err := engine.Approve(owner, n.cfg.RouterAddress, amount); err != nil {
		return err
	}
	return txn.Commit()
}

// MintToken credits newly issued asset units to the recipient, gated by the
// token minter role. Intended for dev-network faucets.
func (n *Node) MintToken(caller, to [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	txn := storage.NewTxn(n.db)
	defer txn.Discard()
	engine := token.NewEngine(state.NewManager(txn), n.cfg.Symbol)
	if err := engine.Mint(caller, to, amount); err != nil {
		return err
	}
	return txn.Commit()
}

// --- read-only queries ---

// IsEligibleForMint reports whether payer's next qualifying offering mints.
func (n *Node) IsEligibleForMint(payer [20]byte) (bool, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	router, err := n.newRouter(state.NewManager(n.db))
	if err != nil {
		return false, err
	}
	return router.IsEligibleForMint(payer)
}

// CurrentMonthID returns the month identifier at the time of the call.
func (n *Node) CurrentMonthID() (uint32, error) {
	router, err := n.newRouter(state.NewManager(n.db))
	if err != nil {
		return 0, err
	}
	return router.CurrentMonthID(), nil
}

// LastMintMonthID returns the month of payer's most recent issuance, 0 when
// none.
func (n *Node) LastMintMonthID(payer [20]byte) (uint32, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return state.NewManager(n.db).LastMintedMonth(payer)
}

// MinimumAmount returns the configured offering floor.
func (n *Node) MinimumAmount() *big.Int {
	return new(big.Int).Set(n.cfg.MinimumAmount)
}

// RouterAddress returns the spender identity payers approve.
func (n *Node) RouterAddress() [20]byte { return n.cfg.RouterAddress }

// Beneficiary returns the fixed recipient of all offering value.
func (n *Node) Beneficiary() [20]byte { return n.cfg.Beneficiary }

// Symbol returns the value asset symbol.
func (n *Node) Symbol() string { return n.cfg.Symbol }

// TokenBalance returns addr's value-asset balance.
func (n *Node) TokenBalance(addr [20]byte) (*big.Int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tokenBalance(addr)
}

// tokenBalance reads the balance without locking; callers hold n.mu.
func (n *Node) tokenBalance(addr [20]byte) (*big.Int, error) {
	return state.NewManager(n.db).Balance(addr, n.cfg.Symbol)
}

// TokenAllowance returns the amount the router may still pull from owner.
func (n *Node) TokenAllowance(owner [20]byte) (*big.Int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return state.NewManager(n.db).Allowance(owner, n.cfg.RouterAddress, n.cfg.Symbol)
}

// CollectibleBalance returns how many collectibles addr holds for monthID.
func (n *Node) CollectibleBalance(addr [20]byte, monthID uint32) (uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return state.NewManager(n.db).CollectibleBalance(addr, monthID)
}

// CollectibleURI returns the metadata location for monthID.
func (n *Node) CollectibleURI(monthID uint32) string {
	registry := collectible.NewRegistry(state.NewManager(n.db), n.cfg.CollectibleBaseURI)
	return registry.URI(monthID)
}

// History returns payer's persisted offering records.
func (n *Node) History(payer [20]byte, limit int) ([]history.Record, error) {
	if n.history == nil {
		return nil, nil
	}
	return n.history.ByPayer(common.BytesToAddress(payer[:]).Hex(), limit)
}

// MintedMonths returns the month ids of payer's minted collectibles.
func (n *Node) MintedMonths(payer [20]byte) ([]uint32, error) {
	if n.history == nil {
		return nil, nil
	}
	return n.history.MintedMonths(common.BytesToAddress(payer[:]).Hex())
}

// Treasury reports the beneficiary balance against alerting thresholds.
func (n *Node) Treasury() (*TreasuryStatus, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	balance, err := n.tokenBalance(n.cfg.Beneficiary)
	if err != nil {
		return nil, err
	}
	status := &TreasuryStatus{
		Balance:       balance,
		LowThreshold:  n.cfg.TreasuryLowThreshold,
		HighThreshold: n.cfg.TreasuryHighThreshold,
		Level:         "ok",
	}
	if status.LowThreshold != nil && balance.Cmp(status.LowThreshold) < 0 {
		status.Level = "low"
	} else if status.HighThreshold != nil && balance.Cmp(status.HighThreshold) >= 0 {
		status.Level = "high"
	}
	return status, nil
}

// updateTreasuryGauge runs under the write lock held by Offer.
func (n *Node) updateTreasuryGauge() {
	balance, err := n.tokenBalance(n.cfg.Beneficiary)
	if err != nil {
		return
	}
	n.metrics.SetTreasuryBalance(balance)
}
