package offering

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"saisen/core/events"
)

type mockAsset struct {
	balances map[[20]byte]*big.Int
	failWith error
	pulls    int
}

func newMockAsset() *mockAsset {
	return &mockAsset{balances: make(map[[20]byte]*big.Int)}
}

func (m *mockAsset) balance(addr [20]byte) *big.Int {
	if b, ok := m.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (m *mockAsset) TransferFrom(_, from, to [20]byte, amount *big.Int) error {
	if m.failWith != nil {
		return m.failWith
	}
	fromBalance := m.balance(from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance")
	}
	m.pulls++
	m.balances[from] = new(big.Int).Sub(fromBalance, amount)
	m.balances[to] = new(big.Int).Add(m.balance(to), amount)
	return nil
}

type mockIssuer struct {
	minted   map[[20]byte]map[uint32]uint64
	failWith error
	onMint   func()
}

func newMockIssuer() *mockIssuer {
	return &mockIssuer{minted: make(map[[20]byte]map[uint32]uint64)}
}

func (m *mockIssuer) Mint(_, to [20]byte, id uint32, qty uint64) error {
	if m.failWith != nil {
		return m.failWith
	}
	if m.onMint != nil {
		m.onMint()
	}
	if m.minted[to] == nil {
		m.minted[to] = make(map[uint32]uint64)
	}
	m.minted[to][id] += qty
	return nil
}

type mockLedger struct {
	months map[[20]byte]uint32
}

func newMockLedger() *mockLedger {
	return &mockLedger{months: make(map[[20]byte]uint32)}
}

func (m *mockLedger) LastMintedMonth(addr [20]byte) (uint32, error) {
	return m.months[addr], nil
}

func (m *mockLedger) SetLastMintedMonth(addr [20]byte, month uint32) error {
	m.months[addr] = month
	return nil
}

type recordingEmitter struct {
	emitted []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.emitted = append(r.emitted, evt)
}

func testAddr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func unixAt(t *testing.T, value string) int64 {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %s: %v", value, err)
	}
	return parsed.Unix()
}

const minUnits = 115

func newTestRouter(t *testing.T, asset *mockAsset, issuer *mockIssuer, ledger *mockLedger) *Router {
	t.Helper()
	router, err := NewRouter(Config{
		Asset:         asset,
		Issuer:        issuer,
		RouterAddress: testAddr(0xEE),
		Beneficiary:   testAddr(0xFF),
		MinimumAmount: big.NewInt(minUnits),
	}, ledger)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router
}

func TestNewRouterRejectsZeroIdentities(t *testing.T) {
	asset := newMockAsset()
	issuer := newMockIssuer()
	ledger := newMockLedger()
	base := Config{
		Asset:         asset,
		Issuer:        issuer,
		RouterAddress: testAddr(0xEE),
		Beneficiary:   testAddr(0xFF),
		MinimumAmount: big.NewInt(minUnits),
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil asset", func(c *Config) { c.Asset = nil }},
		{"nil issuer", func(c *Config) { c.Issuer = nil }},
		{"zero router address", func(c *Config) { c.RouterAddress = [20]byte{} }},
		{"zero beneficiary", func(c *Config) { c.Beneficiary = [20]byte{} }},
		{"nil minimum", func(c *Config) { c.MinimumAmount = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			if _, err := NewRouter(cfg, ledger); !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}

	if _, err := NewRouter(base, nil); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for nil ledger, got %v", err)
	}
}

func TestOfferBelowMinimum(t *testing.T) {
	asset := newMockAsset()
	issuer := newMockIssuer()
	ledger := newMockLedger()
	router := newTestRouter(t, asset, issuer, ledger)

	payer := testAddr(0x01)
	asset.balances[payer] = big.NewInt(10_000)

	_, err := router.Offer(payer, big.NewInt(minUnits-1))
	if !errors.Is(err, ErrAmountBelowMinimum) {
		t.Fatalf("expected ErrAmountBelowMinimum, got %v", err)
	}
	if asset.pulls != 0 {
		t.Fatal("no transfer may happen for a rejected offering")
	}
	if ledger.months[payer] != 0 {
		t.Fatal("ledger must be untouched for a rejected offering")
	}
}

func TestOfferFirstOfMonthMints(t *testing.T) {
	asset := newMockAsset()
	issuer := newMockIssuer()
	ledger := newMockLedger()
	router := newTestRouter(t, asset, issuer, ledger)
	router.SetNowFunc(func() int64 { return unixAt(t, "2026-01-15T12:00:00Z") })

	emitter := &recordingEmitter{}
	router.SetEmitter(emitter)

	payer := testAddr(0x01)
	asset.balances[payer] = big.NewInt(10_000)

	receipt, err := router.Offer(payer, big.NewInt(minUnits))
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if !receipt.Minted || receipt.MonthID != 202601 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if got := asset.balance(testAddr(0xFF)); got.Cmp(big.NewInt(minUnits)) != 0 {
		t.Fatalf("beneficiary balance = %s, want %d", got, minUnits)
	}
	if issuer.minted[payer][202601] != 1 {
		t.Fatalf("expected exactly one collectible, got %d", issuer.minted[payer][202601])
	}
	if ledger.months[payer] != 202601 {
		t.Fatalf("ledger = %d, want 202601", ledger.months[payer])
	}

	if len(emitter.emitted) != 1 {
		t.Fatalf("expected one event, got %d", len(emitter.emitted))
	}
	recorded, ok := emitter.emitted[0].(events.OfferingRecorded)
	if !ok {
		t.Fatalf("unexpected event type %T", emitter.emitted[0])
	}
	if recorded.Payer != payer || recorded.MonthID != 202601 || !recorded.Minted {
		t.Fatalf("unexpected event payload: %+v", recorded)
	}
}

func TestOfferSecondOfMonthPaysWithoutMint(t *testing.T) {
	asset := newMockAsset()
	issuer := newMockIssuer()
	ledger := newMockLedger()
	router := newTestRouter(t, asset, issuer, ledger)
	router.SetNowFunc(func() int64 { return unixAt(t, "2026-01-15T12:00:00Z") })

	payer := testAddr(0x01)
	asset.balances[payer] = big.NewInt(10_000)

	if _, err := router.Offer(payer, big.NewInt(minUnits)); err != nil {
		t.Fatalf("first offer: %v", err)
	}
	receipt, err := router.Offer(payer, big.NewInt(minUnits))
	if err != nil {
		t.Fatalf("second offer: %v", err)
	}
	if receipt.Minted {
		t.Fatal("second same-month offering must not mint")
	}
	// Payment still moved.
	if got := asset.balance(testAddr(0xFF)); got.Cmp(big.NewInt(2*minUnits)) != 0 {
		t.Fatalf("beneficiary balance = %s, want %d", got, 2*minUnits)
	}
	if issuer.minted[payer][202601] != 1 {
		t.Fatalf("collectible count = %d, want 1", issuer.minted[payer][202601])
	}
}

func TestOfferMintsAgainAfterRollover(t *testing.T) {
	asset := newMockAsset()
	issuer := newMockIssuer()
	ledger := newMockLedger()
	router := newTestRouter(t, asset, issuer, ledger)

	payer := testAddr(0x01)
	asset.balances[payer] = big.NewInt(10_000)

	now := unixAt(t, "2026-01-31T23:59:59Z")
	router.SetNowFunc(func() int64 { return now })
	if _, err := router.Offer(payer, big.NewInt(minUnits)); err != nil {
		t.Fatalf("january offer: %v", err)
	}

	eligible, err := router.IsEligibleForMint(payer)
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if eligible {
		t.Fatal("payer must be ineligible for the rest of january")
	}

	now = unixAt(t, "2026-02-01T00:00:00Z")
	eligible, err = router.IsEligibleForMint(payer)
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if !eligible {
		t.Fatal("payer must regain eligibility at the month boundary")
	}

	receipt, err := router.Offer(payer, big.NewInt(minUnits))
	if err != nil {
		t.Fatalf("february offer: %v", err)
	}
	if !receipt.Minted || receipt.MonthID != 202602 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if issuer.minted[payer][202601] != 1 || issuer.minted[payer][202602] != 1 {
		t.Fatalf("unexpected mint counts: %v", issuer.minted[payer])
	}
}

func TestOfferTransferFailurePropagates(t *testing.T) {
	asset := newMockAsset()
	issuer := newMockIssuer()
	ledger := newMockLedger()
	router := newTestRouter(t, asset, issuer, ledger)

	payer := testAddr(0x01)
	asset.failWith = fmt.Errorf("token paused")

	_, err := router.Offer(payer, big.NewInt(minUnits))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if ledger.months[payer] != 0 {
		t.Fatal("ledger must be untouched when the pull fails")
	}
	if len(issuer.minted) != 0 {
		t.Fatal("nothing may be minted when the pull fails")
	}
}

func TestOfferIssuanceFailurePropagates(t *testing.T) {
	asset := newMockAsset()
	issuer := newMockIssuer()
	issuer.failWith = fmt.Errorf("minter role revoked")
	ledger := newMockLedger()
	router := newTestRouter(t, asset, issuer, ledger)

	payer := testAddr(0x01)
	asset.balances[payer] = big.NewInt(10_000)

	_, err := router.Offer(payer, big.NewInt(minUnits))
	if !errors.Is(err, ErrIssuanceFailed) {
		t.Fatalf("expected ErrIssuanceFailed, got %v", err)
	}
	// The owner of the transition discards all staged effects on error; the
	// full rollback (including the transfer) is covered by the node tests.
}

func TestReentrantOfferCannotDoubleMint(t *testing.T) {
	asset := newMockAsset()
	issuer := newMockIssuer()
	ledger := newMockLedger()
	router := newTestRouter(t, asset, issuer, ledger)
	router.SetNowFunc(func() int64 { return unixAt(t, "2026-01-15T12:00:00Z") })

	payer := testAddr(0x01)
	asset.balances[payer] = big.NewInt(10_000)

	// Hostile issuer re-enters the router for the same payer mid-mint. The
	// ledger was updated before the mint call, so the inner offering must
	// observe an ineligible payer.
	reentered := false
	issuer.onMint = func() {
		if reentered {
			return
		}
		reentered = true
		receipt, err := router.Offer(payer, big.NewInt(minUnits))
		if err != nil {
			t.Fatalf("reentrant offer: %v", err)
		}
		if receipt.Minted {
			t.Fatal("reentrant offering must not mint")
		}
	}

	receipt, err := router.Offer(payer, big.NewInt(minUnits))
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if !receipt.Minted {
		t.Fatal("outer offering should mint")
	}
	if issuer.minted[payer][202601] != 1 {
		t.Fatalf("collectible count = %d, want exactly 1", issuer.minted[payer][202601])
	}
}

func TestOfferRejectsZeroPayer(t *testing.T) {
	router := newTestRouter(t, newMockAsset(), newMockIssuer(), newMockLedger())
	if _, err := router.Offer([20]byte{}, big.NewInt(minUnits)); !errors.Is(err, ErrInvalidPayer) {
		t.Fatalf("expected ErrInvalidPayer, got %v", err)
	}
}

func TestMinimumAmountIsCopied(t *testing.T) {
	router := newTestRouter(t, newMockAsset(), newMockIssuer(), newMockLedger())
	min := router.MinimumAmount()
	min.SetInt64(0)
	if router.MinimumAmount().Cmp(big.NewInt(minUnits)) != 0 {
		t.Fatal("MinimumAmount must return a defensive copy")
	}
}
