package token

import (
	"errors"
	"math/big"
	"testing"

	"saisen/core/state"
)

type mockState struct {
	tokens     map[string]*state.TokenMetadata
	balances   map[[20]byte]*big.Int
	allowances map[[2][20]byte]*big.Int
	roles      map[string]map[[20]byte]bool
}

func newMockState() *mockState {
	return &mockState{
		tokens:     map[string]*state.TokenMetadata{"JPYC": {Symbol: "JPYC", Name: "JPY Coin", Decimals: 18}},
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[[2][20]byte]*big.Int),
		roles:      make(map[string]map[[20]byte]bool),
	}
}

func (m *mockState) Token(symbol string) (*state.TokenMetadata, error) {
	return m.tokens[symbol], nil
}

func (m *mockState) SetTokenPaused(symbol string, paused bool) error {
	meta, ok := m.tokens[symbol]
	if !ok {
		return errors.New("unknown token")
	}
	meta.Paused = paused
	return nil
}

func (m *mockState) Balance(addr [20]byte, _ string) (*big.Int, error) {
	if balance, ok := m.balances[addr]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) SetBalance(addr [20]byte, _ string, amount *big.Int) error {
	m.balances[addr] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) Allowance(owner, spender [20]byte, _ string) (*big.Int, error) {
	if allowance, ok := m.allowances[[2][20]byte{owner, spender}]; ok {
		return new(big.Int).Set(allowance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) SetAllowance(owner, spender [20]byte, _ string, amount *big.Int) error {
	m.allowances[[2][20]byte{owner, spender}] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) HasRole(role string, addr [20]byte) bool {
	return m.roles[role][addr]
}

func (m *mockState) grant(role string, addr [20]byte) {
	if m.roles[role] == nil {
		m.roles[role] = make(map[[20]byte]bool)
	}
	m.roles[role][addr] = true
}

func testAddr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestMintRequiresRole(t *testing.T) {
	st := newMockState()
	engine := NewEngine(st, "JPYC")
	minter := testAddr(0x01)
	user := testAddr(0x02)

	if err := engine.Mint(minter, user, big.NewInt(100)); !errors.Is(err, ErrNotMinter) {
		t.Fatalf("expected ErrNotMinter, got %v", err)
	}
	st.grant(RoleMinter, minter)
	if err := engine.Mint(minter, user, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	balance, err := engine.BalanceOf(user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100, got %s", balance)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	st := newMockState()
	engine := NewEngine(st, "JPYC")
	spender := testAddr(0x0A)
	payer := testAddr(0x0B)
	treasury := testAddr(0x0C)

	st.balances[payer] = big.NewInt(1000)
	if err := engine.Approve(payer, spender, big.NewInt(600)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := engine.TransferFrom(spender, payer, treasury, big.NewInt(400)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}

	if balance, _ := engine.BalanceOf(payer); balance.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("payer balance = %s, want 600", balance)
	}
	if balance, _ := engine.BalanceOf(treasury); balance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("treasury balance = %s, want 400", balance)
	}
	if allowance, _ := engine.Allowance(payer, spender); allowance.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("allowance = %s, want 200", allowance)
	}

	// Remaining allowance no longer covers another 400.
	err := engine.TransferFrom(spender, payer, treasury, big.NewInt(400))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestTransferFromInsufficientBalance(t *testing.T) {
	st := newMockState()
	engine := NewEngine(st, "JPYC")
	spender := testAddr(0x0A)
	payer := testAddr(0x0B)
	treasury := testAddr(0x0C)

	st.balances[payer] = big.NewInt(50)
	if err := engine.Approve(payer, spender, big.NewInt(1000)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err := engine.TransferFrom(spender, payer, treasury, big.NewInt(100))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if balance, _ := engine.BalanceOf(payer); balance.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("payer balance changed on failed transfer: %s", balance)
	}
}

func TestTransferFromPaused(t *testing.T) {
	st := newMockState()
	engine := NewEngine(st, "JPYC")
	admin := testAddr(0x01)
	spender := testAddr(0x0A)
	payer := testAddr(0x0B)
	treasury := testAddr(0x0C)

	st.grant(RoleAdmin, admin)
	st.balances[payer] = big.NewInt(1000)
	if err := engine.Approve(payer, spender, big.NewInt(1000)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := engine.SetPaused(admin, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	err := engine.TransferFrom(spender, payer, treasury, big.NewInt(100))
	if !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}

	if err := engine.SetPaused(admin, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := engine.TransferFrom(spender, payer, treasury, big.NewInt(100)); err != nil {
		t.Fatalf("transfer after unpause: %v", err)
	}
}

func TestUnknownTokenRejected(t *testing.T) {
	st := newMockState()
	engine := NewEngine(st, "USDC")
	if err := engine.Approve(testAddr(0x01), testAddr(0x02), big.NewInt(1)); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}
