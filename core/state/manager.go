package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"saisen/storage"
)

// Manager provides typed read/write access to router state stored in a
// key-value database. Keys are prefixed per concern and hashed with
// Keccak-256 before hitting the store; values are RLP encoded.
//
// A Manager bound to a storage.Txn stages every mutation until the owner of
// the transition commits it, which is how the router gets all-or-nothing
// semantics.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// TokenMetadata describes a registered value asset.
type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
	Paused   bool
}

var (
	tokenPrefix       = []byte("token:")
	balancePrefix     = []byte("balance:")
	allowancePrefix   = []byte("allowance:")
	collectiblePrefix = []byte("collectible:")
	rolePrefix        = []byte("role:")
	eligibilityPrefix = []byte("saisen/last-mint/")
)

func tokenMetadataKey(symbol string) []byte {
	buf := make([]byte, 0, len(tokenPrefix)+len(symbol))
	buf = append(buf, tokenPrefix...)
	buf = append(buf, symbol...)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr [20]byte, symbol string) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(symbol)+1+len(addr))
	buf = append(buf, balancePrefix...)
	buf = append(buf, symbol...)
	buf = append(buf, ':')
	buf = append(buf, addr[:]...)
	return ethcrypto.Keccak256(buf)
}

func allowanceKey(owner, spender [20]byte, symbol string) []byte {
	buf := make([]byte, 0, len(allowancePrefix)+len(symbol)+2+2*len(owner))
	buf = append(buf, allowancePrefix...)
	buf = append(buf, symbol...)
	buf = append(buf, ':')
	buf = append(buf, owner[:]...)
	buf = append(buf, ':')
	buf = append(buf, spender[:]...)
	return ethcrypto.Keccak256(buf)
}

func collectibleKey(addr [20]byte, id uint32) []byte {
	buf := make([]byte, 0, len(collectiblePrefix)+len(addr)+5)
	buf = append(buf, collectiblePrefix...)
	buf = append(buf, addr[:]...)
	buf = append(buf, ':')
	buf = append(buf, byte(id>>24), byte(id>>16), byte(id>>8), byte(id))
	return ethcrypto.Keccak256(buf)
}

func roleKey(role string) []byte {
	buf := make([]byte, 0, len(rolePrefix)+len(role))
	buf = append(buf, rolePrefix...)
	buf = append(buf, role...)
	return ethcrypto.Keccak256(buf)
}

func eligibilityKey(addr [20]byte) []byte {
	buf := make([]byte, 0, len(eligibilityPrefix)+len(addr))
	buf = append(buf, eligibilityPrefix...)
	buf = append(buf, addr[:]...)
	return ethcrypto.Keccak256(buf)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (m *Manager) get(key []byte) ([]byte, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// RegisterToken records metadata for a value asset. Registering the same
// symbol twice is an error.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("state: token symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("state: token %s: name must not be empty", normalized)
	}
	if existing, err := m.Token(normalized); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("state: token %s already registered", normalized)
	}
	meta := &TokenMetadata{Symbol: normalized, Name: name, Decimals: decimals}
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	return m.db.Put(tokenMetadataKey(normalized), encoded)
}

// Token retrieves metadata for a registered token, or nil when unknown.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	data, err := m.get(tokenMetadataKey(normalizeSymbol(symbol)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	meta := new(TokenMetadata)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// SetTokenPaused stores the paused flag for the given token.
func (m *Manager) SetTokenPaused(symbol string, paused bool) error {
	normalized := normalizeSymbol(symbol)
	meta, err := m.Token(normalized)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("state: token %s not registered", normalized)
	}
	meta.Paused = paused
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	return m.db.Put(tokenMetadataKey(normalized), encoded)
}

// SetBalance stores an account balance for the provided token.
func (m *Manager) SetBalance(addr [20]byte, symbol string, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative balance not allowed")
	}
	normalized := normalizeSymbol(symbol)
	if meta, err := m.Token(normalized); err != nil {
		return err
	} else if meta == nil {
		return fmt.Errorf("state: token %s not registered", normalized)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(balanceKey(addr, normalized), encoded)
}

// Balance retrieves a token balance for the provided account. Unknown
// accounts hold zero.
func (m *Manager) Balance(addr [20]byte, symbol string) (*big.Int, error) {
	data, err := m.get(balanceKey(addr, normalizeSymbol(symbol)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// SetAllowance stores the amount spender may pull from owner.
func (m *Manager) SetAllowance(owner, spender [20]byte, symbol string, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative allowance not allowed")
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(allowanceKey(owner, spender, normalizeSymbol(symbol)), encoded)
}

// Allowance retrieves the remaining amount spender may pull from owner.
func (m *Manager) Allowance(owner, spender [20]byte, symbol string) (*big.Int, error) {
	data, err := m.get(allowanceKey(owner, spender, normalizeSymbol(symbol)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// SetCollectibleBalance stores the number of collectibles addr holds for the
// given token class.
func (m *Manager) SetCollectibleBalance(addr [20]byte, id uint32, count uint64) error {
	encoded, err := rlp.EncodeToBytes(count)
	if err != nil {
		return err
	}
	return m.db.Put(collectibleKey(addr, id), encoded)
}

// CollectibleBalance retrieves the number of collectibles addr holds for the
// given token class.
func (m *Manager) CollectibleBalance(addr [20]byte, id uint32) (uint64, error) {
	data, err := m.get(collectibleKey(addr, id))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var count uint64
	if err := rlp.DecodeBytes(data, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// SetRole associates an address with the specified role. Duplicate
// assignments are ignored while the stored list remains sorted for
// determinism.
func (m *Manager) SetRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr[:]) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr[:]...))
	sort.Slice(members, func(i, j int) bool {
		return bytes.Compare(members[i], members[j]) < 0
	})
	return m.writeRoleMembers(trimmed, members)
}

// UnsetRole removes an address from the specified role. Removing an absent
// member is a no-op.
func (m *Manager) UnsetRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr[:]) {
			filtered = append(filtered, existing)
		}
	}
	return m.writeRoleMembers(trimmed, filtered)
}

// HasRole reports whether the address holds the given role.
func (m *Manager) HasRole(role string, addr [20]byte) bool {
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr[:]) {
			return true
		}
	}
	return false
}

func (m *Manager) roleMembers(role string) ([][]byte, error) {
	data, err := m.get(roleKey(role))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (m *Manager) writeRoleMembers(role string, members [][]byte) error {
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.db.Put(roleKey(role), encoded)
}

// LastMintedMonth returns the month identifier of the payer's most recent
// collectible issuance, or 0 when the payer has never been issued one.
func (m *Manager) LastMintedMonth(addr [20]byte) (uint32, error) {
	data, err := m.get(eligibilityKey(addr))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var month uint32
	if err := rlp.DecodeBytes(data, &month); err != nil {
		return 0, err
	}
	return month, nil
}

// SetLastMintedMonth records the month identifier of the payer's most recent
// collectible issuance.
func (m *Manager) SetLastMintedMonth(addr [20]byte, month uint32) error {
	encoded, err := rlp.EncodeToBytes(month)
	if err != nil {
		return err
	}
	return m.db.Put(eligibilityKey(addr), encoded)
}
