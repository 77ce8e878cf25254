package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"saisen/core/types"
)

const (
	// TypeOfferingRecorded is emitted once per accepted offering, whether or
	// not a collectible was minted. Indexers treat this as the canonical
	// audit trail, so the attribute set must stay stable.
	TypeOfferingRecorded = "saisen.offering.recorded"
)

// OfferingRecorded captures the outcome of a single accepted offering.
type OfferingRecorded struct {
	Payer   [20]byte
	Amount  *big.Int
	MonthID uint32
	Minted  bool
}

func (OfferingRecorded) EventType() string { return TypeOfferingRecorded }

func (e OfferingRecorded) Event() *types.Event {
	amount := e.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	return &types.Event{
		Type: TypeOfferingRecorded,
		Attributes: map[string]string{
			"payer":   common.BytesToAddress(e.Payer[:]).Hex(),
			"amount":  amount.String(),
			"monthId": strconv.FormatUint(uint64(e.MonthID), 10),
			"minted":  strconv.FormatBool(e.Minted),
		},
	}
}
