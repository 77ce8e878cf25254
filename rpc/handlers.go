package rpc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type offerParams struct {
	Payer  string `json:"payer"`
	Amount string `json:"amount"`
}

type approveParams struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

type mintParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type addressParams struct {
	Address string `json:"address"`
}

type historyParams struct {
	Address string `json:"address"`
	Limit   int    `json:"limit,omitempty"`
}

type collectibleParams struct {
	Address string `json:"address,omitempty"`
	MonthID uint32 `json:"monthId"`
}

type offerResult struct {
	Payer   string `json:"payer"`
	Amount  string `json:"amount"`
	MonthID uint32 `json:"monthId"`
	Minted  bool   `json:"minted"`
}

type configResult struct {
	AssetSymbol   string `json:"assetSymbol"`
	RouterAddress string `json:"routerAddress"`
	Beneficiary   string `json:"beneficiary"`
	MinimumAmount string `json:"minimumAmount"`
}

type treasuryResult struct {
	Balance       string `json:"balance"`
	LowThreshold  string `json:"lowThreshold,omitempty"`
	HighThreshold string `json:"highThreshold,omitempty"`
	Level         string `json:"level"`
}

func parseAddressParam(field, value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, fmt.Errorf("%s required", field)
	}
	if !common.IsHexAddress(trimmed) {
		return out, fmt.Errorf("%s is not a valid hex address", field)
	}
	copy(out[:], common.HexToAddress(trimmed).Bytes())
	return out, nil
}

func parseAmountParam(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative decimal integer", field)
	}
	return amount, nil
}

func (s *Server) dispatch(req *rpcRequest) (interface{}, *rpcError) {
	switch req.Method {
	case "saisen_offer":
		return s.handleOffer(req)
	case "token_approve":
		return s.handleApprove(req)
	case "token_mint":
		return s.handleMint(req)
	case "saisen_isEligibleForMint":
		return s.handleIsEligible(req)
	case "saisen_currentMonthId":
		return s.handleCurrentMonthID()
	case "saisen_lastMintMonthId":
		return s.handleLastMintMonthID(req)
	case "saisen_minimumAmount":
		return s.node.MinimumAmount().String(), nil
	case "saisen_config":
		return s.handleConfig()
	case "saisen_history":
		return s.handleHistory(req)
	case "saisen_mintedMonths":
		return s.handleMintedMonths(req)
	case "saisen_treasuryStatus":
		return s.handleTreasury()
	case "token_balanceOf":
		return s.handleTokenBalance(req)
	case "token_allowance":
		return s.handleTokenAllowance(req)
	case "collectible_balanceOf":
		return s.handleCollectibleBalance(req)
	case "collectible_uri":
		return s.handleCollectibleURI(req)
	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

func (s *Server) handleOffer(req *rpcRequest) (interface{}, *rpcError) {
	var params offerParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	payer, err := parseAddressParam("payer", params.Payer)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmountParam("amount", params.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	receipt, err := s.node.Offer(payer, amount)
	if err != nil {
		return nil, serverError(err)
	}
	return offerResult{
		Payer:   common.BytesToAddress(receipt.Payer[:]).Hex(),
		Amount:  receipt.Amount.String(),
		MonthID: receipt.MonthID,
		Minted:  receipt.Minted,
	}, nil
}

func (s *Server) handleApprove(req *rpcRequest) (interface{}, *rpcError) {
	var params approveParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	owner, err := parseAddressParam("owner", params.Owner)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmountParam("amount", params.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.Approve(owner, amount); err != nil {
		return nil, serverError(err)
	}
	return true, nil
}

func (s *Server) handleMint(req *rpcRequest) (interface{}, *rpcError) {
	var params mintParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddressParam("caller", params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	to, err := parseAddressParam("to", params.To)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmountParam("amount", params.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.MintToken(caller, to, amount); err != nil {
		return nil, serverError(err)
	}
	return true, nil
}

func (s *Server) handleIsEligible(req *rpcRequest) (interface{}, *rpcError) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	addr, err := parseAddressParam("address", params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	eligible, err := s.node.IsEligibleForMint(addr)
	if err != nil {
		return nil, serverError(err)
	}
	return eligible, nil
}

func (s *Server) handleCurrentMonthID() (interface{}, *rpcError) {
	monthID, err := s.node.CurrentMonthID()
	if err != nil {
		return nil, serverError(err)
	}
	return monthID, nil
}

func (s *Server) handleLastMintMonthID(req *rpcRequest) (interface{}, *rpcError) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	addr, err := parseAddressParam("address", params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	monthID, err := s.node.LastMintMonthID(addr)
	if err != nil {
		return nil, serverError(err)
	}
	return monthID, nil
}

func (s *Server) handleConfig() (interface{}, *rpcError) {
	router := s.node.RouterAddress()
	beneficiary := s.node.Beneficiary()
	return configResult{
		AssetSymbol:   s.node.Symbol(),
		RouterAddress: common.BytesToAddress(router[:]).Hex(),
		Beneficiary:   common.BytesToAddress(beneficiary[:]).Hex(),
		MinimumAmount: s.node.MinimumAmount().String(),
	}, nil
}

func (s *Server) handleHistory(req *rpcRequest) (interface{}, *rpcError) {
	var params historyParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	addr, err := parseAddressParam("address", params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	records, err := s.node.History(addr, params.Limit)
	if err != nil {
		return nil, serverError(err)
	}
	return records, nil
}

func (s *Server) handleMintedMonths(req *rpcRequest) (interface{}, *rpcError) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	addr, err := parseAddressParam("address", params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	months, err := s.node.MintedMonths(addr)
	if err != nil {
		return nil, serverError(err)
	}
	return months, nil
}

func (s *Server) handleTreasury() (interface{}, *rpcError) {
	status, err := s.node.Treasury()
	if err != nil {
		return nil, serverError(err)
	}
	result := treasuryResult{
		Balance: status.Balance.String(),
		Level:   status.Level,
	}
	if status.LowThreshold != nil {
		result.LowThreshold = status.LowThreshold.String()
	}
	if status.HighThreshold != nil {
		result.HighThreshold = status.HighThreshold.String()
	}
	return result, nil
}

func (s *Server) handleTokenBalance(req *rpcRequest) (interface{}, *rpcError) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	addr, err := parseAddressParam("address", params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	balance, err := s.node.TokenBalance(addr)
	if err != nil {
		return nil, serverError(err)
	}
	return balance.String(), nil
}

func (s *Server) handleTokenAllowance(req *rpcRequest) (interface{}, *rpcError) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	owner, err := parseAddressParam("address", params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	allowance, err := s.node.TokenAllowance(owner)
	if err != nil {
		return nil, serverError(err)
	}
	return allowance.String(), nil
}

func (s *Server) handleCollectibleBalance(req *rpcRequest) (interface{}, *rpcError) {
	var params collectibleParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	addr, err := parseAddressParam("address", params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	if params.MonthID == 0 {
		return nil, invalidParams(fmt.Errorf("monthId required"))
	}
	count, err := s.node.CollectibleBalance(addr, params.MonthID)
	if err != nil {
		return nil, serverError(err)
	}
	return count, nil
}

func (s *Server) handleCollectibleURI(req *rpcRequest) (interface{}, *rpcError) {
	var params collectibleParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	if params.MonthID == 0 {
		return nil, invalidParams(fmt.Errorf("monthId required"))
	}
	return s.node.CollectibleURI(params.MonthID), nil
}
