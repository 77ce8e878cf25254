package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("SAISEN_RPC_TOKEN")

func main() {
	args := os.Args[1:]
	var err error
	rpcEndpoint = defaultRPCEndpoint()
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "offer":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a payer address and an amount.")
			printUsage()
			return
		}
		offer(args[1], args[2])
	case "approve":
		if len(args) < 3 {
			fmt.Println("Error: Please provide an owner address and an amount.")
			printUsage()
			return
		}
		approve(args[1], args[2])
	case "mint":
		if len(args) < 4 {
			fmt.Println("Error: Please provide a caller, a recipient and an amount.")
			printUsage()
			return
		}
		mintToken(args[1], args[2], args[3])
	case "eligible":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		eligible(args[1])
	case "balance":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		balance(args[1])
	case "history":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		limit := 0
		if len(args) >= 3 {
			parsed, err := strconv.Atoi(args[2])
			if err != nil || parsed < 0 {
				fmt.Println("Error: Invalid limit.")
				return
			}
			limit = parsed
		}
		showHistory(args[1], limit)
	case "months":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		mintedMonths(args[1])
	case "month":
		currentMonth()
	case "config":
		showConfig()
	case "treasury":
		treasuryStatus()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func printUsage() {
	fmt.Println("Usage: saisen-cli <command> [arguments]")
	fmt.Println()
	fmt.Println("Mutating commands (offer, approve, mint) require SAISEN_RPC_TOKEN when the node enforces auth.")
	fmt.Println("Commands:")
	fmt.Println("  offer <payer> <amount>        - Forward an offering and report whether a collectible minted")
	fmt.Println("  approve <owner> <amount>      - Approve the router to spend the owner's tokens")
	fmt.Println("  mint <caller> <to> <amount>   - Mint dev-network tokens to an address")
	fmt.Println("  eligible <address>            - Check whether the address would mint this month")
	fmt.Println("  balance <address>             - Show the token balance of an address")
	fmt.Println("  history <address> [limit]     - List recorded offerings for an address")
	fmt.Println("  months <address>              - List months in which the address minted a collectible")
	fmt.Println("  month                         - Show the current month identifier")
	fmt.Println("  config                        - Show the router configuration")
	fmt.Println("  treasury                      - Show the treasury balance and threshold level")
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8645/rpc"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func offer(payer, amount string) {
	result, err := callRPC("saisen_offer", map[string]string{"payer": payer, "amount": amount}, true)
	if err != nil {
		fmt.Printf("Error forwarding offering: %v\n", err)
		return
	}
	var receipt struct {
		Payer   string `json:"payer"`
		Amount  string `json:"amount"`
		MonthID uint32 `json:"monthId"`
		Minted  bool   `json:"minted"`
	}
	if err := json.Unmarshal(result, &receipt); err != nil {
		fmt.Printf("Error decoding receipt: %v\n", err)
		return
	}
	fmt.Printf("Offering recorded for %s\n", receipt.Payer)
	fmt.Printf("  Amount:  %s\n", receipt.Amount)
	fmt.Printf("  Month:   %d\n", receipt.MonthID)
	if receipt.Minted {
		fmt.Println("  Collectible minted for this month.")
	} else {
		fmt.Println("  Already minted this month; offering forwarded only.")
	}
}

func approve(owner, amount string) {
	if _, err := callRPC("token_approve", map[string]string{"owner": owner, "amount": amount}, true); err != nil {
		fmt.Printf("Error approving router: %v\n", err)
		return
	}
	fmt.Printf("Approved router to spend %s on behalf of %s\n", amount, owner)
}

func mintToken(caller, to, amount string) {
	if _, err := callRPC("token_mint", map[string]string{"caller": caller, "to": to, "amount": amount}, true); err != nil {
		fmt.Printf("Error minting tokens: %v\n", err)
		return
	}
	fmt.Printf("Minted %s to %s\n", amount, to)
}

func eligible(addr string) {
	result, err := callRPC("saisen_isEligibleForMint", map[string]string{"address": addr}, false)
	if err != nil {
		fmt.Printf("Error checking eligibility: %v\n", err)
		return
	}
	var ok bool
	if err := json.Unmarshal(result, &ok); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	if ok {
		fmt.Printf("%s is eligible to mint this month.\n", addr)
	} else {
		fmt.Printf("%s has already minted this month.\n", addr)
	}
}

func balance(addr string) {
	result, err := callRPC("token_balanceOf", map[string]string{"address": addr}, false)
	if err != nil {
		fmt.Printf("Error fetching balance: %v\n", err)
		return
	}
	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Printf("Balance of %s: %s\n", addr, value)
}

func showHistory(addr string, limit int) {
	params := map[string]interface{}{"address": addr}
	if limit > 0 {
		params["limit"] = limit
	}
	result, err := callRPC("saisen_history", params, false)
	if err != nil {
		fmt.Printf("Error fetching history: %v\n", err)
		return
	}
	var records []struct {
		ID        string `json:"id"`
		Amount    string `json:"amount"`
		MonthID   uint32 `json:"monthId"`
		Minted    bool   `json:"minted"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(result, &records); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	if len(records) == 0 {
		fmt.Printf("No offerings recorded for %s\n", addr)
		return
	}
	fmt.Printf("Offerings for %s:\n", addr)
	for _, record := range records {
		minted := ""
		if record.Minted {
			minted = " (minted)"
		}
		fmt.Printf("  - month %d: %s%s\n", record.MonthID, record.Amount, minted)
	}
}

func mintedMonths(addr string) {
	result, err := callRPC("saisen_mintedMonths", map[string]string{"address": addr}, false)
	if err != nil {
		fmt.Printf("Error fetching minted months: %v\n", err)
		return
	}
	var months []uint32
	if err := json.Unmarshal(result, &months); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	if len(months) == 0 {
		fmt.Printf("No collectibles minted for %s\n", addr)
		return
	}
	fmt.Printf("Minted months for %s:\n", addr)
	for _, month := range months {
		fmt.Printf("  - %d\n", month)
	}
}

func currentMonth() {
	result, err := callRPC("saisen_currentMonthId", nil, false)
	if err != nil {
		fmt.Printf("Error fetching current month: %v\n", err)
		return
	}
	var month uint32
	if err := json.Unmarshal(result, &month); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Printf("Current month: %d\n", month)
}

func showConfig() {
	result, err := callRPC("saisen_config", nil, false)
	if err != nil {
		fmt.Printf("Error fetching config: %v\n", err)
		return
	}
	var cfg struct {
		AssetSymbol   string `json:"assetSymbol"`
		RouterAddress string `json:"routerAddress"`
		Beneficiary   string `json:"beneficiary"`
		MinimumAmount string `json:"minimumAmount"`
	}
	if err := json.Unmarshal(result, &cfg); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Println("Router configuration:")
	fmt.Printf("  Asset:       %s\n", cfg.AssetSymbol)
	fmt.Printf("  Router:      %s\n", cfg.RouterAddress)
	fmt.Printf("  Beneficiary: %s\n", cfg.Beneficiary)
	fmt.Printf("  Minimum:     %s\n", cfg.MinimumAmount)
}

func treasuryStatus() {
	result, err := callRPC("saisen_treasuryStatus", nil, false)
	if err != nil {
		fmt.Printf("Error fetching treasury status: %v\n", err)
		return
	}
	var status struct {
		Balance       string `json:"balance"`
		LowThreshold  string `json:"lowThreshold"`
		HighThreshold string `json:"highThreshold"`
		Level         string `json:"level"`
	}
	if err := json.Unmarshal(result, &status); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Println("Treasury status:")
	fmt.Printf("  Balance: %s\n", status.Balance)
	fmt.Printf("  Level:   %s\n", status.Level)
	if status.LowThreshold != "" {
		fmt.Printf("  Low threshold:  %s\n", status.LowThreshold)
	}
	if status.HighThreshold != "" {
		fmt.Printf("  High threshold: %s\n", status.HighThreshold)
	}
}

func callRPC(method string, param interface{}, requireAuth bool) (json.RawMessage, error) {
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if param != nil {
		payload["params"] = []interface{}{param}
	} else {
		payload["params"] = []interface{}{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requireAuth && rpcAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from node")
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("error from node: %s", rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
