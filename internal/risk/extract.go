package risk

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/pvanko/walletgate/internal/model"
)

// txParams is the first element of eth_sendTransaction-style params.
type txParams struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	GasPrice string `json:"gasPrice"`
	Data     string `json:"data"`
	Input    string `json:"input"`
}

// FromRequest extracts collaborator-shaped fields from an intercepted
// request. Sign-only methods carry no transaction object; their input
// yields zero-valued fields, which the collaborator accepts.
func FromRequest(req *model.InterceptedRequest) TxInput {
	var in TxInput
	if req == nil || len(req.Params) == 0 {
		return in
	}

	var params []json.RawMessage
	if err := json.Unmarshal(req.Params, &params); err != nil || len(params) == 0 {
		return in
	}

	var tx txParams
	if err := json.Unmarshal(params[0], &tx); err != nil {
		return in
	}

	calldata := tx.Data
	if calldata == "" {
		calldata = tx.Input
	}

	in = TxInput{
		From:     strings.ToLower(tx.From),
		To:       strings.ToLower(tx.To),
		Value:    tx.Value,
		GasPrice: tx.GasPrice,
		Input:    calldata,
	}
	if sel := Selector(calldata); sel != "" {
		in.FunctionCalls = []string{sel}
		in.ContractAddress = in.To
	}
	return in
}

// ParseQuantity parses a decimal or 0x-hex quantity (wei values exceed
// uint64, so big.Int). Empty and "0" parse to zero; garbage parses to
// zero rather than failing, matching the collaborator's own coercion.
func ParseQuantity(s string) *big.Int {
	if s == "" || s == "0" {
		return big.NewInt(0)
	}
	v := new(big.Int)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if _, ok := v.SetString(s[2:], 16); !ok {
			return big.NewInt(0)
		}
		return v
	}
	if _, ok := v.SetString(s, 10); !ok {
		return big.NewInt(0)
	}
	return v
}

// Selector returns the 4-byte function selector of calldata ("0x" + 8 hex
// digits), or "" when the calldata carries no function call.
func Selector(calldata string) string {
	if len(calldata) < 10 || !strings.HasPrefix(calldata, "0x") {
		return ""
	}
	return strings.ToLower(calldata[:10])
}
