// Package scenario loads and executes declarative settlement scenarios: a
// JSON document describing tokens, pools, and an ordered list of operations
// to drive through the vault.
package scenario

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
)

// Pool kinds.
const (
	KindCL  = "cl"
	KindBin = "bin"
)

// Step operations.
const (
	OpMint         = "mint"
	OpRebase       = "rebase"
	OpAddLiquidity = "add_liquidity"
	OpBinLiquidity = "bin_liquidity"
	OpSwap         = "swap"
	OpBinSwap      = "bin_swap"
)

// Document is a complete scenario description.
type Document struct {
	Name   string      `json:"name"`
	Tokens []TokenSpec `json:"tokens"`
	Pools  []PoolSpec  `json:"pools"`
	Steps  []Step      `json:"steps"`
}

// TokenSpec declares a synthetic token. Address is optional; unset addresses
// are assigned deterministically in declaration order.
type TokenSpec struct {
	Symbol          string `json:"symbol"`
	Address         string `json:"address,omitempty"`
	Decimals        uint8  `json:"decimals"`
	TransferFeeBips uint32 `json:"transfer_fee_bips,omitempty"`
	BurnBips        uint32 `json:"burn_bips,omitempty"`
	Rebasing        bool   `json:"rebasing,omitempty"`
}

// PoolSpec declares a pool on one of the two manager variants. Price is the
// initial currency1-per-currency0 ratio for CL pools; bin pools start at
// ActiveBin (the parity bin when zero).
type PoolSpec struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Currency0   string `json:"currency0"`
	Currency1   string `json:"currency1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing,omitempty"`
	BinStep     uint16 `json:"bin_step,omitempty"`
	PriceNum    int64  `json:"price_num,omitempty"`
	PriceDen    int64  `json:"price_den,omitempty"`
	ActiveBin   uint32 `json:"active_bin,omitempty"`
}

// Step is one scenario operation. Which fields apply depends on Op; amounts
// are decimal strings, signed where the operation is signed.
type Step struct {
	Op      string `json:"op"`
	Pool    string `json:"pool,omitempty"`
	Token   string `json:"token,omitempty"`
	Account string `json:"account,omitempty"`
	Amount  string `json:"amount,omitempty"`

	TickLower int32  `json:"tick_lower,omitempty"`
	TickUpper int32  `json:"tick_upper,omitempty"`
	Liquidity string `json:"liquidity,omitempty"`

	BinID      uint32 `json:"bin_id,omitempty"`
	Amount0    string `json:"amount0,omitempty"`
	Amount1    string `json:"amount1,omitempty"`
	BurnShares string `json:"burn_shares,omitempty"`

	ZeroForOne bool   `json:"zero_for_one,omitempty"`
	MinOut     string `json:"min_out,omitempty"`
	MaxIn      string `json:"max_in,omitempty"`
	LimitBin   uint32 `json:"limit_bin,omitempty"`

	RebaseNum int64 `json:"rebase_num,omitempty"`
	RebaseDen int64 `json:"rebase_den,omitempty"`

	// ExpectError marks a step that must fail; the run aborts if it
	// succeeds.
	ExpectError bool `json:"expect_error,omitempty"`
}

// Load reads and validates a scenario document from a JSON file.
func Load(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read scenario: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("parse scenario: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Validate checks internal consistency of the document.
func (d Document) Validate() error {
	if len(d.Tokens) == 0 {
		return fmt.Errorf("scenario declares no tokens")
	}

	symbols := make(map[string]struct{}, len(d.Tokens))
	for i, spec := range d.Tokens {
		if spec.Symbol == "" {
			return fmt.Errorf("token %d has no symbol", i)
		}
		if _, dup := symbols[spec.Symbol]; dup {
			return fmt.Errorf("duplicate token symbol %q", spec.Symbol)
		}
		symbols[spec.Symbol] = struct{}{}
		if spec.Rebasing && (spec.TransferFeeBips != 0 || spec.BurnBips != 0) {
			return fmt.Errorf("token %q: rebasing tokens cannot also skim transfers", spec.Symbol)
		}
	}

	pools := make(map[string]struct{}, len(d.Pools))
	for i, spec := range d.Pools {
		if spec.Name == "" {
			return fmt.Errorf("pool %d has no name", i)
		}
		if _, dup := pools[spec.Name]; dup {
			return fmt.Errorf("duplicate pool name %q", spec.Name)
		}
		pools[spec.Name] = struct{}{}

		if spec.Kind != KindCL && spec.Kind != KindBin {
			return fmt.Errorf("pool %q: unknown kind %q", spec.Name, spec.Kind)
		}
		if _, ok := symbols[spec.Currency0]; !ok {
			return fmt.Errorf("pool %q: unknown currency0 %q", spec.Name, spec.Currency0)
		}
		if _, ok := symbols[spec.Currency1]; !ok {
			return fmt.Errorf("pool %q: unknown currency1 %q", spec.Name, spec.Currency1)
		}
		if spec.Currency0 == spec.Currency1 {
			return fmt.Errorf("pool %q: identical currencies", spec.Name)
		}
		if spec.PriceDen < 0 || spec.PriceNum < 0 {
			return fmt.Errorf("pool %q: negative price", spec.Name)
		}
	}

	for i, step := range d.Steps {
		if err := validateStep(step, symbols, pools); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, symbols, pools map[string]struct{}) error {
	switch step.Op {
	case OpMint:
		if _, ok := symbols[step.Token]; !ok {
			return fmt.Errorf("unknown token %q", step.Token)
		}
		if step.Account == "" {
			return fmt.Errorf("mint needs an account")
		}
		if _, err := parseAmount(step.Amount); err != nil {
			return err
		}
	case OpRebase:
		if _, ok := symbols[step.Token]; !ok {
			return fmt.Errorf("unknown token %q", step.Token)
		}
		if step.RebaseNum <= 0 || step.RebaseDen <= 0 {
			return fmt.Errorf("rebase factor must be positive")
		}
	case OpAddLiquidity, OpBinLiquidity, OpSwap, OpBinSwap:
		if _, ok := pools[step.Pool]; !ok {
			return fmt.Errorf("unknown pool %q", step.Pool)
		}
		if step.Account == "" {
			return fmt.Errorf("%s needs an account", step.Op)
		}
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// parseAmount parses a required decimal string.
func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("missing amount")
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return parsed, nil
}

// parseOptionalAmount parses a decimal string, returning nil when unset.
func parseOptionalAmount(value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	return parseAmount(value)
}
