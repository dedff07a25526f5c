package types

import "github.com/ethereum/go-ethereum/common"

// Currency is an opaque handle to a fungible asset. The zero address is the
// native-asset sentinel.
type Currency struct {
	addr common.Address
}

// NewCurrency wraps a token address as a Currency.
func NewCurrency(addr common.Address) Currency {
	return Currency{addr: addr}
}

// NativeCurrency returns the native-asset sentinel currency.
func NativeCurrency() Currency {
	return Currency{}
}

// Address returns the underlying asset address.
func (c Currency) Address() common.Address {
	return c.addr
}

// IsNative reports whether the currency is the native-asset sentinel.
func (c Currency) IsNative() bool {
	return c.addr == (common.Address{})
}

// Less reports whether c sorts before other under the address ordering.
func (c Currency) Less(other Currency) bool {
	return c.addr.Cmp(other.addr) < 0
}

func (c Currency) String() string {
	return c.addr.Hex()
}
