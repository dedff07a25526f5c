package types

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolParameters carries the per-pool-type spacing settings plus hook
// permission flags. TickSpacing applies to concentrated-liquidity pools,
// BinStep to bin pools.
type PoolParameters struct {
	TickSpacing int32
	BinStep     uint16
	HookFlags   uint16
}

// PoolKey identifies a pool by its full configuration. Canonical form
// requires Currency0 < Currency1 under the address ordering.
type PoolKey struct {
	Currency0   Currency
	Currency1   Currency
	Fee         uint32
	Parameters  PoolParameters
	Hooks       common.Address
	PoolManager common.Address
}

// PoolID is the content-addressed hash of a canonical PoolKey.
type PoolID = common.Hash

// NewPoolKey builds a PoolKey and validates its canonical currency ordering.
func NewPoolKey(currency0, currency1 Currency, fee uint32, params PoolParameters, hooks, poolManager common.Address) (PoolKey, error) {
	if !currency0.Less(currency1) {
		return PoolKey{}, fmt.Errorf("currencies out of order: %s >= %s", currency0, currency1)
	}
	return PoolKey{
		Currency0:   currency0,
		Currency1:   currency1,
		Fee:         fee,
		Parameters:  params,
		Hooks:       hooks,
		PoolManager: poolManager,
	}, nil
}

// Validate checks the canonical currency ordering on an already-built key.
func (k PoolKey) Validate() error {
	if !k.Currency0.Less(k.Currency1) {
		return fmt.Errorf("currencies out of order: %s >= %s", k.Currency0, k.Currency1)
	}
	return nil
}

// ID derives the pool id as the Keccak-256 digest of the key's canonical
// byte encoding. Identical keys always yield identical ids.
func (k PoolKey) ID() PoolID {
	buf := make([]byte, 0, 92)
	buf = append(buf, k.Currency0.Address().Bytes()...)
	buf = append(buf, k.Currency1.Address().Bytes()...)
	buf = append(buf, k.Hooks.Bytes()...)
	buf = append(buf, k.PoolManager.Bytes()...)
	buf = binary.BigEndian.AppendUint32(buf, k.Fee)
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.Parameters.TickSpacing))
	buf = binary.BigEndian.AppendUint16(buf, k.Parameters.BinStep)
	buf = binary.BigEndian.AppendUint16(buf, k.Parameters.HookFlags)
	return crypto.Keccak256Hash(buf)
}
