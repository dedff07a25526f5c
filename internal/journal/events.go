package journal

import "encoding/json"

// Kind discriminates journal event payloads.
type Kind string

const (
	KindLockOpened        Kind = "lock_opened"
	KindLockClosed        Kind = "lock_closed"
	KindLockReverted      Kind = "lock_reverted"
	KindAppRegistered     Kind = "app_registered"
	KindDeltaPosted       Kind = "delta_posted"
	KindSynced            Kind = "synced"
	KindSettled           Kind = "settled"
	KindTaken             Kind = "taken"
	KindPoolInitialized   Kind = "pool_initialized"
	KindSwapExecuted      Kind = "swap_executed"
	KindLiquidityModified Kind = "liquidity_modified"
)

// Event is a journal entry as emitted by the settlement components.
// Amounts are decimal strings so arbitrary-precision values survive JSON.
type Event struct {
	Seq     uint64      `json:"seq"`
	Kind    Kind        `json:"kind"`
	At      string      `json:"at"`
	Payload interface{} `json:"payload"`
}

// EventRecord is the read-side form of an Event with the payload left raw
// for kind-directed decoding.
type EventRecord struct {
	Seq     uint64          `json:"seq"`
	Kind    Kind            `json:"kind"`
	At      string          `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// LockPayload covers lock_opened, lock_closed, and lock_reverted.
type LockPayload struct {
	Locker string `json:"locker"`
	Reason string `json:"reason,omitempty"`
}

// AppRegisteredPayload records an app allow-listing.
type AppRegisteredPayload struct {
	App string `json:"app"`
}

// DeltaPostedPayload records an accountAppBalanceDelta call.
type DeltaPostedPayload struct {
	App       string `json:"app"`
	Account   string `json:"account"`
	Currency0 string `json:"currency0"`
	Currency1 string `json:"currency1"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// SyncedPayload records a sync checkpoint.
type SyncedPayload struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

// SettledPayload records a settle and the measured amount credited.
type SettledPayload struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Paid     string `json:"paid"`
}

// TakenPayload records a take and the real outflow it caused.
type TakenPayload struct {
	Account   string `json:"account"`
	Currency  string `json:"currency"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// PoolInitializedPayload records a pool initialization.
type PoolInitializedPayload struct {
	PoolID    string `json:"pool_id"`
	Currency0 string `json:"currency0"`
	Currency1 string `json:"currency1"`
	Fee       uint32 `json:"fee"`
	Price     string `json:"price"`
	Tick      int32  `json:"tick"`
}

// SwapExecutedPayload records a completed swap at the pool manager.
type SwapExecutedPayload struct {
	PoolID          string `json:"pool_id"`
	ZeroForOne      bool   `json:"zero_for_one"`
	AmountSpecified string `json:"amount_specified"`
	Amount0         string `json:"amount0"`
	Amount1         string `json:"amount1"`
}

// LiquidityModifiedPayload records a liquidity change at the pool manager.
type LiquidityModifiedPayload struct {
	PoolID         string `json:"pool_id"`
	TickLower      int32  `json:"tick_lower"`
	TickUpper      int32  `json:"tick_upper"`
	LiquidityDelta string `json:"liquidity_delta"`
	Amount0        string `json:"amount0"`
	Amount1        string `json:"amount1"`
}
