package journal

import "encoding/json"

// Record types replay recognizes. Anything else is carried verbatim and
// skipped by recovery.
const (
	TypeOrder  = "order"
	TypeCancel = "cancel"
	TypeState  = "state"
)

// Record is one durable journal entry: an accepted request, or a state
// marker anchoring a snapshot.
type Record struct {
	Type    string          `json:"type"`
	Time    int64           `json:"timestamp"`
	Payload json.RawMessage `json:"payload"`
}

// OrderPayload journals an accepted order request in internal units.
type OrderPayload struct {
	OrderID string `json:"order_id"`
	OwnerID string `json:"owner_id"`
	Side    int    `json:"side"`
	Price   int64  `json:"price"`
	Size    int64  `json:"size"`
}

// CancelPayload journals an accepted cancel request.
type CancelPayload struct {
	OrderID string `json:"order_id"`
	OwnerID string `json:"owner_id"`
}

// StatePayload is the marker value N: the snapshot numbered N+1 was taken
// immediately after this record. Recovery seeks it as the replay anchor.
type StatePayload int64
