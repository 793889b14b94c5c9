// Package feed defines the outward message shapes published on the
// public market-data feed and sent as per-owner replies. Feed messages
// carry a strictly increasing seq assigned by the matcher; replies are
// addressed by target_id and carry no seq.
package feed

// Message types.
const (
	TypeOrderStatus  = "order_status"
	TypeMatch        = "match"
	TypeCancelReject = "cancel_reject"
	TypeFill         = "fill"
	TypeState        = "state"
)

// Order statuses.
const (
	StatusReceived = "received"
	StatusOpen     = "open"
	StatusDone     = "done"
)

// Cancel reject reasons.
const (
	RejectNotFound     = "not_found"
	RejectInvalidOwner = "invalid_owner"
)

// Message is the envelope for both feed and reply traffic.
type Message struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ProductID string `json:"product_id,omitempty"`
	Seq       uint64 `json:"seq,omitempty"`
	TargetID  string `json:"target_id,omitempty"`
	Payload   any    `json:"payload"`
}

// OrderStatusPayload reports an order lifecycle transition. Price and
// Size are external decimal strings; Size on a done status is the
// remaining size at the time the order left the book.
type OrderStatusPayload struct {
	Status  string `json:"status"`
	Side    int    `json:"side"`
	OrderID string `json:"order_id"`
	OwnerID string `json:"owner_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Reason  string `json:"reason,omitempty"`
}

// MatchPayload reports one fill. Price is the provider's (resting)
// price.
type MatchPayload struct {
	ID              string `json:"id"`
	TakerID         string `json:"taker_id"`
	ProviderID      string `json:"provider_id"`
	TakerOwnerID    string `json:"taker_owner_id"`
	ProviderOwnerID string `json:"provider_owner_id"`
	Size            string `json:"size"`
	Price           string `json:"price"`
	ProviderSide    int    `json:"provider_side"`
}

// FillPayload is the per-owner notification of a fill on their order.
// Liquidity is "taker" or "provider".
type FillPayload struct {
	OrderID   string `json:"order_id"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Liquidity string `json:"liquidity"`
}

// CancelRejectPayload tells the requester why a cancel did nothing.
type CancelRejectPayload struct {
	OrderID      string `json:"order_id"`
	RejectReason string `json:"reject_reason"`
}

// Publisher fans a feed message out to the market-data channel. The
// matching core calls into it and nothing more; distribution semantics
// live elsewhere.
type Publisher interface {
	Publish(msg Message) error
}

// Replier delivers a message to the connection owned by msg.TargetID.
type Replier interface {
	Reply(msg Message) error
}
