package service

import "matchd/domain/orderbook"

// Request is the closed set of inbound request kinds. The matcher
// switches over it exhaustively; an unhandled kind is a compile-time
// hole, not a runtime lookup miss.
type Request interface {
	isRequest()
}

// PlaceOrder submits a limit order. Price and Size are already in
// internal units; the transport converts at the boundary.
type PlaceOrder struct {
	OrderID string
	OwnerID string
	Side    orderbook.Side
	Price   int64
	Size    int64
}

// CancelOrder asks to remove a resting order. Only OwnerID may cancel it.
type CancelOrder struct {
	OrderID string
	OwnerID string
}

// StateQuery snapshots the book and replies with the full state.
type StateQuery struct {
	RequesterID string
}

func (PlaceOrder) isRequest()  {}
func (CancelOrder) isRequest() {}
func (StateQuery) isRequest()  {}
