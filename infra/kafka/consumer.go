package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchd/domain/orderbook"
	"matchd/scale"
	"matchd/service"
)

// Inbound request types.
const (
	reqOrder  = "order"
	reqCancel = "cancel"
	reqState  = "state"
)

type inboundRequest struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type inboundOrder struct {
	OrderID string          `json:"order_id"`
	OwnerID string          `json:"owner_id"`
	Side    int             `json:"side"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
}

type inboundCancel struct {
	OrderID string `json:"order_id"`
	OwnerID string `json:"owner_id"`
}

type inboundState struct {
	RequesterID string `json:"requester_id"`
}

// Submitter hands a decoded request to the matching core.
type Submitter interface {
	Submit(ctx context.Context, req service.Request) error
}

// Consumer reads order-entry requests off kafka and feeds them to the
// matcher. Malformed or unknown requests are logged and dropped; the
// matcher never sees anything it cannot apply.
type Consumer struct {
	reader *kafka.Reader
	sc     scale.Scale
	m      Submitter
	log    *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, sc scale.Scale, m Submitter, log *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		sc:  sc,
		m:   m,
		log: log,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("kafka: read request: %w", err)
		}
		if err := c.handle(ctx, msg.Value); err != nil {
			if errors.Is(err, service.ErrNotRunning) || errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.Warn("dropping request",
				zap.ByteString("raw", msg.Value),
				zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw []byte) error {
	var req inboundRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch req.Type {
	case reqOrder:
		var in inboundOrder
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return fmt.Errorf("decode order: %w", err)
		}
		place, err := c.toPlaceOrder(in)
		if err != nil {
			return err
		}
		return c.m.Submit(ctx, place)
	case reqCancel:
		var in inboundCancel
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return fmt.Errorf("decode cancel: %w", err)
		}
		if in.OrderID == "" || in.OwnerID == "" {
			return fmt.Errorf("cancel missing order_id or owner_id")
		}
		return c.m.Submit(ctx, service.CancelOrder{OrderID: in.OrderID, OwnerID: in.OwnerID})
	case reqState:
		var in inboundState
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return fmt.Errorf("decode state query: %w", err)
		}
		return c.m.Submit(ctx, service.StateQuery{RequesterID: in.RequesterID})
	default:
		return fmt.Errorf("unknown request type %q", req.Type)
	}
}

func (c *Consumer) toPlaceOrder(in inboundOrder) (service.PlaceOrder, error) {
	if in.OrderID == "" || in.OwnerID == "" {
		return service.PlaceOrder{}, fmt.Errorf("order missing order_id or owner_id")
	}
	if in.Side != 0 && in.Side != 1 {
		return service.PlaceOrder{}, fmt.Errorf("order side %d out of range", in.Side)
	}
	price, err := c.sc.PriceTicks(in.Price)
	if err != nil {
		return service.PlaceOrder{}, err
	}
	size, err := c.sc.SizeLots(in.Size)
	if err != nil {
		return service.PlaceOrder{}, err
	}
	if price < 0 {
		return service.PlaceOrder{}, fmt.Errorf("order price %s is negative", in.Price)
	}
	if size <= 0 {
		return service.PlaceOrder{}, fmt.Errorf("order size %s is not positive", in.Size)
	}
	return service.PlaceOrder{
		OrderID: in.OrderID,
		OwnerID: in.OwnerID,
		Side:    orderbook.Side(in.Side),
		Price:   price,
		Size:    size,
	}, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
