package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sony/gobreaker/v2"
)

// breakerFailures is the number of consecutive provider failures that opens the circuit.
const breakerFailures = 3

// BreakerModel wraps a chat model so a failing provider is short-circuited
// instead of being hammered by every queued query.
type BreakerModel struct {
	inner  model.ToolCallingChatModel
	gen    *gobreaker.CircuitBreaker[*schema.Message]
	stream *gobreaker.CircuitBreaker[*schema.StreamReader[*schema.Message]]
}

// WithBreaker wraps m with generate and stream circuit breakers.
func WithBreaker(name string, m model.ToolCallingChatModel) *BreakerModel {
	return &BreakerModel{
		inner:  m,
		gen:    gobreaker.NewCircuitBreaker[*schema.Message](breakerSettings(name + "/generate")),
		stream: gobreaker.NewCircuitBreaker[*schema.StreamReader[*schema.Message]](breakerSettings(name + "/stream")),
	}
}

func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		// A cancelled query says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
}

// Generate implements model.BaseChatModel.
func (b *BreakerModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return b.gen.Execute(func() (*schema.Message, error) {
		return b.inner.Generate(ctx, input, opts...)
	})
}

// Stream implements model.BaseChatModel.
func (b *BreakerModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return b.stream.Execute(func() (*schema.StreamReader[*schema.Message], error) {
		return b.inner.Stream(ctx, input, opts...)
	})
}

// WithTools implements model.ToolCallingChatModel. The returned model shares
// this model's breakers.
func (b *BreakerModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := b.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &BreakerModel{inner: inner, gen: b.gen, stream: b.stream}, nil
}

var _ model.ToolCallingChatModel = (*BreakerModel)(nil)
