package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Drain reads sr to the end, calling emit for each fragment, and returns the
// concatenated content. sr is closed on return.
func Drain(sr *schema.StreamReader[string], emit func(string)) (string, error) {
	defer sr.Close()
	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
		if emit != nil {
			emit(chunk)
		}
	}
}

// Collect reads sr to the end and returns the concatenated content.
func Collect(sr *schema.StreamReader[string]) (string, error) {
	return Drain(sr, nil)
}

// RunStreaming answers in with a's stream when it has one, calling emit for each
// fragment, and falls back to Run otherwise. The returned Output is the same
// either way.
func RunStreaming(ctx context.Context, a Agent, in Input, emit func(string)) (Output, error) {
	s, ok := a.(Streamer)
	if !ok {
		out, err := a.Run(ctx, in)
		if err == nil && emit != nil {
			emit(out.Content)
		}
		return out, err
	}

	start := time.Now()
	sr, err := s.Stream(ctx, in)
	if err != nil {
		return Output{AgentName: a.Name()}, err
	}
	content, err := Drain(sr, emit)
	out := Output{
		AgentName: a.Name(),
		Content:   content,
		SessionID: in.SessionID,
		Duration:  time.Since(start),
		Markdown:  TraitsOf(a).Markdown,
	}
	return out, err
}
