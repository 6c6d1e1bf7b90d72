package pipeline

import (
	"bytes"
	"context"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/latticeforge/veridian/internal/llm"
)

// ingestorBehavior turns raw collected bytes into tokenized documents,
// splitting on blank lines as a sentence/paragraph boundary, and pushes
// each tokenized unit onto the pipeline's shared token channel (the same
// channel SendIngestedTokens writes to), where EngineRunner consumes it.
type ingestorBehavior struct {
	model   llm.Model
	tokenCh chan<- TokenBatch

	healthy atomic.Bool
	events  atomic.Uint64
}

func newIngestorBehavior(
	model llm.Model, tokenCh chan<- TokenBatch,
) *ingestorBehavior {

	b := &ingestorBehavior{model: model, tokenCh: tokenCh}
	b.healthy.Store(true)
	return b
}

func (b *ingestorBehavior) Receive(
	ctx context.Context, msg childMessage,
) fn.Result[childResult] {

	switch m := msg.(type) {
	case ingestMsg:
		for _, chunk := range splitParagraphs(m.data.Data) {
			tokens, err := b.model.Tokenize(ctx, string(chunk))
			if err != nil {
				b.healthy.Store(false)
				log.WarnS(ctx, "ingestor tokenize failed", err,
					"file", m.data.File)
				return fn.Err[childResult](err)
			}
			if len(tokens) == 0 {
				continue
			}

			batch := TokenBatch{
				DocID:     m.data.SourceID,
				DocSource: m.data.DocSource,
				Tokens:    tokens,
			}

			select {
			case b.tokenCh <- batch:
				b.events.Add(1)
			case <-ctx.Done():
				return fn.Err[childResult](ctx.Err())
			}
		}

		return fn.Ok(childResult{Health: HealthHealthy})

	case healthCheckMsg:
		status := HealthHealthy
		if !b.healthy.Load() {
			status = HealthUnhealthy
		}
		return fn.Ok(childResult{Health: status})

	case statsMsg:
		return fn.Ok(childResult{Stats: Statistics{
			TotalEventsReceived: b.events.Load(),
		}})

	case shutdownMsg:
		return fn.Ok(childResult{Health: HealthSuccess})

	default:
		_ = m
		return fn.Err[childResult](errUnhandledChildMessage(msg))
	}
}

// splitParagraphs splits raw document bytes on blank-line boundaries,
// dropping empty fragments.
func splitParagraphs(data []byte) [][]byte {
	parts := bytes.Split(data, []byte("\n\n"))

	out := make([][]byte, 0, len(parts))
	for _, p := range parts {
		p = bytes.TrimSpace(p)
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}
