package engine

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/pipeline"
	"github.com/latticeforge/veridian/internal/storage"
)

// Engine is the attention-based extraction engine: the concrete
// pipeline.Extractor that chunks a document's tokens, labels entities,
// enumerates candidate pairs, runs attention-guided beam search to find
// the predicate connecting each pair, and emits graph triples plus biased
// sentence embeddings.
type Engine struct {
	model      llm.Model
	entityList []string
	cfg        Config
}

// NewEngine constructs an Engine. entityList, when non-empty, is matched
// literally against chunk text instead of relying on the model's
// token-classification head (stage 4's two labeling strategies).
func NewEngine(model llm.Model, entityList []string, cfg Config) *Engine {
	return &Engine{model: model, entityList: entityList, cfg: cfg.withDefaults()}
}

// Extract implements pipeline.Extractor. tokens have already been
// tokenized by the pipeline's Ingestor (or handed in directly via
// SendIngestedTokens); Extract picks up at sentence-segmentation and
// chunk-packing, since the upstream tokens already satisfy the engine's
// own tokenization stage.
func (e *Engine) Extract(
	ctx context.Context, docID, docSource string, tokens []llm.Token,
) (pipeline.Extraction, error) {

	var out pipeline.Extraction

	sentences := splitSentences(tokens)
	chunks := packChunks(sentences, e.model.MaximumTokens())

	for _, c := range chunks {
		if len(c.Tokens) == 0 {
			continue
		}

		entities, err := labelEntities(ctx, e.model, c, e.entityList)
		if err != nil {
			log.WarnS(ctx, "entity labeling failed", err, "doc_id", docID)
			continue
		}
		if len(entities) < 2 {
			continue
		}

		ranges := tokenCharRanges(c.Tokens)
		pairs := enumeratePairs(entities, ranges, e.cfg)
		if len(pairs) == 0 {
			continue
		}

		rawAttn, err := e.model.InferenceAttention(ctx, c.Tokens)
		if err != nil {
			log.WarnS(ctx, "attention inference failed", err, "doc_id", docID)
			continue
		}
		matrix, err := e.model.AttentionTensorTo2D(ctx, rawAttn)
		if err != nil {
			log.WarnS(ctx, "attention reduction failed", err, "doc_id", docID)
			continue
		}

		sentenceEmb, err := e.model.Embed(ctx, c.Tokens)
		if err != nil {
			log.WarnS(ctx, "sentence embedding failed", err, "doc_id", docID)
			continue
		}

		for _, p := range pairs {
			graphRow, vectorRow, ok, err := e.extractPair(
				ctx, docID, docSource, c, p, matrix, sentenceEmb,
			)
			if err != nil {
				log.WarnS(ctx, "pair extraction failed", err,
					"doc_id", docID, "subject", p.Head.Text, "object", p.Tail.Text)
				continue
			}
			if !ok {
				continue
			}

			out.Graph = append(out.Graph, graphRow)
			out.Vectors = append(out.Vectors, vectorRow)
		}
	}

	return out, nil
}

// extractPair runs stages 8-9 for a single entity pair: beam search for
// the connecting predicate, then the graph triple and biased embedding it
// yields. ok is false when the beam search found no path reaching the
// tail entity, in which case the pair contributes nothing.
func (e *Engine) extractPair(
	ctx context.Context, docID, docSource string, c chunk, p pair,
	matrix llm.AttentionMatrix, sentenceEmb []float32,
) (storage.GraphRow, storage.VectorRow, bool, error) {

	relationTokens, score, found := searchPredicate(matrix, p, e.cfg)
	if !found {
		return storage.GraphRow{}, storage.VectorRow{}, false, nil
	}

	predicateTokens := make([]llm.Token, len(relationTokens))
	for i, idx := range relationTokens {
		predicateTokens[i] = c.Tokens[idx]
	}

	predicateText, err := e.model.Detokenize(ctx, predicateTokens)
	if err != nil {
		return storage.GraphRow{}, storage.VectorRow{}, false, err
	}

	headTokens := c.Tokens[p.Head.Start : p.Head.End+1]
	tailTokens := c.Tokens[p.Tail.Start : p.Tail.End+1]

	headEmb, err := e.model.Embed(ctx, headTokens)
	if err != nil {
		return storage.GraphRow{}, storage.VectorRow{}, false, err
	}
	tailEmb, err := e.model.Embed(ctx, tailTokens)
	if err != nil {
		return storage.GraphRow{}, storage.VectorRow{}, false, err
	}

	var predicateEmb []float32
	if len(predicateTokens) > 0 {
		predicateEmb, err = e.model.Embed(ctx, predicateTokens)
		if err != nil {
			return storage.GraphRow{}, storage.VectorRow{}, false, err
		}
	}

	headAttn := matrix[p.Head.Start][p.Tail.Start]
	tailAttn := matrix[p.Tail.Start][p.Head.Start]

	embedding := biasedEmbedding(sentenceEmb, headEmb, tailEmb, predicateEmb, headAttn, tailAttn, score)

	eventID := uuid.NewString()

	graphRow := storage.GraphRow{
		DocID:     docID,
		DocSource: docSource,
		Knowledge: storage.SemanticKnowledge{
			Subject:       p.Head.Text,
			SubjectType:   p.Head.Tag,
			Predicate:     predicateText,
			PredicateType: "relation",
			Object:        p.Tail.Text,
			ObjectType:    p.Tail.Tag,
			Sentence:      c.Text,
			SourceID:      docID,
			EventID:       eventID,
		},
	}

	vectorRow := storage.VectorRow{
		DocID:     docID,
		DocSource: docSource,
		Payload: storage.VectorPayload{
			EventID:    eventID,
			Embeddings: embedding,
			Score:      score,
		},
	}

	return graphRow, vectorRow, true, nil
}

// biasedEmbedding computes sentence_emb + head_attn*head_emb +
// tail_attn*tail_emb + score*predicate_emb, L2-normalised. Vectors
// shorter than the sentence embedding (predicateEmb is absent when the
// predicate is empty) contribute nothing past their own length.
func biasedEmbedding(
	sentenceEmb, headEmb, tailEmb, predicateEmb []float32,
	headAttn, tailAttn, score float32,
) []float32 {

	out := make([]float32, len(sentenceEmb))
	copy(out, sentenceEmb)

	addScaled := func(v []float32, scale float32) {
		for i := 0; i < len(v) && i < len(out); i++ {
			out[i] += scale * v[i]
		}
	}

	addScaled(headEmb, headAttn)
	addScaled(tailEmb, tailAttn)
	addScaled(predicateEmb, score)

	return l2Normalize(out)
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}

	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
