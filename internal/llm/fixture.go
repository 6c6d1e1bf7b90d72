package llm

import (
	"context"
	"fmt"
	"strings"
)

// FixtureModel is a deterministic Model implementation for tests: it
// tokenises on whitespace, derives attention weight from token distance,
// and embeds by hashing token text into a fixed-length vector. It performs
// no real inference and is never wired into production start-up.
type FixtureModel struct {
	maxTokens  int
	embedDims  int
	entityTags map[string]string
}

// NewFixtureModel creates a FixtureModel. entityTags maps lowercased
// surface text to the tag TokenClassification should assign it; anything
// not present is tagged "O".
func NewFixtureModel(maxTokens, embedDims int, entityTags map[string]string) *FixtureModel {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if embedDims <= 0 {
		embedDims = 16
	}

	return &FixtureModel{
		maxTokens:  maxTokens,
		embedDims:  embedDims,
		entityTags: entityTags,
	}
}

func (m *FixtureModel) Tokenize(_ context.Context, text string) ([]Token, error) {
	fields := strings.Fields(text)
	tokens := make([]Token, len(fields))
	for i, f := range fields {
		tokens[i] = Token{ID: i, Text: f}
	}

	return tokens, nil
}

func (m *FixtureModel) Detokenize(_ context.Context, tokens []Token) (string, error) {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}

	return strings.Join(words, " "), nil
}

func (m *FixtureModel) MaximumTokens() int {
	return m.maxTokens
}

func (m *FixtureModel) TokenClassification(
	_ context.Context, tokens []Token,
) ([]Label, error) {

	labels := make([]Label, len(tokens))
	for i, t := range tokens {
		tag := "O"
		if mapped, ok := m.entityTags[strings.ToLower(t.Text)]; ok {
			tag = mapped
		}
		labels[i] = Label{TokenIndex: i, Tag: tag}
	}

	return labels, nil
}

// attentionTensor is the raw shape InferenceAttention returns: one head's
// worth of weights, since the fixture only simulates a single head.
type attentionTensor struct {
	weights [][]float32
}

func (m *FixtureModel) InferenceAttention(
	_ context.Context, tokens []Token,
) (any, error) {

	n := len(tokens)
	weights := make([][]float32, n)
	for i := range weights {
		row := make([]float32, n)
		var sum float32
		for j := range row {
			dist := i - j
			if dist < 0 {
				dist = -dist
			}
			// Closer tokens attend more strongly; add 1 so the
			// weight is never zero (keeps the matrix fully
			// connected for beam search to explore).
			w := 1.0 / float32(dist+1)
			row[j] = w
			sum += w
		}
		for j := range row {
			row[j] /= sum
		}
		weights[i] = row
	}

	return &attentionTensor{weights: weights}, nil
}

func (m *FixtureModel) AttentionTensorTo2D(
	_ context.Context, tensor any,
) (AttentionMatrix, error) {

	t, ok := tensor.(*attentionTensor)
	if !ok {
		return nil, fmt.Errorf("unexpected attention tensor type %T", tensor)
	}

	return AttentionMatrix(t.weights), nil
}

func (m *FixtureModel) Embed(_ context.Context, tokens []Token) ([]float32, error) {
	vec := make([]float32, m.embedDims)
	for _, t := range tokens {
		h := fnv32(t.Text)
		for d := 0; d < m.embedDims; d++ {
			vec[d] += float32((h>>uint(d%32))&1) - 0.5
		}
	}

	return vec, nil
}

func (m *FixtureModel) Generate(_ context.Context, prompt string) (string, error) {
	return "summary of: " + prompt, nil
}

func (m *FixtureModel) GenerateStream(
	ctx context.Context, prompt string,
) (<-chan string, error) {

	out := make(chan string)
	go func() {
		defer close(out)

		for _, word := range strings.Fields("summary of: " + prompt) {
			select {
			case out <- word:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// fnv32 is a tiny deterministic string hash (FNV-1a), used only to derive
// reproducible fixture embeddings.
func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}

	return h
}
