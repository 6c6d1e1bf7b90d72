package engine

import (
	"strings"

	"github.com/latticeforge/veridian/internal/llm"
)

// sentenceEnders are the token-final runes that mark a sentence boundary.
// Tokens are already whitespace-split by the upstream tokenizer, so a
// boundary is detected at the token level rather than by re-scanning raw
// text.
const sentenceEnders = ".!?"

// splitSentences groups tokens into sentences, cutting after any token
// whose trailing rune is one of sentenceEnders. A trailing run of such
// tokens with no following content still closes the current sentence.
func splitSentences(tokens []llm.Token) [][]llm.Token {
	if len(tokens) == 0 {
		return nil
	}

	var sentences [][]llm.Token
	var cur []llm.Token

	for _, tok := range tokens {
		cur = append(cur, tok)

		trimmed := strings.TrimRight(tok.Text, "\"')]")
		if trimmed != "" && strings.ContainsRune(sentenceEnders, rune(trimmed[len(trimmed)-1])) {
			sentences = append(sentences, cur)
			cur = nil
		}
	}

	if len(cur) > 0 {
		sentences = append(sentences, cur)
	}

	return sentences
}

// packChunks greedily packs sentences into chunks whose token count never
// exceeds maxTokens. A single sentence that alone exceeds maxTokens is
// hard-split into maxTokens-sized token runs, each becoming its own chunk.
func packChunks(sentences [][]llm.Token, maxTokens int) []chunk {
	if maxTokens <= 0 {
		maxTokens = 512
	}

	var chunks []chunk
	var cur []llm.Token

	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, newChunk(cur))
		cur = nil
	}

	for _, sentence := range sentences {
		if len(sentence) > maxTokens {
			flush()

			for start := 0; start < len(sentence); start += maxTokens {
				end := start + maxTokens
				if end > len(sentence) {
					end = len(sentence)
				}
				chunks = append(chunks, newChunk(sentence[start:end]))
			}
			continue
		}

		if len(cur)+len(sentence) > maxTokens {
			flush()
		}
		cur = append(cur, sentence...)
	}
	flush()

	return chunks
}

// cleanReplacer strips the characters the engine's first stage removes
// before any sentence segmentation or tokenization: embedded newlines and
// null bytes. The upstream tokenizer already splits on whitespace, so this
// only matters for stray control characters a token's surface text still
// carries.
var cleanReplacer = strings.NewReplacer("\n", " ", "\r", " ", "\x00", "")

func newChunk(tokens []llm.Token) chunk {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = cleanReplacer.Replace(t.Text)
	}

	return chunk{Tokens: tokens, Text: strings.Join(words, " ")}
}

// charRange is the half-open [Start, End) character offset a token
// occupies within its chunk's reconstructed Text.
type charRange struct {
	Start int
	End   int
}

// tokenCharRanges returns, for each token in order, the character range it
// occupies in strings.Join(tokenTexts, " "). The caller's chunk.Text must
// have been built the same way (see newChunk) for offsets to line up.
func tokenCharRanges(tokens []llm.Token) []charRange {
	ranges := make([]charRange, len(tokens))

	offset := 0
	for i, t := range tokens {
		ranges[i] = charRange{Start: offset, End: offset + len(t.Text)}
		offset += len(t.Text) + 1 // +1 for the joining space
	}

	return ranges
}
