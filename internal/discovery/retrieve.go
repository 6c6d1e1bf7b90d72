package discovery

import (
	"context"
	"sort"

	"github.com/latticeforge/veridian/internal/llm"
	"github.com/latticeforge/veridian/internal/storage"
)

// retrieveCore implements the Search variant's retrieval loop (spec.md
// §4.5): pagination state transition, query embedding, autogenerated
// suggestions/padding, the similarity-search-or-filter loop grouped by
// sentence, and asynchronous persistence of the fetched rows. traverse,
// when non-nil, is invoked with the page's raw rows so the Traverser
// variant can layer its graph-walk on top without duplicating this loop.
func retrieveCore(
	ctx context.Context, store storage.Storage, model llm.Model,
	state *sessionState, req QueryRequest,
	traverse func(ctx context.Context, rows []storage.DocumentPayload),
) ([]Insight, error) {

	changed := req.Query != state.lastQuery || !samePairs(req.TopPairs, state.lastTopPairs)
	if changed {
		state.offset = 0
		state.pageRank = 1
	} else {
		state.pageRank++
	}
	state.lastQuery = req.Query
	state.lastTopPairs = req.TopPairs

	topPairs := append([]storage.EntityPair(nil), req.TopPairs...)

	if req.Query == "" && len(topPairs) == 0 {
		suggestions, err := store.AutogenerateQueries(ctx, 3)
		if err != nil {
			return nil, err
		}
		return suggestionsToInsights(suggestions), nil
	}

	topPairs = padWithSuggestions(ctx, store, topPairs)

	var queryEmb []float32
	if req.Query != "" {
		tokens, err := model.Tokenize(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		queryEmb, err = model.Embed(ctx, tokens)
		if err != nil {
			return nil, err
		}
	}

	insights := make([]Insight, 0, maxInsightsPerPage)
	seenSentences := make(map[string]int) // sentence -> index into insights
	offset := state.offset

	for len(insights) < maxInsightsPerPage {
		var rows []storage.DocumentPayload
		var err error

		if req.Query == "" && len(topPairs) > 0 {
			rows, err = store.FilterAndQuery(ctx, req.SessionID, topPairs, maxInsightsPerPage, offset)
		} else {
			topPairEmbeddings := buildTopPairEmbeddings(queryEmb, topPairs)
			rows, err = store.SimilaritySearchL2(
				ctx, req.SessionID, req.Query, req.PipelineID,
				queryEmb, maxInsightsPerPage, offset, topPairEmbeddings, req.CollectionID,
			)
		}
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		if traverse != nil {
			traverse(ctx, rows)
		}

		go func(rows []storage.DocumentPayload) {
			if err := store.InsertDiscoveredKnowledge(context.Background(), rows); err != nil {
				log.WarnS(context.Background(), "persisting discovered knowledge failed", err)
			}
		}(rows)

		for _, row := range rows {
			if idx, ok := seenSentences[row.Sentence]; ok {
				insights[idx].Score += row.Score
				continue
			}

			seenSentences[row.Sentence] = len(insights)
			insights = append(insights, Insight{
				Sentence:  row.Sentence,
				Subject:   row.Subject,
				Object:    row.Object,
				DocID:     row.DocID,
				DocSource: row.DocSource,
				EventID:   row.EventID,
				Score:     row.Score,
				Tag:       row.Subject + "-" + row.Object,
			})

			if len(insights) >= maxInsightsPerPage {
				break
			}
		}

		offset += len(rows)
	}

	state.offset = offset

	return insights, nil
}

// padWithSuggestions pads topPairs to 10 entries by repeatedly calling
// autogenerate_queries(1) and appending any pair not already present,
// until 10 pairs are reached or the store stops returning anything new.
func padWithSuggestions(
	ctx context.Context, store storage.Storage, topPairs []storage.EntityPair,
) []storage.EntityPair {

	present := make(map[pairKey]bool, len(topPairs))
	for _, p := range topPairs {
		present[keyOf(p)] = true
	}

	for len(topPairs) < maxInsightsPerPage {
		suggestions, err := store.AutogenerateQueries(ctx, 1)
		if err != nil || len(suggestions) == 0 {
			break
		}

		added := false
		for _, sugg := range suggestions {
			for _, p := range sugg.TopPairs {
				if present[keyOf(p)] {
					continue
				}
				present[keyOf(p)] = true
				topPairs = append(topPairs, p)
				added = true

				if len(topPairs) >= maxInsightsPerPage {
					return topPairs
				}
			}
		}
		if !added {
			break
		}
	}

	return topPairs
}

// buildTopPairEmbeddings derives, per pair, 2*queryEmb +
// 0.5*(subjectEmb+objectEmb), the biased vector similarity_search_l2
// uses to favor documents touching the pair's endpoints.
func buildTopPairEmbeddings(queryEmb []float32, pairs []storage.EntityPair) [][]float32 {
	if len(queryEmb) == 0 {
		return nil
	}

	out := make([][]float32, 0, len(pairs))
	for _, p := range pairs {
		if len(p.SubjectEmbed) != len(queryEmb) || len(p.ObjectEmbed) != len(queryEmb) {
			continue
		}

		vec := make([]float32, len(queryEmb))
		for i := range vec {
			vec[i] = 2*queryEmb[i] + 0.5*(p.SubjectEmbed[i]+p.ObjectEmbed[i])
		}
		out = append(out, vec)
	}

	return out
}

func suggestionsToInsights(suggestions []storage.QuerySuggestion) []Insight {
	out := make([]Insight, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, Insight{
			Sentence: s.Query,
			Tag:      autogenSuggestionTag,
		})
	}
	return out
}

// extractTraversalPairs implements the Traverser variant's pair
// extraction: rows with cosine distance <= pairCosineDistanceCap, sorted
// ascending, capped at maxTraversalPairs.
func extractTraversalPairs(rows []storage.DocumentPayload) map[pairKey]storage.EntityPair {
	filtered := make([]storage.DocumentPayload, 0, len(rows))
	for _, r := range rows {
		if r.CosineDistance <= pairCosineDistanceCap {
			filtered = append(filtered, r)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CosineDistance < filtered[j].CosineDistance
	})

	if len(filtered) > maxTraversalPairs {
		filtered = filtered[:maxTraversalPairs]
	}

	out := make(map[pairKey]storage.EntityPair, len(filtered))
	for _, r := range filtered {
		p := storage.EntityPair{Subject: r.Subject, Object: r.Object}
		out[keyOf(p)] = p
	}

	return out
}
