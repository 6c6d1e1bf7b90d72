package engine

import (
	"context"
	"strings"

	"github.com/latticeforge/veridian/internal/llm"
)

// labelEntities implements stage 4: if entityList is non-empty, every
// entry is matched case-insensitively as a substring of c.Text and every
// occurrence recorded; otherwise the model's token-classification head
// labels every token and contiguous same-tag runs are coalesced into
// spans, dropping anything tagged "O". Stage 5 (character-to-token
// alignment) happens inline in both branches, since c.Text's offsets are
// derived from c.Tokens by construction (see newChunk).
func labelEntities(
	ctx context.Context, model llm.Model, c chunk, entityList []string,
) ([]entity, error) {

	if len(entityList) > 0 {
		return labelFromList(c, entityList), nil
	}
	return labelFromClassifier(ctx, model, c)
}

// listMatchTag is the entity tag assigned to caller-supplied entity-list
// matches, which carry no type information of their own.
const listMatchTag = "ENTITY"

func labelFromList(c chunk, entityList []string) []entity {
	ranges := tokenCharRanges(c.Tokens)
	lowerText := strings.ToLower(c.Text)

	seen := make(map[[2]int]bool)
	var out []entity

	for _, raw := range entityList {
		needle := strings.ToLower(strings.TrimSpace(raw))
		if needle == "" {
			continue
		}

		searchFrom := 0
		for {
			idx := strings.Index(lowerText[searchFrom:], needle)
			if idx < 0 {
				break
			}
			charStart := searchFrom + idx
			charEnd := charStart + len(needle)
			searchFrom = charEnd

			startTok, endTok, ok := charRangeToTokenSpan(ranges, charStart, charEnd)
			if !ok {
				continue
			}

			key := [2]int{startTok, endTok}
			if seen[key] {
				continue
			}
			seen[key] = true

			out = append(out, entity{
				Text:  c.Text[charStart:charEnd],
				Tag:   listMatchTag,
				Start: startTok,
				End:   endTok,
			})
		}
	}

	return out
}

// charRangeToTokenSpan maps a [charStart, charEnd) character range to the
// inclusive token index span it overlaps, by string-matching over the
// per-token ranges built from the same chunk text.
func charRangeToTokenSpan(ranges []charRange, charStart, charEnd int) (start, end int, ok bool) {
	start, end = -1, -1

	for i, r := range ranges {
		if r.End <= charStart || r.Start >= charEnd {
			continue
		}
		if start == -1 {
			start = i
		}
		end = i
	}

	if start == -1 {
		return 0, 0, false
	}
	return start, end, true
}

func labelFromClassifier(
	ctx context.Context, model llm.Model, c chunk,
) ([]entity, error) {

	labels, err := model.TokenClassification(ctx, c.Tokens)
	if err != nil {
		return nil, err
	}

	byIndex := make(map[int]string, len(labels))
	for _, l := range labels {
		byIndex[l.TokenIndex] = l.Tag
	}

	var out []entity
	var cur *entity

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for i := range c.Tokens {
		tag := byIndex[i]
		if tag == "" {
			tag = "O"
		}

		if tag == "O" {
			flush()
			continue
		}

		if cur != nil && cur.Tag == tag && cur.End == i-1 {
			cur.End = i
			cur.Text = cur.Text + " " + c.Tokens[i].Text
			continue
		}

		flush()
		cur = &entity{Text: c.Tokens[i].Text, Tag: tag, Start: i, End: i}
	}
	flush()

	return out, nil
}
