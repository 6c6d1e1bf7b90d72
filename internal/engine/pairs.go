package engine

// enumeratePairs implements stage 6: every ordered binary entity pair
// within one chunk, skipping pairs where either entity is tagged UNK,
// pairs whose token spans overlap, and pairs whose start offsets (in the
// chunk's reconstructed text) are more than cfg.MaxPairCharDistance
// characters apart.
func enumeratePairs(entities []entity, ranges []charRange, cfg Config) []pair {
	var pairs []pair

	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			head, tail := entities[i], entities[j]
			if head.Start > tail.Start {
				head, tail = tail, head
			}

			if head.Tag == unknownTag || tail.Tag == unknownTag {
				continue
			}
			if spansOverlap(head, tail) {
				continue
			}

			headStart := ranges[head.Start].Start
			tailStart := ranges[tail.Start].Start
			dist := headStart - tailStart
			if dist < 0 {
				dist = -dist
			}
			if dist > cfg.MaxPairCharDistance {
				continue
			}

			pairs = append(pairs, pair{Head: head, Tail: tail})
		}
	}

	return pairs
}

func spansOverlap(a, b entity) bool {
	lo := a.Start
	if b.Start > lo {
		lo = b.Start
	}
	hi := a.End
	if b.End < hi {
		hi = b.End
	}
	return lo <= hi
}
