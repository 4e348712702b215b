package targeting

// Select picks the candidate with the widest bounding box. Among equally wide
// candidates the first one in input order wins. ok is false when there are
// no candidates.
func Select(candidates []Candidate) (best Candidate, ok bool) {
	bestWidth := 0
	for _, c := range candidates {
		if w := c.Box.Dx(); !ok || w > bestWidth {
			best = c
			bestWidth = w
			ok = true
		}
	}
	return best, ok
}
