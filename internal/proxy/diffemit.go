package proxy

// diffEmitter implements the diff-emit rule of spec.md §4.5/§9: maintain a
// raw accumulator, re-sanitize the whole thing on every delta, and emit only
// the suffix beyond what was already yielded. Sanitization is boundary
// sensitive (HTML-span removal, LF collapsing) so it cannot be applied
// delta-by-delta without risking either double-emission or dropped
// characters at chunk boundaries — re-running it over the full accumulator
// each time and diffing is what makes the idempotence property in spec.md
// §8 hold.
type diffEmitter struct {
	raw        string
	yieldedLen int
	rewrite    LatexRewriter
}

func newDiffEmitter(rewrite LatexRewriter) *diffEmitter {
	return &diffEmitter{rewrite: rewrite}
}

// Append adds delta to the raw accumulator and returns the newly-visible
// sanitized suffix, if any.
func (d *diffEmitter) Append(delta string) (suffix string, ok bool) {
	if delta == "" {
		return "", false
	}
	return d.SetRaw(d.raw + delta)
}

// SetRaw replaces the whole raw accumulator (rather than appending a
// delta) and returns the newly-visible sanitized suffix. Used by extractors
// that recompute a growing prefix of the upstream text themselves (the
// separator and Google-JSON extractors), rather than forwarding raw deltas
// verbatim.
func (d *diffEmitter) SetRaw(raw string) (suffix string, ok bool) {
	d.raw = raw
	processed := Sanitize(d.raw)
	if d.rewrite != nil {
		processed = d.rewrite(processed)
	}
	if len(processed) <= d.yieldedLen {
		return "", false
	}
	suffix = processed[d.yieldedLen:]
	d.yieldedLen = len(processed)
	return suffix, true
}

// Final returns the fully sanitized cumulative text, for use when a
// terminal flush is needed (spec.md §4.7 step 11).
func (d *diffEmitter) Final() string {
	processed := Sanitize(d.raw)
	if d.rewrite != nil {
		processed = d.rewrite(processed)
	}
	return processed
}
