package symir

// term is one signed additive leaf produced by flattening a chain of
// Add/Sub nodes.
type term struct {
	e    *BV
	sign int
}

func flatten(e *BV, sign int, out *[]term) {
	if e.Kind == KindBin && e.Op == OpAdd {
		flatten(e.X, sign, out)
		flatten(e.Y, sign, out)
		return
	}
	if e.Kind == KindBin && e.Op == OpSub {
		flatten(e.X, sign, out)
		flatten(e.Y, -sign, out)
		return
	}
	*out = append(*out, term{e, sign})
}

// AnalyzeOffset decomposes e as base + constOffset + (possibly some other,
// non-constant terms). ok is false if base does not appear exactly once
// with positive sign among the additive terms of e (e.g. it's missing, or
// the expression isn't a flat sum/difference at all). isBuffer is true when
// e contains an additional non-constant term beyond base — that is, the
// address varies with something other than a fixed offset from the frame
// base, the signature of an indexed/array access rather than a scalar
// local or argument slot.
func AnalyzeOffset(e, base *BV) (offset int64, isBuffer bool, ok bool) {
	var terms []term
	flatten(e, 1, &terms)

	baseFP := Fingerprint(base)
	foundBase := false
	var constSum int64
	hasOther := false

	for _, t := range terms {
		if t.e.Kind == KindConst {
			if t.sign > 0 {
				constSum += int64(t.e.Val)
			} else {
				constSum -= int64(t.e.Val)
			}
			continue
		}
		if Fingerprint(t.e) == baseFP {
			if foundBase {
				return 0, true, false
			}
			foundBase = true
			if t.sign < 0 {
				return 0, true, false
			}
			continue
		}
		hasOther = true
	}

	if !foundBase {
		return 0, false, false
	}
	// Fold the sum into base's width as a two's-complement value, so a
	// displacement such as [ebp-8] (stored as the constant 0xfffffff8)
	// yields -8.
	if w := base.Bits; w > 0 && w < 64 {
		m := int64(1) << uint(w)
		constSum = ((constSum % m) + m) % m
		if constSum >= m/2 {
			constSum -= m
		}
	}
	return constSum, hasOther, true
}

// DependsOn reports whether e references base anywhere in its additive
// decomposition (regardless of buffer-ness).
func DependsOn(e, base *BV) bool {
	_, _, ok := AnalyzeOffset(e, base)
	return ok
}
