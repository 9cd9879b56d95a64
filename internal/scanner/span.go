package scanner

// OverlapTolerance absorbs boundary whitespace when comparing spans.
const OverlapTolerance = 1

// Span is a half-open [Start, End) byte range into the original buffer.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// ContainedIn returns if the span lies inside another, within a tolerance.
func (s Span) ContainedIn(other Span, tolerance int) bool {
	return s.Start >= other.Start-tolerance && s.End <= other.End+tolerance
}

// OverlapLen returns the length of the intersection with another span.
func (s Span) OverlapLen(other Span) int {
	start := max(s.Start, other.Start)
	end := min(s.End, other.End)
	if end < start {
		return 0
	}
	return end - start
}

// SpanSet accumulates the spans already claimed during a scan.
// It is threaded through the scan passes as a value: each pass receives the
// current set and returns the updated one.
type SpanSet []Span

// Claimed returns if a candidate span is already covered: either contained
// in an accepted span (within the tolerance) or overlapping one beyond it.
func (set SpanSet) Claimed(s Span) bool {
	for _, accepted := range set {
		if s.ContainedIn(accepted, OverlapTolerance) {
			return true
		}
		if s.OverlapLen(accepted) > OverlapTolerance {
			return true
		}
	}
	return false
}

// Add records a newly accepted span.
func (set SpanSet) Add(s Span) SpanSet {
	return append(set, s)
}
