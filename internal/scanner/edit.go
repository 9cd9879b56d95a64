package scanner

import (
	"bytes"
	"fmt"
	"sort"
)

// Edit replaces the [Start, End) range of the ORIGINAL buffer by Text.
// Positions are always expressed against the original buffer, regardless of
// the order edits are applied in. Zero-length edits are pure insertions.
type Edit struct {
	Start int
	End   int
	Text  string
}

// Apply produces the final buffer with every edit applied exactly once.
//
// Edits are applied by splicing from the highest offset toward the lowest:
// since all positions refer to the original buffer, a replacement near the
// end never shifts the positions of pending replacements before it.
//
// The edits must be pairwise non-overlapping. An overlap is a defect in the
// producing stage, not a recoverable condition: Apply fails without
// producing a buffer.
func Apply(original []byte, edits []Edit) ([]byte, error) {
	result, _, err := apply(original, edits)
	return result, err
}

func apply(original []byte, edits []Edit) ([]byte, []int, error) {
	if len(edits) == 0 {
		finalOffsets := make([]int, 0)
		return original, finalOffsets, nil
	}

	// Sort a copy: positions are meaningful, the caller's order is not.
	ordered := make([]int, len(edits))
	for i := range ordered {
		ordered[i] = i
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return edits[ordered[i]].Start < edits[ordered[j]].Start
	})

	// Check the non-overlap invariant before touching the buffer.
	for i := 1; i < len(ordered); i++ {
		prev := edits[ordered[i-1]]
		next := edits[ordered[i]]
		if prev.End > next.Start {
			return nil, nil, fmt.Errorf("%w: [%d,%d) and [%d,%d)",
				ErrOverlappingEdits, prev.Start, prev.End, next.Start, next.End)
		}
	}
	for _, i := range ordered {
		e := edits[i]
		if e.Start < 0 || e.End > len(original) || e.End < e.Start {
			return nil, nil, fmt.Errorf("%w: [%d,%d) outside buffer of %d bytes",
				ErrOverlappingEdits, e.Start, e.End, len(original))
		}
	}

	// Apply back-to-front. For insertions at the same offset, the later one
	// in ascending order is applied first so the listed order is preserved.
	result := bytes.Clone(original)
	for i := len(ordered) - 1; i >= 0; i-- {
		e := edits[ordered[i]]
		var buf bytes.Buffer
		buf.Grow(len(result) - e.Len() + len(e.Text))
		buf.Write(result[:e.Start])
		buf.WriteString(e.Text)
		buf.Write(result[e.End:])
		result = buf.Bytes()
	}

	// Final positions of each edit's text, in the caller's edit order.
	finalOffsets := make([]int, len(edits))
	delta := 0
	for _, i := range ordered {
		e := edits[i]
		finalOffsets[i] = e.Start + delta
		delta += len(e.Text) - e.Len()
	}

	return result, finalOffsets, nil
}

func (e Edit) Len() int {
	return e.End - e.Start
}

// collapseBlankLines squashes runs of blank lines introduced by inserting an
// identifier marker right after an existing blank line. Only the regions
// around the given final offsets are normalized; unrelated text is untouched.
func collapseBlankLines(buffer []byte, offsets []int) []byte {
	// Highest offset first: collapsing shifts everything after it
	ordered := make([]int, len(offsets))
	copy(ordered, offsets)
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	for _, offset := range ordered {
		// Rewind to cover newlines just before the insertion site
		start := offset
		for start > 0 && buffer[start-1] == '\n' {
			start--
		}
		end := offset
		for end < len(buffer) && buffer[end] == '\n' {
			end++
		}
		run := end - start
		if run < 3 {
			continue
		}
		// Keep a single blank line
		var buf bytes.Buffer
		buf.Write(buffer[:start])
		buf.WriteString("\n\n")
		buf.Write(buffer[end:])
		buffer = buf.Bytes()
	}
	return buffer
}
