package ocr

import (
	"slices"
	"strings"

	"screenpilot/internal/detector"
)

// interpret turns recognized words into a label. Text spanning several lines
// reads as an editable text box, a single line as a static label. When the
// mean confidence is below minConfidence the text is kept but no kind is
// offered.
func interpret(words []Word, minConfidence float64) detector.Label {
	if len(words) == 0 {
		return detector.Label{Kind: detector.KindUnknown}
	}

	lines := groupLines(words)
	parts := make([]string, 0, len(lines))
	var total float64
	for _, line := range lines {
		texts := make([]string, len(line))
		for i, w := range line {
			texts[i] = w.Text
			total += w.Confidence
		}
		parts = append(parts, strings.Join(texts, " "))
	}
	conf := min(1, max(0, total/float64(len(words))/100))

	label := detector.Label{
		Kind:       detector.KindLabel,
		Confidence: conf,
		Text:       strings.Join(parts, "\n"),
	}
	if len(lines) > 1 {
		label.Kind = detector.KindTextBox
	}
	if conf < minConfidence {
		label.Kind = detector.KindUnknown
	}
	return label
}

// groupLines clusters words into lines by vertical centre, then orders each
// line left to right. A word joins the current line when its centre lies
// within half the line's first word height.
func groupLines(words []Word) [][]Word {
	sorted := slices.Clone(words)
	slices.SortStableFunc(sorted, func(a, b Word) int {
		return centreY(a) - centreY(b)
	})

	var lines [][]Word
	var current []Word
	for _, w := range sorted {
		if len(current) > 0 {
			first := current[0]
			tolerance := max(first.Bounds.Height/2, 1)
			if centreY(w)-centreY(first) > tolerance {
				lines = append(lines, current)
				current = nil
			}
		}
		current = append(current, w)
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}

	for _, line := range lines {
		slices.SortStableFunc(line, func(a, b Word) int {
			return a.Bounds.X - b.Bounds.X
		})
	}
	return lines
}

func centreY(w Word) int {
	return w.Bounds.Y + w.Bounds.Height/2
}
