// Package annotation provides the transcript annotation model and an
// overlap index used to find annotated exons hidden inside read introns.
package annotation

import "sort"

// Exon is a half-open [Start, End) span on the reference.
type Exon struct {
	Start int
	End   int
}

// Len returns the exon length.
func (e Exon) Len() int {
	return e.End - e.Start
}

// Gene is an annotated transcript model (one BED12 record).
type Gene struct {
	ID     string
	Chrom  string
	Strand int8 // 1, -1, or 0 when unknown
	Start  int
	End    int
	Exons  []Exon // ascending, non-overlapping
}

// StrandString returns "+", "-" or ".".
func (g *Gene) StrandString() string {
	return FormatStrand(g.Strand)
}

// FormatStrand renders a strand as "+", "-" or ".".
func FormatStrand(s int8) string {
	switch s {
	case 1:
		return "+"
	case -1:
		return "-"
	}
	return "."
}

// ExonsWithin returns exons lying strictly inside (start, end), i.e.
// Start > start and End < end, whose length is at most maxLen.
func (g *Gene) ExonsWithin(start, end, maxLen int) []Exon {
	var out []Exon
	for _, e := range g.Exons {
		if e.Start <= start {
			continue
		}
		if e.End >= end {
			break
		}
		if e.Len() <= maxLen {
			out = append(out, e)
		}
	}
	return out
}

// LeftExonEnd returns the end of the nearest exon ending at or before pos.
func (g *Gene) LeftExonEnd(pos int) (int, bool) {
	// first exon whose end is past pos
	i := sort.Search(len(g.Exons), func(i int) bool { return g.Exons[i].End > pos })
	if i == 0 {
		return 0, false
	}
	return g.Exons[i-1].End, true
}

// RightExonStart returns the start of the nearest exon starting at or after
// pos.
func (g *Gene) RightExonStart(pos int) (int, bool) {
	i := sort.Search(len(g.Exons), func(i int) bool { return g.Exons[i].Start >= pos })
	if i == len(g.Exons) {
		return 0, false
	}
	return g.Exons[i].Start, true
}
