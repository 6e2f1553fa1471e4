package annotation

import (
	"fmt"
	"sort"

	"github.com/biogo/store/interval"
)

// geneInterval stores a gene in the interval tree. Half-open coordinates.
type geneInterval struct {
	gene *Gene
	uid  uintptr
}

func (i geneInterval) Overlap(b interval.IntRange) bool {
	return i.gene.End > b.Start && i.gene.Start < b.End
}

func (i geneInterval) ID() uintptr {
	return i.uid
}

func (i geneInterval) Range() interval.IntRange {
	return interval.IntRange{Start: i.gene.Start, End: i.gene.End}
}

// span is a query range.
type span struct {
	start, end int
}

func (s span) Overlap(b interval.IntRange) bool {
	return b.End > s.start && b.Start < s.end
}

type chromIndex struct {
	tree  *interval.IntTree
	genes []*Gene // sorted by start, end, ID
	order map[*Gene]int
}

// Index answers overlap queries against an immutable set of genes. It is
// safe for concurrent readers once built.
type Index struct {
	chroms map[string]*chromIndex
	count  int
}

// NewIndex builds an index. Genes keep their relative input order as the
// final tie-break so that query results are deterministic.
func NewIndex(genes []*Gene) (*Index, error) {
	idx := &Index{chroms: make(map[string]*chromIndex)}
	for uid, g := range genes {
		ci, ok := idx.chroms[g.Chrom]
		if !ok {
			ci = &chromIndex{tree: &interval.IntTree{}, order: make(map[*Gene]int)}
			idx.chroms[g.Chrom] = ci
		}
		if err := ci.tree.Insert(geneInterval{gene: g, uid: uintptr(uid)}, false); err != nil {
			return nil, fmt.Errorf("index gene %s: %w", g.ID, err)
		}
		ci.order[g] = uid
		ci.genes = append(ci.genes, g)
		idx.count++
	}
	for _, ci := range idx.chroms {
		ci.tree.AdjustRanges()
		sort.SliceStable(ci.genes, func(i, j int) bool {
			return ci.less(ci.genes[i], ci.genes[j])
		})
	}
	return idx, nil
}

func (ci *chromIndex) less(a, b *Gene) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.End != b.End {
		return a.End < b.End
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return ci.order[a] < ci.order[b]
}

// Overlap returns genes on chrom sharing at least minOverlap bases with
// [start, end), ordered by start, end and ID.
func (idx *Index) Overlap(chrom string, start, end, minOverlap int) []*Gene {
	ci, ok := idx.chroms[chrom]
	if !ok || end <= start {
		return nil
	}
	if minOverlap < 1 {
		minOverlap = 1
	}

	var out []*Gene
	for _, iv := range ci.tree.Get(span{start: start, end: end}) {
		g := iv.(geneInterval).gene
		if min(end, g.End)-max(start, g.Start) >= minOverlap {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return ci.less(out[i], out[j]) })
	return out
}

// Chromosomes returns the indexed chromosome names, sorted.
func (idx *Index) Chromosomes() []string {
	names := make([]string, 0, len(idx.chroms))
	for name := range idx.chroms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Genes returns the genes of one chromosome ordered by position.
func (idx *Index) Genes(chrom string) []*Gene {
	if ci, ok := idx.chroms[chrom]; ok {
		return ci.genes
	}
	return nil
}

// All returns every gene, chromosome by chromosome.
func (idx *Index) All() []*Gene {
	out := make([]*Gene, 0, idx.count)
	for _, chrom := range idx.Chromosomes() {
		out = append(out, idx.chroms[chrom].genes...)
	}
	return out
}

// GeneCount returns the number of indexed genes.
func (idx *Index) GeneCount() int {
	return idx.count
}
