// Package block provides a read-only view of a spliced alignment record:
// its reference span, parsed cigar and introns.
package block

import (
	"errors"
	"fmt"

	"github.com/biogo/hts/sam"

	"github.com/inodb/fixalign/internal/cigar"
)

// ErrMalformed marks a record whose cigar and sequence disagree.
var ErrMalformed = errors.New("malformed alignment record")

// Skip explains why a record is passed through without inspection.
type Skip string

// Pass-through reasons. None means the record is eligible.
const (
	None          Skip = ""
	Unmapped      Skip = "unmapped"
	Supplementary Skip = "supplementary"
	NoCigar       Skip = "no_cigar"
	NoSequence    Skip = "no_sequence"
	NoIntron      Skip = "no_intron"
)

// Classify reports whether rec can be inspected at all.
func Classify(rec *sam.Record) Skip {
	switch {
	case rec.Flags&sam.Unmapped != 0 || rec.Ref == nil || rec.Pos < 0:
		return Unmapped
	case rec.Flags&sam.Supplementary != 0:
		return Supplementary
	case len(rec.Cigar) == 0:
		return NoCigar
	case rec.Seq.Length == 0:
		return NoSequence
	}
	return None
}

// Intron is one N op of an alignment.
type Intron struct {
	Index   int // cigar op index of the N
	Start   int // reference start
	End     int // reference end
	ReadPos int // read position at the intron
}

// Len returns the intron length.
func (i Intron) Len() int {
	return i.End - i.Start
}

// Block is the inspected view of one record.
type Block struct {
	Name    string
	Chrom   string
	Strand  int8
	Start   int
	End     int
	Cigar   cigar.Cigar
	Introns []Intron
	Seq     []byte
}

// New builds the view of an eligible record. The record is not modified.
func New(rec *sam.Record) (*Block, error) {
	if s := Classify(rec); s != None {
		return nil, fmt.Errorf("read %s: %s", rec.Name, s)
	}
	c, err := cigar.FromSAM(rec.Cigar)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", rec.Name, ErrMalformed, err)
	}
	seq := rec.Seq.Expand()
	refSpan, readSpan := c.Lengths()
	if readSpan != len(seq) {
		return nil, fmt.Errorf("read %s: %w: cigar %s covers %d bases, sequence has %d",
			rec.Name, ErrMalformed, c, readSpan, len(seq))
	}

	return &Block{
		Name:    rec.Name,
		Chrom:   rec.Ref.Name(),
		Strand:  rec.Strand(),
		Start:   rec.Pos,
		End:     rec.Pos + refSpan,
		Cigar:   c,
		Introns: Introns(c, rec.Pos),
		Seq:     seq,
	}, nil
}

// Introns walks c once, starting at reference position start, and returns
// one record per N op.
func Introns(c cigar.Cigar, start int) []Intron {
	var out []Intron
	pos, rdp := start, 0
	for k, op := range c {
		if op.Type == cigar.Skipped {
			out = append(out, Intron{Index: k, Start: pos, End: pos + op.Len, ReadPos: rdp})
		}
		if cigar.ConsumesRef(op.Type) {
			pos += op.Len
		}
		if cigar.ConsumesRead(op.Type) {
			rdp += op.Len
		}
	}
	return out
}
