package cigar

import (
	"fmt"

	"github.com/biogo/hts/sam"
)

var fromSAMType = map[sam.CigarOpType]byte{
	sam.CigarMatch:       Match,
	sam.CigarInsertion:   Insertion,
	sam.CigarDeletion:    Deletion,
	sam.CigarSkipped:     Skipped,
	sam.CigarSoftClipped: SoftClip,
	sam.CigarHardClipped: HardClip,
	sam.CigarPadded:      Padding,
	sam.CigarEqual:       Equal,
	sam.CigarMismatch:    Mismatch,
}

var toSAMType = map[byte]sam.CigarOpType{
	Match:     sam.CigarMatch,
	Insertion: sam.CigarInsertion,
	Deletion:  sam.CigarDeletion,
	Skipped:   sam.CigarSkipped,
	SoftClip:  sam.CigarSoftClipped,
	HardClip:  sam.CigarHardClipped,
	Padding:   sam.CigarPadded,
	Equal:     sam.CigarEqual,
	Mismatch:  sam.CigarMismatch,
}

// Parse parses SAM CIGAR text. "*" and "" give an empty Cigar.
func Parse(s string) (Cigar, error) {
	if s == "" || s == "*" {
		return nil, nil
	}
	sc, err := sam.ParseCigar([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("parse cigar %q: %w", s, err)
	}
	return FromSAM(sc)
}

// MustParse is like Parse but panics on error. Intended for tests and
// literals.
func MustParse(s string) Cigar {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// FromSAM converts a biogo CIGAR. The back-skip op 'B' is not supported.
func FromSAM(sc sam.Cigar) (Cigar, error) {
	ops := make([]Op, 0, len(sc))
	for _, co := range sc {
		t, ok := fromSAMType[co.Type()]
		if !ok {
			return nil, fmt.Errorf("unsupported cigar op %s", co)
		}
		ops = append(ops, Op{Len: co.Len(), Type: t})
	}
	return FromList(ops), nil
}

// ToSAM converts the cigar to its biogo representation.
func (c Cigar) ToSAM() (sam.Cigar, error) {
	sc := make(sam.Cigar, 0, len(c))
	for _, op := range c {
		t, ok := toSAMType[op.Type]
		if !ok {
			return nil, fmt.Errorf("unsupported cigar op %q", op.Type)
		}
		sc = append(sc, sam.NewCigarOp(t, op.Len))
	}
	return sc, nil
}
