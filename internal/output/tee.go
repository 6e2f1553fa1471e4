package output

import "github.com/inodb/fixalign/internal/fixer"

// TeeSink forwards regions to every sink in order and stops at the first
// error.
type TeeSink []fixer.RegionSink

// WriteRegions implements fixer.RegionSink.
func (t TeeSink) WriteRegions(regions []*fixer.Region) error {
	for _, s := range t {
		if err := s.WriteRegions(regions); err != nil {
			return err
		}
	}
	return nil
}
