package transcribe

import "time"

// DefaultMaxSegment is the longest audio accepted by a single request.
const DefaultMaxSegment = time.Hour

// Segment is a contiguous sub-range [Start, End) of a recording. Nominal
// ranges partition the recording; Lead is extra audio before Start that is
// uploaded too so words cut at the boundary are heard whole.
type Segment struct {
	Index int
	Start time.Duration
	End   time.Duration
	Lead  time.Duration
}

// From is where the uploaded audio for the segment begins.
func (s Segment) From() time.Duration {
	return s.Start - s.Lead
}

// Length is the nominal duration of the segment.
func (s Segment) Length() time.Duration {
	return s.End - s.Start
}

// Plan splits a recording of the given duration into segments of at most
// maxSegment. A zero duration yields no segments; anything up to maxSegment
// yields exactly one. Longer recordings yield ceil(duration/maxSegment)
// segments in time order, the last one holding the remainder.
func Plan(duration, maxSegment, overlap time.Duration) []Segment {
	if duration <= 0 {
		return nil
	}
	if maxSegment <= 0 || duration <= maxSegment {
		return []Segment{{Index: 0, Start: 0, End: duration}}
	}

	n := int((duration + maxSegment - 1) / maxSegment)
	segments := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		start := time.Duration(i) * maxSegment
		end := min(start+maxSegment, duration)
		var lead time.Duration
		if i > 0 && overlap > 0 {
			lead = min(overlap, start)
		}
		segments = append(segments, Segment{Index: i, Start: start, End: end, Lead: lead})
	}
	return segments
}
