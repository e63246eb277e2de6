// Package oracle maintains the ring buffer of (timestamp, cumulative tick)
// observations used for time-weighted average price queries. Timestamps wrap
// at 32 bits; comparisons account for the wrap relative to "now".
package oracle

import "errors"

var (
	// ErrTooOld is returned when a query predates the oldest retained
	// observation.
	ErrTooOld = errors.New("target predates oldest observation")
	// ErrNotInitialized is returned when the ring has no written slot 0.
	ErrNotInitialized = errors.New("oracle not initialized")
)

// Observation is one sample: the running sum of tick*seconds since pool
// creation as of BlockTimestamp. Slots pre-allocated by Grow carry a
// sentinel timestamp of 1 and Initialized=false until first written.
type Observation struct {
	BlockTimestamp uint32 `json:"block_timestamp"`
	TickCumulative int64  `json:"tick_cumulative"`
	Initialized    bool   `json:"initialized"`
}

// Observations is the ring storage. Index, cardinality and target
// cardinality are owned by the pool and passed in, mirroring how the ring
// is addressed when persisted.
type Observations []Observation

// transform projects a prior observation forward to a new timestamp.
func transform(last Observation, time uint32, tick int) Observation {
	delta := time - last.BlockTimestamp
	return Observation{
		BlockTimestamp: time,
		TickCumulative: last.TickCumulative + int64(tick)*int64(delta),
		Initialized:    true,
	}
}

// NewRing writes slot 0 at the given time and returns the ring with
// cardinality and target cardinality of 1.
func NewRing(time uint32) (Observations, uint16, uint16) {
	ring := Observations{{
		BlockTimestamp: time,
		TickCumulative: 0,
		Initialized:    true,
	}}
	return ring, 1, 1
}

// Write appends an observation for the current timestamp and returns the
// updated index and cardinality. At most one observation is stored per
// timestamp: a repeat write is a no-op. The ring only adopts a grown
// cardinality when the write lands on the last slot of the current one, so
// growth never takes effect mid-rotation.
func (o Observations) Write(index uint16, time uint32, tick int, cardinality, cardinalityNext uint16) (uint16, uint16) {
	last := o[index]
	if last.BlockTimestamp == time {
		return index, cardinality
	}

	updatedCardinality := cardinality
	if cardinalityNext > cardinality && index == cardinality-1 {
		updatedCardinality = cardinalityNext
	}

	updatedIndex := (index + 1) % updatedCardinality
	o[updatedIndex] = transform(last, time, tick)
	return updatedIndex, updatedCardinality
}

// Grow extends the ring capacity to next slots, pre-filling new slots with a
// nonzero sentinel timestamp so they are never mistaken for unwritten slot 0
// during search. Capacity only ever increases.
func Grow(o Observations, current, next uint16) (Observations, uint16) {
	if current == 0 || next <= current {
		return o, current
	}
	for i := len(o); i < int(next); i++ {
		o = append(o, Observation{BlockTimestamp: 1})
	}
	return o, next
}

// ObserveSingle returns the cumulative tick as of secondsAgo before time.
// secondsAgo of zero extrapolates the latest observation to now using the
// live tick; older targets are interpolated linearly between the bracketing
// pair of observations.
func (o Observations) ObserveSingle(time uint32, secondsAgo uint32, tick int, index, cardinality uint16) (int64, error) {
	if cardinality == 0 || len(o) == 0 || !o[0].Initialized {
		return 0, ErrNotInitialized
	}

	if secondsAgo == 0 {
		last := o[index]
		if last.BlockTimestamp != time {
			last = transform(last, time, tick)
		}
		return last.TickCumulative, nil
	}

	target := time - secondsAgo

	beforeOrAt, atOrAfter, err := o.surroundingObservations(time, target, tick, index, cardinality)
	if err != nil {
		return 0, err
	}

	switch target {
	case beforeOrAt.BlockTimestamp:
		return beforeOrAt.TickCumulative, nil
	case atOrAfter.BlockTimestamp:
		return atOrAfter.TickCumulative, nil
	}

	observationDelta := atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp
	targetDelta := target - beforeOrAt.BlockTimestamp
	interpolated := (atOrAfter.TickCumulative - beforeOrAt.TickCumulative) / int64(observationDelta) * int64(targetDelta)
	return beforeOrAt.TickCumulative + interpolated, nil
}

// Observe runs ObserveSingle for each requested age.
func (o Observations) Observe(time uint32, secondsAgos []uint32, tick int, index, cardinality uint16) ([]int64, error) {
	out := make([]int64, len(secondsAgos))
	for i, secondsAgo := range secondsAgos {
		cumulative, err := o.ObserveSingle(time, secondsAgo, tick, index, cardinality)
		if err != nil {
			return nil, err
		}
		out[i] = cumulative
	}
	return out, nil
}

// surroundingObservations locates the pair of observations bracketing the
// target time. An exact hit on the most recent observation short-circuits;
// a target newer than the most recent observation is bracketed by a
// synthetic observation at the target itself.
func (o Observations) surroundingObservations(time, target uint32, tick int, index, cardinality uint16) (Observation, Observation, error) {
	beforeOrAt := o[index]

	if lte(time, beforeOrAt.BlockTimestamp, target) {
		if beforeOrAt.BlockTimestamp == target {
			return beforeOrAt, Observation{}, nil
		}
		return beforeOrAt, transform(beforeOrAt, target, tick), nil
	}

	oldest := o[int(index+1)%int(cardinality)]
	if !oldest.Initialized {
		oldest = o[0]
	}
	if !lte(time, oldest.BlockTimestamp, target) {
		return Observation{}, Observation{}, ErrTooOld
	}

	return o.binarySearch(time, target, index, cardinality)
}

// binarySearch walks the ring for the bracketing pair, treating the slot
// after the current index as the oldest element.
func (o Observations) binarySearch(time, target uint32, index, cardinality uint16) (Observation, Observation, error) {
	l := (int(index) + 1) % int(cardinality)
	r := l + int(cardinality) - 1

	for {
		i := (l + r) / 2

		beforeOrAt := o[i%int(cardinality)]
		if !beforeOrAt.Initialized {
			// Skip pre-grown slots that have never been written.
			l = i + 1
			continue
		}

		atOrAfter := o[(i+1)%int(cardinality)]

		targetAtOrAfter := lte(time, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && lte(time, target, atOrAfter.BlockTimestamp) {
			return beforeOrAt, atOrAfter, nil
		}

		if !targetAtOrAfter {
			r = i - 1
		} else {
			l = i + 1
		}
	}
}

// lte compares two 32-bit timestamps in the past relative to time, treating
// values greater than "now" as having wrapped.
func lte(time, a, b uint32) bool {
	if a <= time && b <= time {
		return a <= b
	}

	aAdjusted := uint64(a)
	if a > time {
		aAdjusted += 1 << 32
	}
	bAdjusted := uint64(b)
	if b > time {
		bAdjusted += 1 << 32
	}
	return aAdjusted <= bAdjusted
}
