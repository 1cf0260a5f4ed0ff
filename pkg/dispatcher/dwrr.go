package dispatcher

// quantum is the DWRR round unit: on each round every output's deficit
// counter is credited by weight*quantum bytes, and a buffer is dispatched
// to the first output (scanning from just past the last selection) whose
// deficit covers it, byte-accurately debiting the buffer's size from that
// output's deficit.
const quantum = 1500 // bytes, approximates one MTU-sized RTP packet

// dwrrState tracks one output's DWRR bookkeeping.
type dwrrState struct {
	sessionID uint32
	weight    float64
	deficit   int64
}

// dwrrScheduler selects the next output for each buffer using deficit
// weighted round robin over the current weight vector. It remembers the
// last output it selected so the next scan starts just past it, both for
// round-robin fairness and because the dispatcher compares the new
// selection against it to drive keyframe duplication.
type dwrrScheduler struct {
	order []*dwrrState
	byID  map[uint32]*dwrrState

	lastSelectedID uint32
	haveSelected   bool
}

func newDWRRScheduler() *dwrrScheduler {
	return &dwrrScheduler{byID: make(map[uint32]*dwrrState)}
}

// setWeights replaces the active weight vector, preserving each existing
// output's accumulated deficit and adding new outputs with a zero deficit.
func (d *dwrrScheduler) setWeights(weights map[uint32]float64) {
	for id, w := range weights {
		if s, ok := d.byID[id]; ok {
			s.weight = w
			continue
		}
		s := &dwrrState{sessionID: id, weight: w}
		d.byID[id] = s
		d.order = append(d.order, s)
	}
	// Drop outputs no longer present in the vector.
	kept := d.order[:0]
	for _, s := range d.order {
		if _, ok := weights[s.sessionID]; ok {
			kept = append(kept, s)
		} else {
			delete(d.byID, s.sessionID)
		}
	}
	d.order = kept
}

// removeOutput drops an output's scheduling state entirely, e.g. on a
// hot-remove request.
func (d *dwrrScheduler) removeOutput(id uint32) {
	delete(d.byID, id)
	kept := d.order[:0]
	for _, s := range d.order {
		if s.sessionID != id {
			kept = append(kept, s)
		}
	}
	d.order = kept
	if d.haveSelected && d.lastSelectedID == id {
		d.haveSelected = false
	}
}

// scanStart returns the index in d.order at which the next DWRR scan
// should begin: one past whichever output was selected last, wrapping
// around. With no prior selection (or a last selection no longer present),
// the scan starts at the beginning of order.
func (d *dwrrScheduler) scanStart(n int) int {
	if !d.haveSelected {
		return 0
	}
	for i, s := range d.order {
		if s.sessionID == d.lastSelectedID {
			return (i + 1) % n
		}
	}
	return 0
}

// next picks the output to receive a buffer of size bytes. eligible, when
// non-nil, is consulted for every candidate; ineligible outputs (Draining
// or unhealthy) are skipped entirely and their deficit is
// left untouched. The scan starts just past the previously selected
// output and credits each eligible candidate's deficit by its weighted
// quantum share exactly once per scan; the first candidate whose deficit
// can afford size is selected and debited. If no candidate can afford it
// in one full scan, the one with the largest deficit-to-size ratio is
// selected and allowed to overdraw.
func (d *dwrrScheduler) next(size int, eligible func(uint32) bool) (uint32, bool) {
	n := len(d.order)
	if n == 0 {
		return 0, false
	}

	start := d.scanStart(n)
	bestIdx := -1
	var bestRatio float64
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		s := d.order[idx]
		if eligible != nil && !eligible(s.sessionID) {
			continue
		}

		s.deficit += int64(s.weight * float64(quantum))
		if s.deficit >= int64(size) {
			s.deficit -= int64(size)
			d.lastSelectedID = s.sessionID
			d.haveSelected = true
			return s.sessionID, true
		}

		ratio := float64(s.deficit) / float64(size)
		if bestIdx < 0 || ratio > bestRatio {
			bestIdx = idx
			bestRatio = ratio
		}
	}

	if bestIdx < 0 {
		return 0, false
	}
	s := d.order[bestIdx]
	s.deficit -= int64(size)
	d.lastSelectedID = s.sessionID
	d.haveSelected = true
	return s.sessionID, true
}

// deficits returns each tracked output's current DWRR deficit, for export
// via the dispatcher's snapshot.
func (d *dwrrScheduler) deficits() map[uint32]int64 {
	out := make(map[uint32]int64, len(d.order))
	for _, s := range d.order {
		out[s.sessionID] = s.deficit
	}
	return out
}
