package timestamp

// Keyframe is the time anchor carried by a device's synchronization frame.
type Keyframe struct {
	DeviceID  uint16
	ASICTicks uint32 // low 31 bits of the device clock
	UTCNanos  uint64
}

// Window holds the two most recent keyframes of one device, oldest first.
// The zero value is an empty window.
type Window struct {
	kfs [2]Keyframe
	n   int
}

// Push appends kf, evicting the oldest keyframe once two are held.
func (w *Window) Push(kf Keyframe) {
	if w.n == len(w.kfs) {
		w.kfs[0] = w.kfs[1]
		w.kfs[1] = kf
		return
	}
	w.kfs[w.n] = kf
	w.n++
}

// Len returns the number of keyframes held (0, 1 or 2).
func (w Window) Len() int {
	return w.n
}

// Latest returns the most recently pushed keyframe.
func (w Window) Latest() (Keyframe, bool) {
	if w.n == 0 {
		return Keyframe{}, false
	}
	return w.kfs[w.n-1], true
}

// Previous returns the keyframe pushed before Latest.
func (w Window) Previous() (Keyframe, bool) {
	if w.n < 2 {
		return Keyframe{}, false
	}
	return w.kfs[0], true
}
