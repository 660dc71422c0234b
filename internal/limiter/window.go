package limiter

import "time"

// slidingWindow is an ordered log of admission times.
type slidingWindow struct {
	size  time.Duration
	times []time.Time
}

// prune drops entries with now - t >= size.
func (w *slidingWindow) prune(now time.Time) {
	i := 0
	for i < len(w.times) && now.Sub(w.times[i]) >= w.size {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.times, w.times[i:])
	clear(w.times[n:])
	w.times = w.times[:n]
}

func (w *slidingWindow) add(t time.Time) {
	w.times = append(w.times, t)
}

func (w *slidingWindow) len() int {
	return len(w.times)
}
