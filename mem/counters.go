package mem

// Counters counts the outcome of line requests served by one level.
type Counters struct {
	ReadHit   uint64 `json:"read_hit"`
	ReadMiss  uint64 `json:"read_miss"`
	WriteHit  uint64 `json:"write_hit"`
	WriteMiss uint64 `json:"write_miss"`
}

// Add returns the element-wise sum of two sets of counters.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		ReadHit:   c.ReadHit + o.ReadHit,
		ReadMiss:  c.ReadMiss + o.ReadMiss,
		WriteHit:  c.WriteHit + o.WriteHit,
		WriteMiss: c.WriteMiss + o.WriteMiss,
	}
}

// Reads returns the number of ReadLine requests.
func (c Counters) Reads() uint64 {
	return c.ReadHit + c.ReadMiss
}

// Writes returns the number of WriteLine requests.
func (c Counters) Writes() uint64 {
	return c.WriteHit + c.WriteMiss
}

// Hits returns the number of requests that hit.
func (c Counters) Hits() uint64 {
	return c.ReadHit + c.WriteHit
}

// Misses returns the number of requests that missed.
func (c Counters) Misses() uint64 {
	return c.ReadMiss + c.WriteMiss
}

// HitRate returns the fraction of requests that hit. A level that has not
// served any request reports 0.
func (c Counters) HitRate() float64 {
	total := c.Hits() + c.Misses()
	if total == 0 {
		return 0
	}

	return float64(c.Hits()) / float64(total)
}

// Statistics keeps the counters of the current reporting interval and the
// totals of all the intervals that have been rolled over.
type Statistics struct {
	Interval Counters `json:"interval"`
	Total    Counters `json:"total"`
}

// Roll adds the interval counters to the totals and starts a new interval.
func (s *Statistics) Roll() {
	s.Total = s.Total.Add(s.Interval)
	s.Interval = Counters{}
}

// Running returns the totals including the interval that is still open.
func (s Statistics) Running() Counters {
	return s.Total.Add(s.Interval)
}
