package delivery

import "sync/atomic"

// Stats holds the engine's counters. All access is atomic.
type Stats struct {
	attempts  atomic.Int64
	delivered atomic.Int64
	retried   atomic.Int64
	queued    atomic.Int64
	drained   atomic.Int64
	beacons   atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters, as exposed by the
// admin surface and the shutdown log line.
type StatsSnapshot struct {
	Attempts  int64 `json:"attempts"`
	Delivered int64 `json:"delivered"`
	Retried   int64 `json:"retried"`
	Queued    int64 `json:"queued"`
	Drained   int64 `json:"drained"`
	Beacons   int64 `json:"beacons"`
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Attempts:  s.attempts.Load(),
		Delivered: s.delivered.Load(),
		Retried:   s.retried.Load(),
		Queued:    s.queued.Load(),
		Drained:   s.drained.Load(),
		Beacons:   s.beacons.Load(),
	}
}
