package cache

// Stats holds store counters since creation.
type Stats struct {
	Hits          int64   `json:"hits"`
	StaleHits     int64   `json:"staleHits"`
	Misses        int64   `json:"misses"`
	Joins         int64   `json:"joins"`
	Fetches       int64   `json:"fetches"`
	FetchFailures int64   `json:"fetchFailures"`
	Evictions     int64   `json:"evictions"`
	Invalidations int64   `json:"invalidations"`
	Entries       int     `json:"entries"`
	InFlight      int     `json:"inFlight"`
	HitRate       float64 `json:"hitRate"`
}

// Stats returns a copy of the store counters. Stale hits count as hits in
// HitRate since the caller was served without waiting.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Entries = len(s.entries)
	for _, e := range s.entries {
		if e.flight != nil {
			stats.InFlight++
		}
	}

	served := stats.Hits + stats.StaleHits
	if total := served + stats.Misses + stats.Joins; total > 0 {
		stats.HitRate = float64(served) / float64(total)
	}
	return stats
}
