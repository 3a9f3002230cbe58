package centers

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/benjaminillouz/cemedis-website/internal/geomath"
)

// Store holds the authoritative center list and the active filtered view.
// Constraint: it is the only writer of both collections; renderers and the
// map adapter receive copies.
type Store struct {
	mu       sync.RWMutex
	all      []Center
	filtered []Center
	loaded   bool
}

func NewStore() *Store { return &Store{} }

// Load replaces the full set wholesale and resets the filtered view to an
// identical copy. Distances from an earlier proximity sort are dropped.
func (s *Store) Load(raw []map[string]any) {
	all := make([]Center, 0, len(raw))
	for _, r := range raw {
		all = append(all, FromRaw(r))
	}
	s.LoadCenters(all)
}

// LoadJSON decodes a webhook payload and loads it.
func (s *Store) LoadJSON(b []byte) error {
	raw, err := DecodeRaw(b)
	if err != nil {
		return err
	}
	s.Load(raw)
	return nil
}

// LoadCenters is Load for already parsed records.
func (s *Store) LoadCenters(all []Center) {
	clean := make([]Center, len(all))
	for i, c := range all {
		c.DistanceKm = nil
		clean[i] = c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = clean
	s.filtered = clone(clean)
	s.loaded = true
}

// FilterByText sets the filtered view to the centers whose name, address or
// city contains q, ignoring case. A blank query restores the full set.
func (s *Store) FilterByText(q string) []Center {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filtered = MatchText(s.all, q)
	return clone(s.filtered)
}

// SortByProximity sets the filtered view to the full set ordered by distance
// from the origin. Centers without a position get +Inf and keep their
// relative order at the end.
func (s *Store) SortByProximity(lat, lon float64) []Center {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filtered = ByDistance(s.all, lat, lon)
	return clone(s.filtered)
}

// All returns a copy of the full set in source order.
func (s *Store) All() []Center {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.all)
}

// Filtered returns a copy of the active view.
func (s *Store) Filtered() []Center {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.filtered)
}

// Loaded reports whether a load ever completed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Len is the size of the full set.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.all)
}

// MatchText is the pure form of FilterByText. Matching is unanchored
// substring containment, not tokenized.
func MatchText(records []Center, q string) []Center {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return clone(records)
	}
	out := make([]Center, 0, len(records))
	for _, c := range records {
		if strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Address), q) ||
			strings.Contains(strings.ToLower(c.City), q) {
			out = append(out, c)
		}
	}
	return out
}

// ByDistance is the pure form of SortByProximity. The input is not modified.
func ByDistance(records []Center, lat, lon float64) []Center {
	out := clone(records)
	for i := range out {
		d := math.Inf(1)
		if p := out[i].Position; p != nil {
			d = geomath.DistanceKm(lat, lon, p.Lat, p.Lon)
		}
		out[i].DistanceKm = &d
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceKm < *out[j].DistanceKm })
	return out
}

// WithPosition keeps only the centers that can be plotted.
func WithPosition(records []Center) []Center {
	out := make([]Center, 0, len(records))
	for _, c := range records {
		if c.HasPosition() {
			out = append(out, c)
		}
	}
	return out
}

func clone(in []Center) []Center {
	if in == nil {
		return []Center{}
	}
	out := make([]Center, len(in))
	copy(out, in)
	return out
}
