package match

import (
	"sync"

	"github.com/waltznetworks/video-align/frameid"
)

// CodeSet is a set of canonical identifier texts. It is not safe for
// concurrent use; wrap it in a Registry when it is shared.
type CodeSet struct {
	codes map[string]struct{}
}

// NewCodeSet returns a set holding codes.
func NewCodeSet(codes ...string) *CodeSet {
	s := &CodeSet{codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		s.codes[c] = struct{}{}
	}
	return s
}

// Insert adds code and reports whether it was absent.
func (s *CodeSet) Insert(code string) bool {
	if _, ok := s.codes[code]; ok {
		return false
	}
	s.codes[code] = struct{}{}
	return true
}

// Remove deletes code and reports whether it was present.
func (s *CodeSet) Remove(code string) bool {
	if _, ok := s.codes[code]; !ok {
		return false
	}
	delete(s.codes, code)
	return true
}

func (s *CodeSet) Contains(code string) bool {
	_, ok := s.codes[code]
	return ok
}

func (s *CodeSet) Len() int {
	return len(s.codes)
}

// Codes returns the members in canonical order.
func (s *CodeSet) Codes() []string {
	out := make([]string, 0, len(s.codes))
	for c := range s.codes {
		out = append(out, c)
	}
	frameid.SortCanonical(out)
	return out
}

// Clone returns an independent copy.
func (s *CodeSet) Clone() *CodeSet {
	c := &CodeSet{codes: make(map[string]struct{}, len(s.codes))}
	for code := range s.codes {
		c.codes[code] = struct{}{}
	}
	return c
}

// Difference returns the members of s that are not in other.
func (s *CodeSet) Difference(other *CodeSet) *CodeSet {
	d := NewCodeSet()
	for code := range s.codes {
		if !other.Contains(code) {
			d.codes[code] = struct{}{}
		}
	}
	return d
}

// Registry is a CodeSet shared between the scanning goroutine and the
// orchestrator. Every operation holds an exclusive lock for its duration.
type Registry struct {
	mu  sync.Mutex
	set *CodeSet
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{set: NewCodeSet()}
}

func (r *Registry) Insert(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Insert(code)
}

func (r *Registry) Remove(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Remove(code)
}

func (r *Registry) Contains(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Contains(code)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Len()
}

// Snapshot returns a copy of the current contents.
func (r *Registry) Snapshot() *CodeSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Clone()
}
