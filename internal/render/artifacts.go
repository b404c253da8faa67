package render

import "sync"

// Artifacts collects every file a job writes so it can be removed afterwards,
// including partial output of a failed stage.
type Artifacts struct {
	mu    sync.Mutex
	paths []string
	seen  map[string]struct{}
}

func NewArtifacts() *Artifacts {
	return &Artifacts{seen: make(map[string]struct{})}
}

// Add records paths. Duplicates are ignored.
func (a *Artifacts) Add(paths ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := a.seen[p]; ok {
			continue
		}
		a.seen[p] = struct{}{}
		a.paths = append(a.paths, p)
	}
}

// Paths returns the recorded paths in insertion order.
func (a *Artifacts) Paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.paths))
	copy(out, a.paths)
	return out
}
