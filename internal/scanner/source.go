package scanner

import "context"

// Source is one listing source the scanner can walk (§4.4:
// bookmarks, following). Each source owns its own cursor semantics and
// early-stop rule; the top-level Scanner just iterates sources selected
// by the configured mode.
type Source interface {
	// Name identifies the source for logging and status reporting.
	Name() string

	// Scan walks the source, enqueueing candidates into the task queue
	// via admission, and returns the number of new items enqueued.
	Scan(ctx context.Context, admission *Admission, fullScan bool) (int, error)
}

// registry holds the two built-in sources, selectable by config mode
// (§6.2 `mode` ∈ {bookmarks, following, both}).
type registry struct {
	sources map[string]Source
	order   []string
}

func newRegistry() *registry {
	return &registry{sources: make(map[string]Source)}
}

func (r *registry) register(s Source) {
	r.sources[s.Name()] = s
	r.order = append(r.order, s.Name())
}

// selected returns the registered sources in registration order, filtered
// to the names in want.
func (r *registry) selected(want []string) []Source {
	set := make(map[string]bool, len(want))
	for _, w := range want {
		set[w] = true
	}
	var out []Source
	for _, name := range r.order {
		if set[name] {
			out = append(out, r.sources[name])
		}
	}
	return out
}
