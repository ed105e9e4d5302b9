package memory

import (
	"sort"
	"sync"

	dg "github.com/open-builders/giveaway-bot/internal/domain/giveaway"
	"github.com/open-builders/giveaway-bot/internal/repository"
)

// Registry is the in-process giveaway store keyed by announcement message ID.
// Every value handed out is a copy; mutations go through Update so that the
// read-check-write of a caller happens under one lock.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*dg.Giveaway
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*dg.Giveaway)}
}

// Create inserts a new record.
func (r *Registry) Create(g *dg.Giveaway) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[g.ID]; ok {
		return repository.ErrDuplicateID
	}
	r.items[g.ID] = g.Clone()
	return nil
}

// Get returns a copy of the record.
func (r *Registry) Get(id string) (*dg.Giveaway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.items[id]
	if !ok {
		return nil, repository.ErrGiveawayNotFound
	}
	return g.Clone(), nil
}

// Update applies fn to a working copy of the record and stores the copy only
// if fn returns nil, so a rejected mutation leaves no trace. The committed
// state is returned.
func (r *Registry) Update(id string, fn func(g *dg.Giveaway) error) (*dg.Giveaway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.items[id]
	if !ok {
		return nil, repository.ErrGiveawayNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	r.items[id] = next
	return next.Clone(), nil
}

// Remove deletes the record and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	return true
}

// RemoveWhere deletes every record matching pred and returns their IDs.
func (r *Registry) RemoveWhere(pred func(g *dg.Giveaway) bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, g := range r.items {
		if pred(g) {
			delete(r.items, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// ListActive returns active records ordered by end time.
func (r *Registry) ListActive() []*dg.Giveaway {
	return r.list(func(g *dg.Giveaway) bool { return g.IsActive() })
}

// List returns all records ordered by end time.
func (r *Registry) List() []*dg.Giveaway {
	return r.list(nil)
}

// Filter returns records matching pred ordered by end time.
func (r *Registry) Filter(pred func(g *dg.Giveaway) bool) []*dg.Giveaway {
	return r.list(pred)
}

func (r *Registry) list(pred func(g *dg.Giveaway) bool) []*dg.Giveaway {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*dg.Giveaway, 0, len(r.items))
	for _, g := range r.items {
		if pred == nil || pred(g) {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EndTime.Before(out[j].EndTime)
	})
	return out
}

// Restore replaces the contents with the given records (startup load).
func (r *Registry) Restore(gs []*dg.Giveaway) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make(map[string]*dg.Giveaway, len(gs))
	for _, g := range gs {
		if g == nil || g.ID == "" {
			continue
		}
		r.items[g.ID] = g.Clone()
	}
}

// Counts returns the total and active record counts.
func (r *Registry) Counts() (total, active int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.items {
		if g.IsActive() {
			active++
		}
	}
	return len(r.items), active
}
