package memory

import (
	"sort"
	"sync"

	ds "github.com/open-builders/giveaway-bot/internal/domain/subscription"
	"github.com/open-builders/giveaway-bot/internal/repository"
)

// SubscriptionStore keeps per-guild subscription records.
type SubscriptionStore struct {
	mu    sync.RWMutex
	items map[string]*ds.Subscription
}

func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{items: make(map[string]*ds.Subscription)}
}

func (s *SubscriptionStore) Get(guildID string) (*ds.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.items[guildID]
	if !ok {
		return nil, repository.ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (s *SubscriptionStore) Put(sub *ds.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sub.GuildID] = sub.Clone()
}

// Update mutates an existing record; see Registry.Update for semantics.
func (s *SubscriptionStore) Update(guildID string, fn func(sub *ds.Subscription) error) (*ds.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[guildID]
	if !ok {
		return nil, repository.ErrSubscriptionNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.items[guildID] = next
	return next.Clone(), nil
}

// List returns all records ordered by guild ID.
func (s *SubscriptionStore) List() []*ds.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ds.Subscription, 0, len(s.items))
	for _, sub := range s.items {
		out = append(out, sub.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out
}

func (s *SubscriptionStore) Restore(subs []*ds.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*ds.Subscription, len(subs))
	for _, sub := range subs {
		if sub == nil || sub.GuildID == "" {
			continue
		}
		s.items[sub.GuildID] = sub.Clone()
	}
}
