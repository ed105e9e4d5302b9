// Package snapshot persists the registry and subscription store as one
// versioned document.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	dg "github.com/open-builders/giveaway-bot/internal/domain/giveaway"
	ds "github.com/open-builders/giveaway-bot/internal/domain/subscription"
)

// Version of the document layout written by Encode.
const Version = 1

// Backend stores and retrieves the whole document.
type Backend interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Close() error
}

type Metadata struct {
	Version             int       `json:"version"`
	LastUpdated         time.Time `json:"last_updated"`
	TotalGiveaways      int       `json:"total_giveaways"`
	ActiveGiveaways     int       `json:"active_giveaways"`
	TotalSubscriptions  int       `json:"total_subscriptions"`
	ActiveSubscriptions int       `json:"active_subscriptions"`
}

type Document struct {
	Giveaways     map[string]*dg.Giveaway     `json:"giveaways"`
	Subscriptions map[string]*ds.Subscription `json:"subscriptions"`
	Metadata      Metadata                    `json:"metadata"`
}

func NewDocument() *Document {
	return &Document{
		Giveaways:     make(map[string]*dg.Giveaway),
		Subscriptions: make(map[string]*ds.Subscription),
		Metadata:      Metadata{Version: Version},
	}
}

// Build assembles a document from the current state and fills in metadata.
func Build(giveaways []*dg.Giveaway, subs []*ds.Subscription, now time.Time) *Document {
	doc := NewDocument()
	for _, g := range giveaways {
		doc.Giveaways[g.ID] = g
		if g.IsActive() {
			doc.Metadata.ActiveGiveaways++
		}
	}
	for _, s := range subs {
		doc.Subscriptions[s.GuildID] = s
		if s.ActiveAt(now) {
			doc.Metadata.ActiveSubscriptions++
		}
	}
	doc.Metadata.LastUpdated = now
	doc.Metadata.TotalGiveaways = len(doc.Giveaways)
	doc.Metadata.TotalSubscriptions = len(doc.Subscriptions)
	return doc
}

// GiveawayList returns the records ordered by ID.
func (d *Document) GiveawayList() []*dg.Giveaway {
	out := make([]*dg.Giveaway, 0, len(d.Giveaways))
	for _, g := range d.Giveaways {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SubscriptionList returns the records ordered by guild ID.
func (d *Document) SubscriptionList() []*ds.Subscription {
	out := make([]*ds.Subscription, 0, len(d.Subscriptions))
	for _, s := range d.Subscriptions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out
}

func Encode(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

// Decode parses a document. Map keys are authoritative for record IDs and
// nil entries are dropped.
func Decode(data []byte) (*Document, error) {
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Metadata.Version > Version {
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", doc.Metadata.Version, Version)
	}
	if doc.Giveaways == nil {
		doc.Giveaways = make(map[string]*dg.Giveaway)
	}
	if doc.Subscriptions == nil {
		doc.Subscriptions = make(map[string]*ds.Subscription)
	}
	for id, g := range doc.Giveaways {
		if g == nil {
			delete(doc.Giveaways, id)
			continue
		}
		g.ID = id
		if g.Participants == nil {
			g.Participants = []string{}
		}
	}
	for id, s := range doc.Subscriptions {
		if s == nil {
			delete(doc.Subscriptions, id)
			continue
		}
		s.GuildID = id
	}
	return doc, nil
}

// Split cuts data into ordered chunks of at most size bytes.
func Split(data []byte, size int) [][]byte {
	if size <= 0 {
		size = len(data)
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// NopBackend keeps nothing; used with STORAGE_BACKEND=memory.
type NopBackend struct{}

func (NopBackend) Load(context.Context) (*Document, error) { return NewDocument(), nil }

func (NopBackend) Save(context.Context, *Document) error { return nil }

func (NopBackend) Close() error { return nil }
