package snapshot

import (
	"time"

	"github.com/open-builders/giveaway-bot/internal/repository/memory"
)

// Capture builds a document from the live stores.
func Capture(reg *memory.Registry, subs *memory.SubscriptionStore, now time.Time) *Document {
	return Build(reg.List(), subs.List(), now)
}

// Restore loads a document into the live stores, replacing their contents.
func Restore(doc *Document, reg *memory.Registry, subs *memory.SubscriptionStore) {
	reg.Restore(doc.GiveawayList())
	subs.Restore(doc.SubscriptionList())
}
