package discord

import (
	"fmt"
	"strconv"
	"time"
)

// discordEpochMillis is the first millisecond of 2015, the origin of Discord snowflakes.
const discordEpochMillis int64 = 1420070400000

// CreatedAt derives the creation time of any Discord entity (user, guild,
// message) from its snowflake ID.
func CreatedAt(snowflake string) (time.Time, error) {
	id, err := strconv.ParseUint(snowflake, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snowflake %q: %w", snowflake, err)
	}
	ms := int64(id>>22) + discordEpochMillis
	return time.UnixMilli(ms).UTC(), nil
}

// AccountAgeDays returns the number of whole days between the account's
// creation and now. Unparseable IDs yield zero.
func AccountAgeDays(userID string, now time.Time) int {
	created, err := CreatedAt(userID)
	if err != nil {
		return 0
	}
	return WholeDaysBetween(created, now)
}

// WholeDaysBetween returns floor((to-from)/24h), never negative.
func WholeDaysBetween(from, to time.Time) int {
	if from.IsZero() || !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / (24 * time.Hour))
}
