package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	dg "github.com/open-builders/giveaway-bot/internal/domain/giveaway"
)

// Messenger is the part of *discordgo.Session the announcer needs.
type Messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer renders giveaway state as Discord messages.
type Announcer struct {
	s Messenger
}

func NewAnnouncer(s Messenger) *Announcer {
	return &Announcer{s: s}
}

// Start posts the announcement in the giveaway's channel.
func (a *Announcer) Start(ctx context.Context, g *dg.Giveaway) (string, error) {
	msg, err := a.s.ChannelMessageSendComplex(g.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{giveawayEmbed(g)},
		Components: controls(g),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send announcement: %w", err)
	}
	return msg.ID, nil
}

// Updated refreshes the announcement, e.g. after a join.
func (a *Announcer) Updated(ctx context.Context, g *dg.Giveaway) error {
	return a.edit(ctx, g, nil)
}

// Resolved marks the announcement ended and posts the result.
func (a *Announcer) Resolved(ctx context.Context, g *dg.Giveaway) error {
	if err := a.edit(ctx, g, nil); err != nil {
		return err
	}
	if _, err := a.s.ChannelMessageSendComplex(g.ChannelID, resultMessage(g, false), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send result: %w", err)
	}
	return nil
}

// Cancelled replaces the announcement with a cancellation notice and removes
// its buttons.
func (a *Announcer) Cancelled(ctx context.Context, g *dg.Giveaway) error {
	return a.edit(ctx, g, ptr("This giveaway has been cancelled."))
}

// Rerolled posts the new winners.
func (a *Announcer) Rerolled(ctx context.Context, g *dg.Giveaway) error {
	if _, err := a.s.ChannelMessageSendComplex(g.ChannelID, resultMessage(g, true), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send reroll: %w", err)
	}
	return nil
}

func (a *Announcer) edit(ctx context.Context, g *dg.Giveaway, content *string) error {
	embeds := []*discordgo.MessageEmbed{giveawayEmbed(g)}
	components := controls(g)
	edit := &discordgo.MessageEdit{
		ID:         g.ID,
		Channel:    g.ChannelID,
		Content:    content,
		Embeds:     &embeds,
		Components: &components,
	}
	if _, err := a.s.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit announcement %s: %w", g.ID, err)
	}
	return nil
}

func ptr(s string) *string {
	return &s
}
