// Package bot is the Discord surface of the giveaway bot: slash commands,
// button handlers and the announcer that renders giveaway state.
package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/open-builders/giveaway-bot/internal/common/logger"
)

// NewSession creates a gateway session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMembers
	return s, nil
}

// Bot owns the gateway connection and command registration.
type Bot struct {
	session       *discordgo.Session
	handler       *Handler
	guildID       string
	subscriptions bool
	logger        zerolog.Logger
}

// New wires handler into session. Commands are registered to guildID, or
// globally when it is empty.
func New(session *discordgo.Session, handler *Handler, guildID string, subscriptions bool) *Bot {
	return &Bot{
		session:       session,
		handler:       handler,
		guildID:       guildID,
		subscriptions: subscriptions,
		logger:        logger.Component("bot"),
	}
}

// Open connects to the gateway and registers slash commands.
func (b *Bot) Open() error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Bot is ready")
	})
	b.session.AddHandler(b.handler.OnInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	for _, cmd := range Commands(b.subscriptions) {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.guildID, cmd); err != nil {
			b.logger.Error().Err(err).Str("command", cmd.Name).Msg("Cannot create command")
		}
	}
	b.logger.Info().Str("guild_id", b.guildID).Msg("Commands registered")
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}
