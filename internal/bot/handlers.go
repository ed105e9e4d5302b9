package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/open-builders/giveaway-bot/internal/common/logger"
	dg "github.com/open-builders/giveaway-bot/internal/domain/giveaway"
	ds "github.com/open-builders/giveaway-bot/internal/domain/subscription"
	"github.com/open-builders/giveaway-bot/internal/platform/paypal"
	gsvc "github.com/open-builders/giveaway-bot/internal/service/giveaway"
	subsvc "github.com/open-builders/giveaway-bot/internal/service/subscription"
	"github.com/open-builders/giveaway-bot/internal/utils/discord"
)

// GiveawayService is implemented by *giveaway.Service.
type GiveawayService interface {
	Create(ctx context.Context, actor gsvc.Actor, in gsvc.CreateInput) (*dg.Giveaway, error)
	Join(ctx context.Context, id string, e dg.Entrant) (*dg.Giveaway, error)
	End(ctx context.Context, id string, actor gsvc.Actor) (*dg.Giveaway, error)
	Cancel(ctx context.Context, id string, actor gsvc.Actor) (*dg.Giveaway, error)
	Reroll(ctx context.Context, id string, actor gsvc.Actor) (*dg.Giveaway, error)
	Get(ctx context.Context, id string) (*dg.Giveaway, error)
	ListActive(ctx context.Context, guildID string) []*dg.Giveaway
	ListEntered(ctx context.Context, guildID, userID string) []*dg.Giveaway
}

// SubscriptionService is implemented by *subscription.Service.
type SubscriptionService interface {
	Get(guildID string) (*ds.Subscription, error)
	Tier(guildID string) ds.Tier
	Purchase(ctx context.Context, in subsvc.PurchaseInput) (*paypal.Checkout, error)
}

// Session is the part of *discordgo.Session used to answer interactions.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
}

// Handler routes slash commands and button clicks to the services.
type Handler struct {
	giveaways GiveawayService
	subs      SubscriptionService
	timeout   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewHandler builds a handler. subs is nil when subscriptions are disabled.
func NewHandler(giveaways GiveawayService, subs SubscriptionService) *Handler {
	return &Handler{
		giveaways: giveaways,
		subs:      subs,
		timeout:   10 * time.Second,
		now:       time.Now,
		logger:    logger.Component("bot"),
	}
}

// OnInteraction is registered with discordgo's AddHandler.
func (h *Handler) OnInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.Handle(s, i)
}

// Handle dispatches one interaction. A panic in any handler is logged and
// answered with a generic failure; it never reaches the gateway loop.
func (h *Handler) Handle(s Session, i *discordgo.InteractionCreate) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Str("interaction_id", i.ID).
				Msg("Interaction handler panicked")
			h.reply(s, i, genericFailure)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		h.respond(s, i, "Giveaway commands only work inside a server.")
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.handleCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		h.handleComponent(ctx, s, i)
	}
}

func (h *Handler) handleCommand(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	opts := optionMap(data.Options)
	log := h.logger.With().
		Str("command", data.Name).
		Str("guild_id", i.GuildID).
		Str("user_id", i.Member.User.ID).
		Logger()
	log.Debug().Msg("Command received")

	if !h.ack(s, i) {
		return
	}

	var (
		text string
		err  error
	)
	switch data.Name {
	case cmdGiveaway:
		text, err = h.create(ctx, i, opts)
	case cmdEnd:
		_, err = h.giveaways.End(ctx, stringOpt(opts, "id"), actorOf(i))
		text = "Giveaway ended."
	case cmdCancel:
		_, err = h.giveaways.Cancel(ctx, stringOpt(opts, "id"), actorOf(i))
		text = "Giveaway cancelled."
	case cmdReroll:
		_, err = h.giveaways.Reroll(ctx, stringOpt(opts, "id"), actorOf(i))
		text = "Giveaway rerolled."
	case cmdList:
		h.list(ctx, s, i, opts)
		return
	case cmdInfo:
		h.info(ctx, s, i, stringOpt(opts, "id"))
		return
	case cmdSubscription:
		h.subscriptionStatus(s, i)
		return
	case cmdBuy:
		h.buy(ctx, s, i)
		return
	default:
		text = "Unknown command."
	}

	if err != nil {
		h.logFailure(log, err)
		text = userMessage(err)
	}
	h.reply(s, i, text)
}

func (h *Handler) handleComponent(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	log := h.logger.With().
		Str("button", data.CustomID).
		Str("guild_id", i.GuildID).
		Str("user_id", i.Member.User.ID).
		Logger()

	if id, page, ok := parsePageID(data.CustomID); ok {
		h.participants(ctx, s, i, id, page, true)
		return
	}
	if i.Message == nil {
		return
	}
	id := i.Message.ID

	if data.CustomID == buttonParticipants {
		h.participants(ctx, s, i, id, 0, false)
		return
	}

	if !h.ack(s, i) {
		return
	}

	var (
		text string
		err  error
	)
	switch data.CustomID {
	case buttonJoin:
		_, err = h.giveaways.Join(ctx, id, entrantOf(i))
		text = "You have joined the giveaway! 🎉"
	case buttonCancel:
		_, err = h.giveaways.Cancel(ctx, id, actorOf(i))
		text = "Giveaway cancelled."
	case buttonReroll:
		_, err = h.giveaways.Reroll(ctx, id, actorOf(i))
		text = "Giveaway rerolled."
	default:
		text = "Unknown action."
	}

	if err != nil {
		h.logFailure(log, err)
		text = userMessage(err)
	}
	h.reply(s, i, text)
}

func (h *Handler) create(ctx context.Context, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	in := gsvc.CreateInput{
		GuildID:     i.GuildID,
		ChannelID:   i.ChannelID,
		Prize:       stringOpt(opts, "prize"),
		Duration:    stringOpt(opts, "duration"),
		WinnerCount: intOpt(opts, "winners"),
		DonorName:   stringOpt(opts, "donor"),
		Requirements: dg.Requirements{
			RequiredRoleID:    roleOpt(opts, "role"),
			MinAccountAgeDays: intOpt(opts, "min_account_age"),
			MinMembershipDays: intOpt(opts, "min_server_days"),
		},
	}
	g, err := h.giveaways.Create(ctx, actorOf(i), in)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Giveaway started! ID: `%s`", g.ID), nil
}

func (h *Handler) list(ctx context.Context, s Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	var gs []*dg.Giveaway
	description := "All running giveaways:"
	if userID := userOpt(opts, "user"); userID != "" {
		gs = h.giveaways.ListEntered(ctx, i.GuildID, userID)
		description = fmt.Sprintf("Giveaways entered by <@%s>:", userID)
	} else {
		gs = h.giveaways.ListActive(ctx, i.GuildID)
	}
	if len(gs) == 0 {
		h.reply(s, i, "No active giveaways found.")
		return
	}
	embed := listEmbed("Active Giveaways", gs)
	embed.Description = description
	h.replyEmbed(s, i, embed, nil)
}

func (h *Handler) info(ctx context.Context, s Session, i *discordgo.InteractionCreate, id string) {
	g, err := h.giveaways.Get(ctx, id)
	if err != nil || g.GuildID != i.GuildID {
		h.reply(s, i, "Giveaway not found.")
		return
	}
	h.replyEmbed(s, i, giveawayEmbed(g), nil)
}

// participants answers the Participants button and its pagination. Page
// turns update the ephemeral list in place.
func (h *Handler) participants(ctx context.Context, s Session, i *discordgo.InteractionCreate, id string, page int, turn bool) {
	respType := discordgo.InteractionResponseChannelMessageWithSource
	if turn {
		respType = discordgo.InteractionResponseUpdateMessage
	}

	g, err := h.giveaways.Get(ctx, id)
	if err != nil {
		h.respond(s, i, userMessage(err))
		return
	}
	embed, components := participantsPage(g, page)
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: respType,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("giveaway_id", id).Msg("Failed to show participants")
	}
}

func (h *Handler) subscriptionStatus(s Session, i *discordgo.InteractionCreate) {
	if h.subs == nil {
		h.reply(s, i, "Subscriptions are not enabled.")
		return
	}
	h.replyEmbed(s, i, subscriptionEmbed(i.GuildID, h.subs, h.now()), nil)
}

func (h *Handler) buy(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	if h.subs == nil {
		h.reply(s, i, "Subscriptions are not enabled.")
		return
	}
	guild, err := s.Guild(i.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		h.logger.Warn().Err(err).Str("guild_id", i.GuildID).Msg("Failed to fetch guild")
		h.reply(s, i, genericFailure)
		return
	}

	checkout, err := h.subs.Purchase(ctx, subsvc.PurchaseInput{
		GuildID:   i.GuildID,
		GuildName: guild.Name,
		OwnerID:   guild.OwnerID,
		ActorID:   i.Member.User.ID,
	})
	if err != nil {
		h.logFailure(h.logger.With().Str("guild_id", i.GuildID).Logger(), err)
		h.reply(s, i, userMessage(err))
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Upgrade to Pro",
		Description: "Open the link below to complete the payment. Pro unlocks role, account age and server time requirements for 30 days.",
		Color:       colorWinners,
	}
	buttons := []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label: "Subscribe with PayPal",
					Style: discordgo.LinkButton,
					URL:   checkout.ApprovalURL,
				},
			},
		},
	}
	h.replyEmbed(s, i, embed, buttons)
}

func subscriptionEmbed(guildID string, subs SubscriptionService, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Subscription",
		Color: colorActive,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Tier", Value: string(subs.Tier(guildID)), Inline: true},
		},
	}
	sub, err := subs.Get(guildID)
	if err != nil {
		embed.Description = "This server is on the free tier. Use `/buy` to upgrade."
		return embed
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Status", Value: string(sub.Status), Inline: true})
	if !sub.ExpiresAt.IsZero() {
		name := "Expires"
		if !sub.ActiveAt(now) {
			name = "Expired"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  name,
			Value: fmt.Sprintf("<t:%d:f>", sub.ExpiresAt.Unix()),
		})
	}
	return embed
}

// ack defers an ephemeral response; the final text follows via reply.
func (h *Handler) ack(s Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("interaction_id", i.ID).Msg("Failed to acknowledge interaction")
		return false
	}
	return true
}

func (h *Handler) reply(s Session, i *discordgo.InteractionCreate, text string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: ptr(text)}); err != nil {
		h.logger.Warn().Err(err).Str("interaction_id", i.ID).Msg("Failed to reply")
	}
}

func (h *Handler) replyEmbed(s Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	edit := &discordgo.WebhookEdit{Embeds: &[]*discordgo.MessageEmbed{embed}}
	if components != nil {
		edit.Components = &components
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		h.logger.Warn().Err(err).Str("interaction_id", i.ID).Msg("Failed to reply")
	}
}

// respond answers immediately without a deferred acknowledgement.
func (h *Handler) respond(s Session, i *discordgo.InteractionCreate, text string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("interaction_id", i.ID).Msg("Failed to respond")
	}
}

func (h *Handler) logFailure(log zerolog.Logger, err error) {
	if userMessage(err) == genericFailure {
		log.Error().Err(err).Msg("Interaction failed")
		return
	}
	log.Debug().Err(err).Msg("Interaction rejected")
}

// actorOf derives the acting user's rights from the interaction's resolved
// member permissions.
func actorOf(i *discordgo.InteractionCreate) gsvc.Actor {
	perms := i.Member.Permissions
	return gsvc.Actor{
		UserID:  i.Member.User.ID,
		GuildID: i.GuildID,
		CanManage: perms&discordgo.PermissionAdministrator != 0 ||
			perms&discordgo.PermissionManageMessages != 0,
	}
}

// entrantOf collects what eligibility checks need. The account creation
// time comes from the user's snowflake; an unparseable ID leaves it zero,
// which fails any account age requirement.
func entrantOf(i *discordgo.InteractionCreate) dg.Entrant {
	created, _ := discord.CreatedAt(i.Member.User.ID)
	return dg.Entrant{
		UserID:           i.Member.User.ID,
		RoleIDs:          i.Member.Roles,
		AccountCreatedAt: created,
		JoinedGuildAt:    i.Member.JoinedAt,
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func stringOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionString {
		return o.StringValue()
	}
	return ""
}

func intOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionInteger {
		return int(o.IntValue())
	}
	return 0
}

func roleOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionRole {
		id, _ := o.Value.(string)
		return id
	}
	return ""
}

func userOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionUser {
		id, _ := o.Value.(string)
		return id
	}
	return ""
}
