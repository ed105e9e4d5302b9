package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	dg "github.com/open-builders/giveaway-bot/internal/domain/giveaway"
)

const (
	colorActive    = 0x00ff00
	colorEnded     = 0xff0000
	colorWinners   = 0xffd700
	colorCancelled = 0x808080

	participantsPerPage = 10
)

// Component custom IDs. Buttons on the announcement act on the message they
// are attached to; pagination buttons carry the giveaway ID and page.
const (
	buttonJoin         = "giveaway_join"
	buttonCancel       = "giveaway_cancel"
	buttonReroll       = "giveaway_reroll"
	buttonParticipants = "giveaway_participants"
	pagePrefix         = "giveaway_page:"
)

func messageLink(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

func mentions(userIDs []string) string {
	out := make([]string, len(userIDs))
	for i, id := range userIDs {
		out[i] = "<@" + id + ">"
	}
	return strings.Join(out, ", ")
}

// escapeMarkdown keeps user supplied text from breaking embed formatting.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("*", "\\*", "_", "\\_", "~", "\\~", "`", "\\`", "|", "\\|")
	return r.Replace(s)
}

func timestamp(g *dg.Giveaway) string {
	return fmt.Sprintf("<t:%d:f> (<t:%d:R>)", g.EndTime.Unix(), g.EndTime.Unix())
}

// giveawayEmbed renders the announcement for any status.
func giveawayEmbed(g *dg.Giveaway) *discordgo.MessageEmbed {
	var desc strings.Builder
	switch g.Status {
	case dg.GiveawayStatusActive:
		desc.WriteString("Click 🎉 to enter!\n\n")
	case dg.GiveawayStatusCancelled:
		desc.WriteString("**This giveaway has been cancelled.**\n\n")
	default:
		if len(g.WinnerIDs) == 0 {
			desc.WriteString("**No one joined the giveaway.**\n\n")
		} else {
			fmt.Fprintf(&desc, "Winners: %s\n\n", mentions(g.WinnerIDs))
		}
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Prize", Value: escapeMarkdown(g.Prize), Inline: true},
		{Name: "Winners", Value: strconv.Itoa(g.WinnerCount), Inline: true},
		{Name: "Participants", Value: strconv.Itoa(len(g.Participants)), Inline: true},
	}
	if g.IsActive() {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Ends", Value: timestamp(g)})
	} else {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Ended", Value: fmt.Sprintf("<t:%d:f>", endedAt(g).Unix())})
	}
	if g.DonorName != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Donated by", Value: escapeMarkdown(g.DonorName), Inline: true})
	}
	if g.HostID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Hosted by", Value: "<@" + g.HostID + ">", Inline: true})
	}
	if req := requirementsText(g.Requirements); req != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Requirements", Value: req})
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎉 " + escapeMarkdown(g.Prize),
		Description: strings.TrimSpace(desc.String()),
		Color:       colorActive,
		Fields:      fields,
		Timestamp:   g.EndTime.UTC().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Ends at"},
	}
	if g.ID != "" {
		embed.Footer.Text = "ID: " + g.ID + " • Ends at"
	}
	switch g.Status {
	case dg.GiveawayStatusEnded:
		embed.Color = colorEnded
		embed.Footer.Text = strings.Replace(embed.Footer.Text, "Ends at", "Ended", 1)
	case dg.GiveawayStatusCancelled:
		embed.Color = colorCancelled
		embed.Footer.Text = strings.Replace(embed.Footer.Text, "Ends at", "Cancelled", 1)
	}
	return embed
}

func endedAt(g *dg.Giveaway) time.Time {
	if !g.EndedAt.IsZero() {
		return g.EndedAt
	}
	return g.EndTime
}

func requirementsText(r dg.Requirements) string {
	var lines []string
	if r.RequiredRoleID != "" {
		lines = append(lines, "Role: <@&"+r.RequiredRoleID+">")
	}
	if r.MinAccountAgeDays > 0 {
		lines = append(lines, fmt.Sprintf("Account age: %d+ days", r.MinAccountAgeDays))
	}
	if r.MinMembershipDays > 0 {
		lines = append(lines, fmt.Sprintf("In server: %d+ days", r.MinMembershipDays))
	}
	return strings.Join(lines, "\n")
}

// controls returns the announcement buttons for the giveaway's status.
// Cancelled giveaways have none.
func controls(g *dg.Giveaway) []discordgo.MessageComponent {
	if g.Status == dg.GiveawayStatusCancelled {
		return []discordgo.MessageComponent{}
	}
	active := g.IsActive()
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Emoji:    &discordgo.ComponentEmoji{Name: "🎉"},
					Label:    "Join",
					Style:    discordgo.PrimaryButton,
					CustomID: buttonJoin,
					Disabled: !active,
				},
				discordgo.Button{
					Label:    "Participants",
					Style:    discordgo.SecondaryButton,
					CustomID: buttonParticipants,
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.DangerButton,
					CustomID: buttonCancel,
					Disabled: !active,
				},
				discordgo.Button{
					Label:    "Reroll",
					Style:    discordgo.SecondaryButton,
					CustomID: buttonReroll,
					Disabled: active,
				},
			},
		},
	}
}

// resultMessage is posted in the channel when a giveaway resolves or is rerolled.
func resultMessage(g *dg.Giveaway, reroll bool) *discordgo.MessageSend {
	link := []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label: "Original message",
					Style: discordgo.LinkButton,
					URL:   messageLink(g.GuildID, g.ChannelID, g.ID),
				},
			},
		},
	}

	if len(g.WinnerIDs) == 0 {
		return &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "No one joined the giveaway.",
				Description: fmt.Sprintf("Nobody entered the giveaway for **%s**.", escapeMarkdown(g.Prize)),
				Color:       colorEnded,
			}},
			Components: link,
		}
	}

	verb := "has"
	if len(g.WinnerIDs) > 1 {
		verb = "have"
	}
	title := fmt.Sprintf("Giveaway for %s has ended!", g.Prize)
	if reroll {
		title = fmt.Sprintf("New winners for %s!", g.Prize)
	}
	return &discordgo.MessageSend{
		Content: "Congratulations " + mentions(g.WinnerIDs) + "! 🎉",
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: fmt.Sprintf("%s %s won **%s**", mentions(g.WinnerIDs), verb, escapeMarkdown(g.Prize)),
			Color:       colorWinners,
		}},
		Components: link,
		Reference: &discordgo.MessageReference{
			MessageID: g.ID,
			ChannelID: g.ChannelID,
			GuildID:   g.GuildID,
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: g.WinnerIDs},
	}
}

func pageCount(total int) int {
	pages := (total + participantsPerPage - 1) / participantsPerPage
	if pages == 0 {
		pages = 1
	}
	return pages
}

// participantsPage renders one page of the participant list; page is
// clamped into range.
func participantsPage(g *dg.Giveaway, page int) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	total := len(g.Participants)
	pages := pageCount(total)
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}

	start := page * participantsPerPage
	end := start + participantsPerPage
	if end > total {
		end = total
	}
	entries := make([]string, 0, end-start)
	for n, uid := range g.Participants[start:end] {
		entries = append(entries, fmt.Sprintf("%d. <@%s>", start+n+1, uid))
	}
	description := strings.Join(entries, "\n")
	if len(entries) == 0 {
		description = "*No participants yet.*"
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Participants (%d total)", total),
		Description: description,
		Color:       colorActive,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d of %d", page+1, pages)},
	}

	components := []discordgo.MessageComponent{}
	if pages > 1 {
		components = append(components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Previous",
					Style:    discordgo.SecondaryButton,
					CustomID: pageID(g.ID, page-1),
					Disabled: page == 0,
				},
				discordgo.Button{
					Label:    "Next",
					Style:    discordgo.SecondaryButton,
					CustomID: pageID(g.ID, page+1),
					Disabled: page >= pages-1,
				},
			},
		})
	}
	return embed, components
}

func pageID(giveawayID string, page int) string {
	if page < 0 {
		page = 0
	}
	return fmt.Sprintf("%s%s:%d", pagePrefix, giveawayID, page)
}

// parsePageID reverses pageID.
func parsePageID(customID string) (giveawayID string, page int, ok bool) {
	rest, found := strings.CutPrefix(customID, pagePrefix)
	if !found {
		return "", 0, false
	}
	id, p, found := strings.Cut(rest, ":")
	if !found || id == "" {
		return "", 0, false
	}
	page, err := strconv.Atoi(p)
	if err != nil || page < 0 {
		return "", 0, false
	}
	return id, page, true
}

// listEmbed summarizes giveaways for /glist.
func listEmbed(title string, gs []*dg.Giveaway) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(gs))
	for _, g := range gs {
		if len(fields) == 25 {
			break
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("%s (ID: %s)", escapeMarkdown(g.Prize), g.ID),
			Value: fmt.Sprintf("Ends: <t:%d:R> • Participants: %d\n%s",
				g.EndTime.Unix(), len(g.Participants), messageLink(g.GuildID, g.ChannelID, g.ID)),
		})
	}
	return &discordgo.MessageEmbed{
		Title:  title,
		Color:  colorActive,
		Fields: fields,
	}
}
