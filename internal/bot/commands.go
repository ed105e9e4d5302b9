package bot

import "github.com/bwmarrin/discordgo"

const (
	cmdGiveaway     = "giveaway"
	cmdEnd          = "gend"
	cmdCancel       = "gcancel"
	cmdReroll       = "greroll"
	cmdList         = "glist"
	cmdInfo         = "ginfo"
	cmdSubscription = "subscription"
	cmdBuy          = "buy"
)

var manageMessages int64 = discordgo.PermissionManageMessages

func idOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "id",
		Description: description,
		Required:    true,
	}
}

// Commands returns the slash commands to register. The subscription
// commands are only included when subscriptions are enabled.
func Commands(subscriptions bool) []*discordgo.ApplicationCommand {
	minOne := 1.0
	minZero := 0.0

	cmds := []*discordgo.ApplicationCommand{
		{
			Name:                     cmdGiveaway,
			Description:              "Start a giveaway in this channel",
			DefaultMemberPermissions: &manageMessages,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prize",
					Description: "What is being given away",
					Required:    true,
					MaxLength:   256,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "How long it runs, e.g. 30s, 10m, 2h, 1d2h30m",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "winners",
					Description: "Number of winners (default 1)",
					MinValue:    &minOne,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role required to join (Pro)",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "donor",
					Description: "Who donated the prize",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "min_account_age",
					Description: "Minimum account age in days (Pro)",
					MinValue:    &minZero,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "min_server_days",
					Description: "Minimum days in this server (Pro)",
					MinValue:    &minZero,
				},
			},
		},
		{
			Name:                     cmdEnd,
			Description:              "End a giveaway now and draw winners",
			DefaultMemberPermissions: &manageMessages,
			Options:                  []*discordgo.ApplicationCommandOption{idOption("Giveaway ID (message ID)")},
		},
		{
			Name:                     cmdCancel,
			Description:              "Cancel a giveaway without drawing winners",
			DefaultMemberPermissions: &manageMessages,
			Options:                  []*discordgo.ApplicationCommandOption{idOption("Giveaway ID (message ID)")},
		},
		{
			Name:                     cmdReroll,
			Description:              "Draw new winners for an ended giveaway",
			DefaultMemberPermissions: &manageMessages,
			Options:                  []*discordgo.ApplicationCommandOption{idOption("Giveaway ID (message ID)")},
		},
		{
			Name:        cmdList,
			Description: "List running giveaways in this server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Only giveaways this user entered",
				},
			},
		},
		{
			Name:        cmdInfo,
			Description: "Show details of a giveaway",
			Options:     []*discordgo.ApplicationCommandOption{idOption("Giveaway ID (message ID)")},
		},
	}

	if subscriptions {
		cmds = append(cmds,
			&discordgo.ApplicationCommand{
				Name:        cmdSubscription,
				Description: "Check this server's subscription status",
			},
			&discordgo.ApplicationCommand{
				Name:        cmdBuy,
				Description: "Upgrade this server to Pro",
			},
		)
	}
	return cmds
}
