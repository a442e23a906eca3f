package bot

import "github.com/bwmarrin/discordgo"

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

var snippetTypeChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "snippet", Value: "snippet"},
	{Name: "rule", Value: "rule"},
	{Name: "team", Value: "team"},
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	dmDisabled := false
	return []*discordgo.ApplicationCommand{
		{
			Name:         "suspicious",
			Description:  "Suspicious user reports",
			DMPermission: &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("report", "Report a suspicious user to the moderators",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "User to report",
						Required:    true,
					},
					stringOption("evidence", "What did they do? Links and message ids help", true),
				),
			},
		},
		{
			Name:         "placeholder",
			Description:  "List and manage placeholders",
			DMPermission: &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("list", "List all placeholders"),
				subcommand("add", "Add a placeholder",
					stringOption("name", "Placeholder name", true),
					stringOption("language", "Placeholder language (ISO 639-1)", true),
					stringOption("body", "Placeholder body", false),
				),
				subcommand("edit", "Edit a placeholder",
					stringOption("name", "Placeholder name", true),
					stringOption("language", "Placeholder language (ISO 639-1)", true),
					stringOption("body", "Placeholder body", false),
				),
				subcommand("delete", "Delete a placeholder",
					stringOption("name", "Placeholder name", true),
					stringOption("language", "Placeholder language (ISO 639-1)", true),
				),
				subcommand("info", "Get info about a placeholder",
					stringOption("name", "Placeholder name", true),
					stringOption("language", "Placeholder language (ISO 639-1)", true),
				),
			},
		},
		{
			Name:        "team",
			Description: "Get an invite for a build team",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("team", "Team to get", true),
			},
		},
		{
			Name:         "snippet",
			Description:  "Manage snippets, rules and team invites",
			DMPermission: &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("set", "Create or replace a snippet",
					stringOption("name", "Snippet name", true),
					stringOption("language", "Snippet language (ISO 639-1)", true),
					stringOption("body", "Snippet body", true),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "type",
						Description: "Snippet type",
						Choices:     snippetTypeChoices,
					},
					stringOption("aliases", "Comma separated aliases", false),
				),
				subcommand("delete", "Delete a snippet",
					stringOption("name", "Snippet name", true),
					stringOption("language", "Snippet language (ISO 639-1)", true),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "type",
						Description: "Snippet type",
						Choices:     snippetTypeChoices,
					},
				),
				subcommand("list", "List snippets",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "type",
						Description: "Snippet type",
						Choices:     snippetTypeChoices,
					},
				),
				subcommand("show", "Show a snippet",
					stringOption("name", "Snippet name or alias", true),
					stringOption("language", "Snippet language (ISO 639-1)", false),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "type",
						Description: "Snippet type",
						Choices:     snippetTypeChoices,
					},
				),
			},
		},
		{
			Name:         "check",
			Description:  "Check a user's punishment records",
			DMPermission: &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to get records of",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "deleted",
					Description: "Show deleted cases instead",
				},
			},
		},
		{
			Name:         "reminder",
			Description:  "Manage recurring reminders",
			DMPermission: &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("add", "Add a reminder",
					&discordgo.ApplicationCommandOption{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "Channel to post in",
						Required:     true,
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					},
					stringOption("interval", "Cron expression, e.g. \"0 18 * * 5\" or \"@every 12h\"", true),
					stringOption("message", "Message to post", true),
				),
				subcommand("list", "List reminders"),
				subcommand("delete", "Delete a reminder",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "id",
						Description: "Reminder id",
						Required:    true,
					},
				),
			},
		},
		{
			Name:         "teampoints",
			Description:  "Team points ledger",
			DMPermission: &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("add", "Award or remove team points",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "Team role",
						Required:    true,
					},
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionNumber,
						Name:        "points",
						Description: "Point change, negative to remove",
						Required:    true,
					},
					stringOption("reason", "Reason for the change", true),
				),
				subcommand("logs", "Show recent point changes",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "Only this team",
					},
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "actor",
						Description: "Only changes made by this user",
					},
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "count",
						Description: "How many entries (default 10, max 25)",
					},
				),
			},
		},
		{
			Name:         "modlog",
			Description:  "Summarise recent moderation activity",
			DMPermission: &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "days",
					Description: "Look back this many days (default 7)",
				},
			},
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		guildID := guild.ID
		guildCmds, err := b.session.ApplicationCommands(appID, guildID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCmds {
			if _, ok := desired[cmd.Name]; ok {
				continue
			}
			_ = b.session.ApplicationCommandDelete(appID, guildID, cmd.ID)
		}
	}
	return nil
}
