package bot

import (
	"context"
	"fmt"
	"strings"

	"modbot/internal/audit"
	"modbot/internal/storage"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleReminderCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	sub, args := splitSubcommand(opts)
	switch sub {
	case "add":
		reminder, err := b.reminders.Add(ctx, args.id("channel"), args.string("interval"), args.string("message"))
		if err != nil {
			b.logFailure("reminder add", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, actorID(interaction), audit.EventReminderAdd,
			fmt.Sprintf("#%d in <#%s> (%s)", reminder.ID, reminder.ChannelID, reminder.Schedule))
		b.respondSuccess(session, interaction, fmt.Sprintf("Added reminder **#%d**. It next fires <t:%d:R>.", reminder.ID, reminder.NextFireDate.Unix()))
	case "list":
		reminders, err := b.reminders.List(ctx)
		if err != nil {
			b.logFailure("reminder list", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		description := formatReminderList(reminders)
		if description == "" {
			description = "There are no reminders."
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Reminders", description, b.cfg.Colors.Info, nil), true)
	case "delete":
		id := args.int("id", 0)
		if err := b.reminders.Delete(ctx, id); err != nil {
			b.logFailure("reminder delete", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, actorID(interaction), audit.EventReminderDelete, fmt.Sprintf("#%d", id))
		b.respondSuccess(session, interaction, fmt.Sprintf("Deleted reminder **#%d**.", id))
	default:
		b.respondError(session, interaction, "Unknown subcommand.")
	}
}

func formatReminderList(reminders []storage.Reminder) string {
	var out strings.Builder
	for _, r := range reminders {
		fmt.Fprintf(&out, "**#%d** <#%s> `%s` next <t:%d:R>\n%s\n", r.ID, r.ChannelID, r.Schedule, r.NextFireDate.Unix(), shorten(r.Message, 100))
	}
	return truncateDescription(out.String())
}

func truncateDescription(value string) string {
	return shorten(value, 4096)
}
