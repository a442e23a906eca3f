package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modbot/internal/analytics"

	"github.com/bwmarrin/discordgo"
)

const maxModlogDays = 90

func (b *Bot) handleModlogCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	days := int(optionMap(opts).int("days", 7))
	if days <= 0 || days > maxModlogDays {
		b.respondError(session, interaction, fmt.Sprintf("Days must be between 1 and %d.", maxModlogDays))
		return
	}
	report, err := b.analytics.Report(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		b.logFailure("modlog", err)
		b.respondError(session, interaction, userMessage(err))
		return
	}
	embed := b.commandEmbed("Moderation summary", summaryDescription(report, days), b.cfg.Colors.Info, summaryFields(report))
	b.respondEmbed(session, interaction, embed, true)
}

func summaryDescription(report analytics.Report, days int) string {
	period := "the last day"
	if days != 1 {
		period = fmt.Sprintf("the last %d days", days)
	}
	if report.Total == 0 {
		return fmt.Sprintf("No moderation activity in %s.", period)
	}
	return fmt.Sprintf("%d moderation actions in %s.", report.Total, period)
}

func summaryFields(report analytics.Report) []*discordgo.MessageEmbedField {
	if report.Total == 0 {
		return nil
	}
	var events strings.Builder
	for _, c := range report.Events() {
		fmt.Fprintf(&events, "%s: %d\n", auditEventLabel(c.Key), c.Count)
	}
	fields := []*discordgo.MessageEmbedField{{Name: "Events", Value: truncateField(events.String())}}

	var actors strings.Builder
	for _, c := range report.TopActors(5) {
		fmt.Fprintf(&actors, "%s: %d\n", mentionUser(c.Key), c.Count)
	}
	if actors.Len() > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Most active", Value: actors.String()})
	}
	return fields
}
