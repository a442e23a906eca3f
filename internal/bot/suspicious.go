package bot

import (
	"context"
	"fmt"
	"time"

	"modbot/internal/prompt"
	"modbot/internal/storage"
	"modbot/internal/suspicious"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) promptTTL() time.Duration {
	if b.cfg.Prompts.TTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(b.cfg.Prompts.TTLMinutes) * time.Minute
}

func (b *Bot) handleSuspiciousCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	sub, args := splitSubcommand(opts)
	if sub != "report" {
		b.respondError(session, interaction, "Unknown subcommand.")
		return
	}
	if interaction.GuildID == "" || interaction.GuildID != b.cfg.GuildID {
		b.respondError(session, interaction, userMessage(errGuildOnly))
		return
	}
	submitterID := actorID(interaction)
	if !b.limiter.Allow(submitterID, time.Now()) {
		b.respondError(session, interaction, "You are reporting users too quickly. Please wait a moment.")
		return
	}

	if err := b.deferReply(session, interaction); err != nil {
		b.logFailure("suspicious defer", err)
		return
	}
	report, err := b.reports.Create(ctx, args.id("user"), submitterID, args.string("evidence"))
	if err != nil {
		b.logFailure("suspicious report", err)
		b.followupError(session, interaction, userMessage(err))
		return
	}
	b.followupSuccess(session, interaction, fmt.Sprintf("Thank you. Report #%d for %s was sent to the moderators.", report.ID, mentionUser(report.UserID)))
}

func (b *Bot) handleSuspiciousButton(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, customID string) {
	id, outcome, ok := suspicious.ParseButtonID(customID)
	if !ok {
		b.respondError(session, interaction, "Unknown button.")
		return
	}
	moderatorID := actorID(interaction)
	if _, err := b.reports.BeginResolution(ctx, moderatorID, id, outcome); err != nil {
		b.logFailure("suspicious button", err)
		b.respondError(session, interaction, userMessage(err))
		return
	}

	promptID, err := b.prompts.Put(ctx, prompt.Prompt{
		Kind:     prompt.KindSuspiciousResolution,
		ReportID: id,
		Outcome:  string(outcome),
		ActorID:  moderatorID,
	}, b.promptTTL())
	if err != nil {
		b.logFailure("suspicious prompt", err)
		b.respondError(session, interaction, userMessage(err))
		return
	}

	title, placeholder := "Approve Suspicious User", "The user was punished."
	if outcome == storage.ReportDenied {
		title, placeholder = "Deny Suspicious User", "Denial Reason"
	}
	if err := b.showModal(session, interaction, promptID, title, discordgo.TextInput{
		CustomID:    "reason",
		Label:       "Reason",
		Style:       discordgo.TextInputParagraph,
		Placeholder: placeholder,
		Required:    true,
		MinLength:   1,
		MaxLength:   1024,
	}); err != nil {
		b.logFailure("suspicious modal", err)
	}
}

func (b *Bot) completeSuspiciousResolution(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, p prompt.Prompt, reason string) {
	if err := b.deferReply(session, interaction); err != nil {
		b.logFailure("suspicious defer", err)
		return
	}
	outcome := storage.ReportState(p.Outcome)
	report, err := b.reports.ResolveAs(ctx, actorID(interaction), p.ReportID, reason, outcome)
	if err != nil {
		b.logFailure("suspicious resolve", err)
		b.followupError(session, interaction, userMessage(err))
		return
	}
	verb := "approved"
	if report.Denied() {
		verb = "denied"
	}
	b.followupSuccess(session, interaction, fmt.Sprintf("Report #%d %s.", report.ID, verb))
}

func mentionUser(id string) string {
	return "<@" + id + ">"
}
