package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"modbot/internal/audit"
	"modbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	defaultPointLogs = 10
	maxPointLogs     = 25
)

func formatPoints(points float64) string {
	value := strconv.FormatFloat(points, 'f', -1, 64)
	if points > 0 {
		value = "+" + value
	}
	return value
}

func clampCount(count int64) uint64 {
	switch {
	case count <= 0:
		return defaultPointLogs
	case count > maxPointLogs:
		return maxPointLogs
	default:
		return uint64(count)
	}
}

func (b *Bot) handleTeamPointsCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	sub, args := splitSubcommand(opts)
	switch sub {
	case "add":
		points, _ := args.float("points")
		reason := args.string("reason")
		if points == 0 {
			b.respondError(session, interaction, "The point change cannot be zero.")
			return
		}
		if reason == "" {
			b.respondError(session, interaction, userMessage(invalidInput("Please provide a reason.")))
			return
		}
		entry := &storage.TeamPointsLog{
			RoleID:      args.id("role"),
			ActorID:     actorID(interaction),
			PointChange: points,
			Reason:      reason,
		}
		if err := b.store.AddTeamPointsLog(ctx, entry); err != nil {
			b.logFailure("team points add", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		line := fmt.Sprintf("%s points for <@&%s> by %s: %s", formatPoints(points), entry.RoleID, mentionUser(entry.ActorID), reason)
		b.audit.Log(ctx, audit.LevelInfo, entry.ActorID, audit.EventTeamPoints, line)
		if b.cfg.Channels.PointLog != "" {
			embed := b.commandEmbed("Team points", line, b.cfg.Colors.Info, nil)
			if err := b.gateway.SendEmbed(ctx, b.cfg.Channels.PointLog, embed); err != nil {
				b.logger.Warn("point log send failed", zap.Int64("log_id", entry.ID), zap.Error(err))
			}
		}
		b.respondSuccess(session, interaction, fmt.Sprintf("Recorded %s points for <@&%s>.", formatPoints(points), entry.RoleID))
	case "logs":
		logs, err := b.store.ListTeamPointsLogs(ctx, storage.TeamPointsFilter{
			RoleID:  args.id("role"),
			ActorID: args.id("actor"),
			Count:   clampCount(args.int("count", 0)),
		})
		if err != nil {
			b.logFailure("team points logs", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		description := formatPointLogs(logs)
		if description == "" {
			description = "No point changes found."
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Team points", description, b.cfg.Colors.Info, nil), true)
	default:
		b.respondError(session, interaction, "Unknown subcommand.")
	}
}

func formatPointLogs(logs []storage.TeamPointsLog) string {
	var out strings.Builder
	for _, log := range logs {
		fmt.Fprintf(&out, "<t:%d:d> **%s** <@&%s> by %s: %s\n",
			log.CreatedAt.Unix(), formatPoints(log.PointChange), log.RoleID, mentionUser(log.ActorID), shorten(log.Reason, 100))
	}
	return truncateDescription(out.String())
}
