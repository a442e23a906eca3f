package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"modbot/internal/storage"

	"github.com/bwmarrin/discordgo"
)

type checkResult struct {
	UserID    string
	AvatarURL string
	Deleted   bool
	InGuild   bool
	Cases     []storage.ActionLog
	Current   *storage.TimedPunishment
	Note      *storage.ModerationNote
	Now       time.Time
}

func (b *Bot) handleCheckCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	args := optionMap(opts)
	userID := args.id("user")
	if userID == "" {
		b.respondError(session, interaction, "Please specify a user.")
		return
	}
	if err := b.deferReply(session, interaction); err != nil {
		b.logFailure("check defer", err)
		return
	}

	result := checkResult{UserID: userID, Deleted: args.bool("deleted"), Now: time.Now()}
	member, err := b.gateway.Member(ctx, b.cfg.GuildID, userID)
	if err != nil {
		b.logFailure("check member", err)
	}
	result.InGuild = member != nil
	if member != nil && member.User != nil {
		result.AvatarURL = member.User.AvatarURL("64")
	}

	result.Cases, err = b.store.ListActionLogs(ctx, userID, result.Deleted)
	if err != nil {
		b.logFailure("check cases", err)
		b.followupError(session, interaction, userMessage(err))
		return
	}
	if len(result.Cases) > 0 {
		current, err := b.store.CurrentPunishment(ctx, userID)
		switch {
		case err == nil:
			result.Current = &current
		case !errors.Is(err, storage.ErrNotFound):
			b.logFailure("check punishment", err)
		}
	}
	note, err := b.store.GetModerationNote(ctx, userID)
	switch {
	case err == nil:
		result.Note = &note
	case !errors.Is(err, storage.ErrNotFound):
		b.logFailure("check note", err)
	}

	embed := buildCheck(result)
	embed.Color = b.cfg.Colors.Success
	b.followup(session, interaction, embed)
}

// buildCheck renders a member's punishment record. Cases are grouped by
// action in a fixed order and the current timed punishment, if any, is
// called out with the case that created it.
func buildCheck(result checkResult) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{}
	if result.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: result.AvatarURL}
	}
	user := fmt.Sprintf("%s (%s)", mentionUser(result.UserID), result.UserID)

	if len(result.Cases) == 0 {
		embed.Description = fmt.Sprintf("No cases found for %s.", user)
	} else {
		var currentCase *storage.ActionLog
		if result.Current != nil {
			for i := range result.Cases {
				if result.Cases[i].PunishmentID == result.Current.ID {
					currentCase = &result.Cases[i]
					break
				}
			}
		}
		switch {
		case currentCase != nil:
			adjective := "banned"
			if result.Current.Type == "mute" {
				adjective = "muted"
			}
			attribute := " "
			if result.Deleted {
				attribute = " deleted "
			}
			embed.Description = fmt.Sprintf("%s is currently %s (**#%d**). Here are their%scases:", user, adjective, currentCase.ID, attribute)
		case result.Deleted:
			embed.Description = fmt.Sprintf("Deleted cases for %s:", user)
		default:
			embed.Description = fmt.Sprintf("Cases for %s:", user)
		}

		grouped := make(map[string][]string, len(storage.ActionTypes))
		anyOld := false
		for _, c := range result.Cases {
			old := c.Old(result.Now)
			anyOld = anyOld || old
			grouped[c.Action] = append(grouped[c.Action], formatCase(c, old))
		}
		if anyOld {
			embed.Description += "\n(Cases older than 3 months are marked with \\📜)."
		}
		for _, action := range storage.ActionTypes {
			lines := grouped[action]
			value := strings.Join(lines, "\n")
			if value == "" {
				value = "\u200B"
			}
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   fmt.Sprintf("%s%ss (%d)", strings.ToUpper(action[:1]), action[1:], len(lines)),
				Value:  truncateField(value),
				Inline: true,
			})
		}
	}

	if result.Note != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Notes", Value: truncateField(result.Note.Body), Inline: true})
	}
	if !result.InGuild {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "This user is not in the server."}
	}
	return embed
}

func formatCase(c storage.ActionLog, old bool) string {
	var line strings.Builder
	if old {
		line.WriteString("\\📜 ")
	}
	fmt.Fprintf(&line, "**#%d**", c.ID)
	if c.Length != nil && *c.Length > 0 {
		fmt.Fprintf(&line, " (%s)", c.Length.String())
	}
	if reason := strings.TrimSpace(c.Reason); reason != "" {
		line.WriteString(": ")
		line.WriteString(shorten(reason, 64))
	}
	return line.String()
}

func shorten(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func truncateField(value string) string {
	return shorten(value, 1024)
}
