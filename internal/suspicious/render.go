package suspicious

import (
	"fmt"
	"time"

	"modbot/internal/storage"

	"github.com/bwmarrin/discordgo"
)

type Message struct {
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// Render builds the report summary. The approve and deny buttons are only
// attached while the report is pending.
func (s *Service) Render(report storage.SuspiciousReport) Message {
	embed := &discordgo.MessageEmbed{
		Title: "Suspicious User Report",
		Color: s.cfg.Colors.Info,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: mention(report.UserID)},
			{Name: "Reporter", Value: mention(report.SubmitterID)},
			{Name: "Evidence", Value: truncate(report.Evidence, 1024)},
		},
	}

	switch report.State {
	case storage.ReportApproved:
		embed.Color = s.cfg.Colors.Success
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Approved",
			Value: truncate(fmt.Sprintf("Approved by %s for reason: %s", mention(report.ModeratorID), report.Reason), 1024),
		})
	case storage.ReportDenied:
		embed.Color = s.cfg.Colors.Error
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Denied",
			Value: truncate(fmt.Sprintf("Denied by %s for reason: %s", mention(report.ModeratorID), report.Reason), 1024),
		})
	}

	msg := Message{Embed: embed, Components: []discordgo.MessageComponent{}}
	if report.State == storage.ReportPending {
		msg.Components = append(msg.Components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Approve", Style: discordgo.PrimaryButton, CustomID: ButtonID(report.ID, storage.ReportApproved)},
				discordgo.Button{Label: "Deny", Style: discordgo.DangerButton, CustomID: ButtonID(report.ID, storage.ReportDenied)},
			},
		})
	}
	return msg
}

func (s *Service) outcomeNotice(report storage.SuspiciousReport) Message {
	title, verb, color := "Suspicious User Accepted", "accepted", s.cfg.Colors.Success
	if report.State == storage.ReportDenied {
		title, verb, color = "Suspicious User Denied", "denied", s.cfg.Colors.Error
	}
	return Message{Embed: &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("Your suspicious user has been %s.\nReason: %s", verb, report.Reason),
		Color:       color,
		Timestamp:   s.now().UTC().Format(time.RFC3339),
	}}
}

func mention(id string) string {
	return fmt.Sprintf("<@%s> (%s)", id, id)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
