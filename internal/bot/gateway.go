package bot

import (
	"context"
	"errors"
	"net/http"

	"modbot/internal/suspicious"

	"github.com/bwmarrin/discordgo"
)

const threadArchiveWeek = 10080

// Gateway carries the suspicious report and reminder side effects over the
// Discord REST API.
type Gateway struct {
	session *discordgo.Session
}

func NewGateway(session *discordgo.Session) *Gateway {
	return &Gateway{session: session}
}

func (g *Gateway) Send(ctx context.Context, channelID string, msg suspicious.Message) (string, error) {
	sent, err := g.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:          embeds(msg.Embed),
		Components:      msg.Components,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return sent.ID, nil
}

func (g *Gateway) Edit(ctx context.Context, channelID, messageID string, msg suspicious.Message) error {
	components := msg.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := g.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     embeds(msg.Embed),
		Components: components,
	}, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) StartThread(ctx context.Context, channelID, messageID, name string) (string, error) {
	thread, err := g.session.MessageThreadStartComplex(channelID, messageID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: threadArchiveWeek,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

// CloseThread locks the thread before archiving it; an archived thread can
// no longer be edited.
func (g *Gateway) CloseThread(ctx context.Context, threadID string) error {
	locked := true
	if _, err := g.session.ChannelEditComplex(threadID, &discordgo.ChannelEdit{Locked: &locked}, discordgo.WithContext(ctx)); err != nil {
		return err
	}
	archived := true
	_, err := g.session.ChannelEditComplex(threadID, &discordgo.ChannelEdit{Archived: &archived}, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) DirectMessage(ctx context.Context, userID string, msg suspicious.Message) error {
	channel, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = g.Send(ctx, channel.ID, msg)
	return err
}

func (g *Gateway) SendText(ctx context.Context, channelID, content string) error {
	_, err := g.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := g.Send(ctx, channelID, suspicious.Message{Embed: embed})
	return err
}

// Member returns nil without an error when the user is not in the guild.
func (g *Gateway) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if g.session.State != nil {
		if member, err := g.session.State.Member(guildID, userID); err == nil && member != nil {
			return member, nil
		}
	}
	member, err := g.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			return nil, nil
		}
		return nil, err
	}
	return member, nil
}

func (g *Gateway) HasAnyRole(ctx context.Context, guildID, userID string, roleIDs []string) (bool, error) {
	member, err := g.Member(ctx, guildID, userID)
	if err != nil || member == nil {
		return false, err
	}
	return hasAnyRole(member.Roles, roleIDs), nil
}

func hasAnyRole(held, wanted []string) bool {
	for _, role := range held {
		for _, want := range wanted {
			if role == want {
				return true
			}
		}
	}
	return false
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && (restErr.Message.Code == discordgo.ErrCodeUnknownMember || restErr.Message.Code == discordgo.ErrCodeUnknownUser) {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func embeds(embed *discordgo.MessageEmbed) []*discordgo.MessageEmbed {
	if embed == nil {
		return nil
	}
	return []*discordgo.MessageEmbed{embed}
}
