package bot

import (
	"context"
	"errors"
	"strings"

	"modbot/internal/prompt"
	"modbot/internal/reminder"
	"modbot/internal/storage"
	"modbot/internal/suspicious"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var (
	errNoPermission = errors.New("no permission")
	errGuildOnly    = errors.New("guild only")
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, session, interaction)
	case discordgo.InteractionMessageComponent:
		customID := interaction.MessageComponentData().CustomID
		if suspicious.IsButtonID(customID) {
			b.handleSuspiciousButton(ctx, session, interaction, customID)
		}
	case discordgo.InteractionModalSubmit:
		data := interaction.ModalSubmitData()
		if prompt.IsID(data.CustomID) {
			b.handlePromptSubmit(ctx, session, interaction, data)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "suspicious":
		b.handleSuspiciousCommand(ctx, session, interaction, data.Options)
	case "placeholder":
		if !b.permitted(ctx, session, interaction, b.cfg.PlaceholderRoles()) {
			return
		}
		b.handlePlaceholderCommand(ctx, session, interaction, data.Options)
	case "team":
		b.handleTeamCommand(ctx, session, interaction, data.Options)
	case "snippet":
		b.handleSnippetCommand(ctx, session, interaction, data.Options)
	case "check":
		if !b.permitted(ctx, session, interaction, b.cfg.CheckRoles()) {
			return
		}
		b.handleCheckCommand(ctx, session, interaction, data.Options)
	case "reminder":
		if !b.permitted(ctx, session, interaction, b.cfg.ManagerRoles()) {
			return
		}
		b.handleReminderCommand(ctx, session, interaction, data.Options)
	case "teampoints":
		if !b.permitted(ctx, session, interaction, b.cfg.ManagerRoles()) {
			return
		}
		b.handleTeamPointsCommand(ctx, session, interaction, data.Options)
	case "modlog":
		if !b.permitted(ctx, session, interaction, b.cfg.ManagerRoles()) {
			return
		}
		b.handleModlogCommand(ctx, session, interaction, data.Options)
	default:
		b.respondError(session, interaction, "Unknown command.")
	}
}

// permitted answers the interaction with an error when the caller holds
// none of roles in the main guild.
func (b *Bot) permitted(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, roles []string) bool {
	userID := actorID(interaction)
	ok, err := b.gateway.HasAnyRole(ctx, b.cfg.GuildID, userID, roles)
	if err != nil {
		b.logger.Warn("role lookup failed", zap.String("user_id", userID), zap.Error(err))
	}
	if !ok {
		b.respondError(session, interaction, userMessage(errNoPermission))
		return false
	}
	return true
}

func actorID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func (b *Bot) logFailure(action string, err error) {
	if isUserError(err) {
		return
	}
	b.logger.Error(action+" failed", zap.Error(err))
}

// userMessage turns a handler error into the text shown to the caller.
func userMessage(err error) string {
	switch {
	case errors.Is(err, errNoPermission), errors.Is(err, suspicious.ErrUnauthorized):
		return "You do not have permission to do that."
	case errors.Is(err, errGuildOnly):
		return "This command can only be used in the server."
	case errors.Is(err, suspicious.ErrNotFound):
		return "That report no longer exists."
	case errors.Is(err, suspicious.ErrAlreadyResolved):
		return "That report has already been handled."
	case errors.Is(err, suspicious.ErrChannelUnavailable):
		return "The report could not be posted because the suspicious users channel is unavailable."
	case errors.Is(err, suspicious.ErrThreadUnavailable):
		return "The report was posted but its discussion thread could not be created."
	case errors.Is(err, suspicious.ErrEvidenceRequired):
		return "Please provide evidence."
	case errors.Is(err, suspicious.ErrReasonRequired):
		return "Please provide a reason."
	case errors.Is(err, suspicious.ErrModeratorRequired):
		return "Could not tell who is resolving this report."
	case errors.Is(err, prompt.ErrExpired):
		return "This form has expired. Please start again."
	case errors.Is(err, reminder.ErrInvalidSchedule):
		return "That is not a valid cron expression."
	case errors.Is(err, reminder.ErrInvalidMessage):
		return "Reminder messages must be between 1 and 1024 characters."
	case errors.Is(err, reminder.ErrNotFound):
		return "No reminder with that id."
	default:
		var invalid invalidInput
		if errors.As(err, &invalid) {
			return string(invalid)
		}
		return "Something went wrong. Please try again later."
	}
}

// invalidInput is an error whose text is safe to show as is.
type invalidInput string

func (e invalidInput) Error() string { return string(e) }

func isUserError(err error) bool {
	var invalid invalidInput
	return errors.As(err, &invalid) ||
		errors.Is(err, errNoPermission) ||
		errors.Is(err, errGuildOnly) ||
		errors.Is(err, suspicious.ErrUnauthorized) ||
		errors.Is(err, suspicious.ErrNotFound) ||
		errors.Is(err, suspicious.ErrAlreadyResolved) ||
		errors.Is(err, suspicious.ErrEvidenceRequired) ||
		errors.Is(err, suspicious.ErrReasonRequired) ||
		errors.Is(err, suspicious.ErrModeratorRequired) ||
		errors.Is(err, prompt.ErrExpired) ||
		errors.Is(err, reminder.ErrInvalidSchedule) ||
		errors.Is(err, reminder.ErrInvalidMessage) ||
		errors.Is(err, reminder.ErrNotFound) ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrConflict)
}

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	out := make(options, len(opts))
	for _, opt := range opts {
		out[opt.Name] = opt
	}
	return out
}

// splitSubcommand returns the chosen subcommand and its options.
func splitSubcommand(opts []*discordgo.ApplicationCommandInteractionDataOption) (string, options) {
	if len(opts) == 0 || opts[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return "", optionMap(opts)
	}
	return opts[0].Name, optionMap(opts[0].Options)
}

func (o options) string(name string) string {
	if opt, ok := o[name]; ok {
		return strings.TrimSpace(opt.StringValue())
	}
	return ""
}

func (o options) int(name string, fallback int64) int64 {
	if opt, ok := o[name]; ok {
		return opt.IntValue()
	}
	return fallback
}

func (o options) float(name string) (float64, bool) {
	if opt, ok := o[name]; ok {
		return opt.FloatValue(), true
	}
	return 0, false
}

func (o options) bool(name string) bool {
	if opt, ok := o[name]; ok {
		return opt.BoolValue()
	}
	return false
}

// id returns the raw snowflake of a user, role or channel option.
func (o options) id(name string) string {
	if opt, ok := o[name]; ok {
		if value, ok := opt.Value.(string); ok {
			return value
		}
	}
	return ""
}

func modalValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == customID {
				return strings.TrimSpace(input.Value)
			}
		}
	}
	return ""
}

func (b *Bot) showModal(session *discordgo.Session, interaction *discordgo.InteractionCreate, customID, title string, input discordgo.TextInput) error {
	return session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customID,
			Title:    title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{input}},
			},
		},
	})
}

func (b *Bot) handlePromptSubmit(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData) {
	p, err := b.prompts.Take(ctx, data.CustomID)
	if err != nil {
		b.logFailure("prompt lookup", err)
		b.respondError(session, interaction, userMessage(err))
		return
	}
	field, err := promptInput(p, actorID(interaction))
	if err != nil {
		b.respondError(session, interaction, userMessage(err))
		return
	}
	switch p.Kind {
	case prompt.KindSuspiciousResolution:
		b.completeSuspiciousResolution(ctx, session, interaction, p, modalValue(data, field))
	case prompt.KindPlaceholder:
		b.completePlaceholder(ctx, session, interaction, p, modalValue(data, field))
	}
}

// promptInput returns the modal field holding the answer to p. Only the user
// who opened the prompt may answer it.
func promptInput(p prompt.Prompt, submitterID string) (string, error) {
	if p.ActorID == "" || p.ActorID != submitterID {
		return "", errNoPermission
	}
	switch p.Kind {
	case prompt.KindSuspiciousResolution:
		return "reason", nil
	case prompt.KindPlaceholder:
		return "body", nil
	default:
		return "", prompt.ErrExpired
	}
}
