package bot

import (
	"context"
	"fmt"
	"time"

	"modbot/internal/analytics"
	"modbot/internal/audit"
	"modbot/internal/config"
	"modbot/internal/prompt"
	"modbot/internal/reminder"
	"modbot/internal/storage"
	"modbot/internal/suspicious"
	"modbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	audit     *audit.Logger
	analytics *analytics.Service
	prompts   prompt.Store
	session   *discordgo.Session
	gateway   *Gateway
	reports   *suspicious.Service
	reminders *reminder.Scheduler
	limiter   *utils.KeyedLimiter
	stop      chan struct{}
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, analyticsEngine *analytics.Service, prompts prompt.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages

	gateway := NewGateway(session)
	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		analytics: analyticsEngine,
		prompts:   prompts,
		session:   session,
		gateway:   gateway,
		limiter:   utils.NewKeyedLimiter(cfg.Reports.MaxPerWindow, time.Duration(cfg.Reports.WindowSeconds)*time.Second),
		stop:      make(chan struct{}),
	}

	b.reports = suspicious.NewService(suspicious.Config{
		ChannelID:      cfg.Channels.SuspiciousUsers,
		GuildID:        cfg.GuildID,
		ModeratorRoles: cfg.ModeratorRoles(),
		Colors: suspicious.Colors{
			Info:    cfg.Colors.Info,
			Success: cfg.Colors.Success,
			Error:   cfg.Colors.Error,
		},
	}, store, gateway, gateway, auditLogger, logger.Named("suspicious"))
	b.reminders = reminder.New(store, gateway, logger.Named("reminder"))

	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, entry storage.AuditLog) {
			if b.cfg.Channels.Log == "" {
				return
			}
			b.notifyAudit(ctx, entry)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	ctx := context.Background()
	if err := b.reminders.Load(ctx); err != nil {
		b.logger.Error("reminder load failed", zap.Error(err))
	}
	b.reminders.Start()
	b.reportOrphans(ctx)
	b.startMaintenance()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	close(b.stop)
	done := make(chan struct{})
	go func() {
		b.reminders.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

// reportOrphans lists reports whose creation never finished so an operator
// can reconcile them by hand.
func (b *Bot) reportOrphans(ctx context.Context) {
	orphans, err := b.reports.Orphans(ctx)
	if err != nil {
		b.logger.Error("orphan lookup failed", zap.Error(err))
		return
	}
	for _, report := range orphans {
		b.logger.Warn("incomplete suspicious report",
			zap.Int64("report_id", report.ID),
			zap.String("user_id", report.UserID),
			zap.String("message_id", report.MessageID),
			zap.String("thread_id", report.ThreadID))
	}
}

// startMaintenance runs the daily audit retention cleanup and summary, and
// sweeps the in-memory prompt store.
func (b *Bot) startMaintenance() {
	sweeper, _ := b.prompts.(*prompt.MemoryStore)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-ticker.C:
				if sweeper != nil {
					sweeper.Sweep()
				}
				b.limiter.Prune(time.Now())
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-ticker.C:
				b.runDaily(context.Background())
			}
		}
	}()
}

func (b *Bot) runDaily(ctx context.Context) {
	if b.cfg.RetentionDays > 0 {
		if err := b.store.CleanupAuditLogs(ctx, b.cfg.RetentionDays); err != nil {
			b.logger.Warn("audit cleanup failed", zap.Error(err))
		}
	}
	if b.cfg.Channels.Log == "" || b.analytics == nil {
		return
	}
	report, err := b.analytics.Report(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		b.logger.Warn("daily summary failed", zap.Error(err))
		return
	}
	embed := b.commandEmbed("Daily moderation summary", summaryDescription(report, 1), b.cfg.Colors.Info, summaryFields(report))
	if err := b.gateway.SendEmbed(ctx, b.cfg.Channels.Log, embed); err != nil {
		b.logger.Warn("daily summary send failed", zap.Error(err))
	}
}

func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	embed := b.commandEmbed(auditEventLabel(entry.Event), entry.Details, b.levelColor(entry.Level), nil)
	if entry.ActorID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "By", Value: fmt.Sprintf("<@%s>", entry.ActorID), Inline: true})
	}
	if err := b.gateway.SendEmbed(ctx, b.cfg.Channels.Log, embed); err != nil {
		b.logger.Warn("audit notify failed", zap.String("event", entry.Event), zap.Error(err))
	}
}

func (b *Bot) levelColor(level string) int {
	switch level {
	case audit.LevelWarn, audit.LevelCrit:
		return b.cfg.Colors.Error
	default:
		return b.cfg.Colors.Info
	}
}

func auditEventLabel(event string) string {
	switch event {
	case audit.EventReportCreated:
		return "Suspicious user reported"
	case audit.EventReportApproved:
		return "Suspicious user report approved"
	case audit.EventReportDenied:
		return "Suspicious user report denied"
	case audit.EventPlaceholderAdd:
		return "Placeholder added"
	case audit.EventPlaceholderEdit:
		return "Placeholder edited"
	case audit.EventPlaceholderDelete:
		return "Placeholder deleted"
	case audit.EventSnippetSet:
		return "Snippet saved"
	case audit.EventSnippetDelete:
		return "Snippet deleted"
	case audit.EventReminderAdd:
		return "Reminder added"
	case audit.EventReminderDelete:
		return "Reminder deleted"
	case audit.EventTeamPoints:
		return "Team points changed"
	default:
		return event
	}
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         content,
			Flags:           flags,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:          []*discordgo.MessageEmbed{embed},
			Flags:           flags,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
}

func (b *Bot) respondError(session *discordgo.Session, interaction *discordgo.InteractionCreate, message string) {
	b.respondEmbed(session, interaction, b.commandEmbed("", message, b.cfg.Colors.Error, nil), true)
}

func (b *Bot) respondSuccess(session *discordgo.Session, interaction *discordgo.InteractionCreate, message string) {
	b.respondEmbed(session, interaction, b.commandEmbed("", message, b.cfg.Colors.Success, nil), true)
}

// deferReply acknowledges an interaction whose work needs more than the three
// seconds Discord allows; the answer follows through followup.
func (b *Bot) deferReply(session *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	return session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (b *Bot) followup(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if _, err := session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	}); err != nil {
		b.logger.Warn("followup failed", zap.Error(err))
	}
}

func (b *Bot) followupError(session *discordgo.Session, interaction *discordgo.InteractionCreate, message string) {
	b.followup(session, interaction, b.commandEmbed("", message, b.cfg.Colors.Error, nil))
}

func (b *Bot) followupSuccess(session *discordgo.Session, interaction *discordgo.InteractionCreate, message string) {
	b.followup(session, interaction, b.commandEmbed("", message, b.cfg.Colors.Success, nil))
}
