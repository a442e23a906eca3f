package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"modbot/internal/audit"
	"modbot/internal/prompt"
	"modbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	maxPlaceholderName = 32
	maxPlaceholderBody = 2000
)

func validLanguage(code string) bool {
	if len(code) != 2 {
		return false
	}
	_, err := language.ParseBase(code)
	return err == nil
}

func languageName(code string) string {
	if name := display.English.Languages().Name(language.Make(code)); name != "" {
		return name
	}
	return code
}

func validatePlaceholderName(name string) error {
	switch {
	case name == "":
		return invalidInput("Please provide a placeholder name.")
	case len([]rune(name)) > maxPlaceholderName:
		return invalidInput(fmt.Sprintf("Names can be at most %d characters long.", maxPlaceholderName))
	case strings.ContainsAny(name, "{}"):
		return invalidInput("Placeholder names cannot contain braces.")
	}
	return nil
}

func validatePlaceholderLanguage(code string) error {
	if code == "" {
		return invalidInput("Please provide a language.")
	}
	if !validLanguage(code) {
		return invalidInput("That is not a valid ISO 639-1 language code.")
	}
	return nil
}

// formatPlaceholderList renders one bullet per placeholder name with its
// languages, leaving out the list when English is the only one.
func formatPlaceholderList(placeholders []storage.Placeholder) string {
	languages := make(map[string][]string)
	for _, p := range placeholders {
		languages[p.Name] = append(languages[p.Name], p.Language)
	}
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Strings(names)

	var out strings.Builder
	for _, name := range names {
		langs := languages[name]
		sort.Strings(langs)
		line := "• \u200B \u200B " + name
		if !(len(langs) == 1 && langs[0] == "en") {
			line += " (" + strings.Join(langs, ", ") + ")"
		}
		out.WriteString(strings.ReplaceAll(line, "_", "\\_"))
		out.WriteString("\n")
	}
	return out.String()
}

func (b *Bot) handlePlaceholderCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	sub, args := splitSubcommand(opts)
	name := strings.ToLower(args.string("name"))
	lang := strings.ToLower(args.string("language"))
	body := args.string("body")

	if sub == "list" || sub == "" {
		placeholders, err := b.store.ListPlaceholders(ctx)
		if err != nil {
			b.logFailure("placeholder list", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		description := formatPlaceholderList(placeholders)
		if description == "" {
			description = "There are no placeholders yet."
		}
		embed := b.commandEmbed("Placeholder list", description, b.cfg.Colors.Success, nil)
		b.respondEmbed(session, interaction, embed, false)
		return
	}

	if err := validatePlaceholderName(name); err != nil {
		b.respondError(session, interaction, userMessage(err))
		return
	}
	if err := validatePlaceholderLanguage(lang); err != nil {
		b.respondError(session, interaction, userMessage(err))
		return
	}

	switch sub {
	case "add", "edit":
		existing, err := b.store.GetPlaceholder(ctx, name, lang)
		switch {
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			b.logFailure("placeholder lookup", err)
			b.respondError(session, interaction, userMessage(err))
			return
		case sub == "add" && err == nil:
			b.respondError(session, interaction, "That placeholder already exists.")
			return
		case sub == "edit" && err != nil:
			b.respondError(session, interaction, "That placeholder does not exist.")
			return
		}
		if body == "" {
			b.askPlaceholderBody(ctx, session, interaction, sub, name, lang, existing.Body)
			return
		}
		b.savePlaceholder(ctx, session, interaction, sub, name, lang, body)
	case "delete":
		err := b.store.DeletePlaceholder(ctx, name, lang)
		if errors.Is(err, storage.ErrNotFound) {
			b.respondError(session, interaction, "That placeholder does not exist.")
			return
		}
		if err != nil {
			b.logFailure("placeholder delete", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, actorID(interaction), audit.EventPlaceholderDelete, fmt.Sprintf("%s (%s)", name, lang))
		b.respondSuccess(session, interaction, fmt.Sprintf("Deleted the **%s** placeholder in %s.", name, languageName(lang)))
	case "info":
		p, err := b.store.GetPlaceholder(ctx, name, lang)
		if errors.Is(err, storage.ErrNotFound) {
			b.respondError(session, interaction, "That placeholder does not exist.")
			return
		}
		if err != nil {
			b.logFailure("placeholder info", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		description := fmt.Sprintf("The **%s** placeholder responds with the following text in %s:\n```\n%s```", p.Name, languageName(p.Language), p.Body)
		b.respondEmbed(session, interaction, b.commandEmbed("", description, b.cfg.Colors.Info, nil), false)
	default:
		b.respondError(session, interaction, "Unknown subcommand.")
	}
}

func (b *Bot) askPlaceholderBody(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, sub, name, lang, current string) {
	promptID, err := b.prompts.Put(ctx, prompt.Prompt{
		Kind:       prompt.KindPlaceholder,
		Name:       name,
		Language:   lang,
		Subcommand: sub,
		ActorID:    actorID(interaction),
	}, b.promptTTL())
	if err != nil {
		b.logFailure("placeholder prompt", err)
		b.respondError(session, interaction, userMessage(err))
		return
	}
	if err := b.showModal(session, interaction, promptID, "Placeholder", discordgo.TextInput{
		CustomID:  "body",
		Label:     "Body",
		Style:     discordgo.TextInputParagraph,
		Value:     current,
		Required:  true,
		MinLength: 1,
		MaxLength: maxPlaceholderBody,
	}); err != nil {
		b.logFailure("placeholder modal", err)
	}
}

func (b *Bot) completePlaceholder(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, p prompt.Prompt, body string) {
	if body == "" {
		b.respondError(session, interaction, "Please provide a body.")
		return
	}
	b.savePlaceholder(ctx, session, interaction, p.Subcommand, p.Name, p.Language, body)
}

func (b *Bot) savePlaceholder(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, sub, name, lang, body string) {
	if len([]rune(body)) > maxPlaceholderBody {
		b.respondError(session, interaction, fmt.Sprintf("Placeholder bodies can be at most %d characters long.", maxPlaceholderBody))
		return
	}
	event, verb := audit.EventPlaceholderAdd, "Added"
	save := b.store.AddPlaceholder
	if sub == "edit" {
		event, verb = audit.EventPlaceholderEdit, "Edited"
		save = b.store.EditPlaceholder
	}
	err := save(ctx, name, lang, body)
	switch {
	case errors.Is(err, storage.ErrConflict):
		b.respondError(session, interaction, "That placeholder already exists.")
		return
	case errors.Is(err, storage.ErrNotFound):
		b.respondError(session, interaction, "That placeholder does not exist.")
		return
	case err != nil:
		b.logFailure("placeholder save", err)
		b.respondError(session, interaction, userMessage(err))
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, actorID(interaction), event, fmt.Sprintf("%s (%s)\n```\n%s```", name, lang, body))
	b.respondSuccess(session, interaction, fmt.Sprintf("%s the **%s** placeholder in %s.", verb, name, languageName(lang)))
}
