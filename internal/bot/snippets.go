package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"modbot/internal/audit"
	"modbot/internal/storage"

	"github.com/bwmarrin/discordgo"
)

const (
	maxSnippetName = 32
	maxSnippetBody = 2000
)

func parseAliases(raw string) []string {
	var aliases []string
	for _, alias := range strings.Split(raw, ",") {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias != "" {
			aliases = append(aliases, alias)
		}
	}
	return aliases
}

func validateSnippet(snippet storage.Snippet) error {
	switch {
	case snippet.Name == "":
		return invalidInput("Please provide a snippet name.")
	case len([]rune(snippet.Name)) > maxSnippetName:
		return invalidInput(fmt.Sprintf("Names can be at most %d characters long.", maxSnippetName))
	case strings.Contains(snippet.Name, ","):
		return invalidInput("Snippet names cannot contain commas.")
	case snippet.Body == "":
		return invalidInput("Please provide a body.")
	case len([]rune(snippet.Body)) > maxSnippetBody:
		return invalidInput(fmt.Sprintf("Snippet bodies can be at most %d characters long.", maxSnippetBody))
	}
	for _, alias := range snippet.Aliases {
		if len([]rune(alias)) > maxSnippetName {
			return invalidInput(fmt.Sprintf("Aliases can be at most %d characters long.", maxSnippetName))
		}
	}
	switch snippet.Type {
	case storage.SnippetTypeSnippet, storage.SnippetTypeRule, storage.SnippetTypeTeam:
		return nil
	default:
		return invalidInput("Unknown snippet type.")
	}
}

func (b *Bot) handleTeamCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	name := strings.ToLower(optionMap(opts).string("team"))
	if name == "" {
		b.respondError(session, interaction, "Please specify a team.")
		return
	}
	snippet, err := b.store.FindSnippet(ctx, name, "en", storage.SnippetTypeTeam)
	if errors.Is(err, storage.ErrNotFound) {
		b.respondError(session, interaction, "That team does not exist.")
		return
	}
	if err != nil {
		b.logFailure("team lookup", err)
		b.respondError(session, interaction, userMessage(err))
		return
	}
	b.respond(session, interaction, snippet.Body, false)
}

func (b *Bot) handleSnippetCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	sub, args := splitSubcommand(opts)
	snippetType := args.string("type")
	if snippetType == "" {
		snippetType = storage.SnippetTypeSnippet
	}

	switch sub {
	case "set", "delete":
		if !b.permitted(ctx, session, interaction, b.cfg.ModeratorRoles()) {
			return
		}
	}

	switch sub {
	case "set":
		lang := strings.ToLower(args.string("language"))
		if err := validatePlaceholderLanguage(lang); err != nil {
			b.respondError(session, interaction, userMessage(err))
			return
		}
		snippet := storage.Snippet{
			Name:     strings.ToLower(args.string("name")),
			Language: lang,
			Body:     args.string("body"),
			Type:     snippetType,
			Aliases:  parseAliases(args.string("aliases")),
		}
		if err := validateSnippet(snippet); err != nil {
			b.respondError(session, interaction, userMessage(err))
			return
		}
		if err := b.store.UpsertSnippet(ctx, snippet); err != nil {
			b.logFailure("snippet save", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, actorID(interaction), audit.EventSnippetSet, fmt.Sprintf("%s %s (%s)", snippet.Type, snippet.Name, snippet.Language))
		b.respondSuccess(session, interaction, fmt.Sprintf("Saved the **%s** %s in %s.", snippet.Name, snippet.Type, languageName(snippet.Language)))
	case "delete":
		name := strings.ToLower(args.string("name"))
		lang := strings.ToLower(args.string("language"))
		err := b.store.DeleteSnippet(ctx, name, lang, snippetType)
		if errors.Is(err, storage.ErrNotFound) {
			b.respondError(session, interaction, "That snippet does not exist.")
			return
		}
		if err != nil {
			b.logFailure("snippet delete", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, actorID(interaction), audit.EventSnippetDelete, fmt.Sprintf("%s %s (%s)", snippetType, name, lang))
		b.respondSuccess(session, interaction, fmt.Sprintf("Deleted the **%s** %s.", name, snippetType))
	case "list":
		snippets, err := b.store.ListSnippets(ctx, args.string("type"))
		if err != nil {
			b.logFailure("snippet list", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		description := formatSnippetList(snippets)
		if description == "" {
			description = "There are no snippets yet."
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Snippet list", description, b.cfg.Colors.Success, nil), true)
	case "show":
		lang := strings.ToLower(args.string("language"))
		if lang == "" {
			lang = "en"
		}
		snippet, err := b.store.FindSnippet(ctx, args.string("name"), lang, snippetType)
		if errors.Is(err, storage.ErrNotFound) {
			b.respondError(session, interaction, "That snippet does not exist.")
			return
		}
		if err != nil {
			b.logFailure("snippet show", err)
			b.respondError(session, interaction, userMessage(err))
			return
		}
		b.respond(session, interaction, snippet.Body, false)
	default:
		b.respondError(session, interaction, "Unknown subcommand.")
	}
}

// formatSnippetList renders one line per snippet name and type with its
// languages and aliases.
func formatSnippetList(snippets []storage.Snippet) string {
	type key struct{ name, kind string }
	var order []key
	languages := make(map[key][]string)
	aliases := make(map[key][]string)
	for _, snippet := range snippets {
		k := key{snippet.Name, snippet.Type}
		if _, ok := languages[k]; !ok {
			order = append(order, k)
		}
		languages[k] = append(languages[k], snippet.Language)
		if len(aliases[k]) == 0 {
			aliases[k] = snippet.Aliases
		}
	}

	var out strings.Builder
	for _, k := range order {
		line := fmt.Sprintf("• %s `%s` (%s)", k.name, k.kind, strings.Join(languages[k], ", "))
		if len(aliases[k]) > 0 {
			line += " aka " + strings.Join(aliases[k], ", ")
		}
		out.WriteString(strings.ReplaceAll(line, "_", "\\_"))
		out.WriteString("\n")
	}
	return out.String()
}
