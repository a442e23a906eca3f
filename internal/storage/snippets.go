package storage

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const (
	SnippetTypeSnippet = "snippet"
	SnippetTypeRule    = "rule"
	SnippetTypeTeam    = "team"
)

type Snippet struct {
	ID       int64
	Name     string
	Language string
	Body     string
	Type     string
	Aliases  []string
}

var snippetColumns = []string{"id", "name", "language", "body", "type", "aliases"}

func (s *Store) UpsertSnippet(ctx context.Context, snippet Snippet) error {
	_, err := s.exec(ctx, s.sq.Insert("snippets").
		Columns("name", "language", "body", "type", "aliases").
		Values(snippet.Name, snippet.Language, snippet.Body, snippet.Type, joinAliases(snippet.Aliases)).
		Suffix(`ON CONFLICT (name, language, type) DO UPDATE SET
			body = excluded.body,
			aliases = excluded.aliases`))
	return err
}

func (s *Store) DeleteSnippet(ctx context.Context, name, language, snippetType string) error {
	result, err := s.exec(ctx, s.sq.Delete("snippets").
		Where(sq.Eq{"name": name, "language": language, "type": snippetType}))
	if err != nil {
		return err
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListSnippets(ctx context.Context, snippetType string) ([]Snippet, error) {
	builder := s.sq.Select(snippetColumns...).From("snippets").OrderBy("name", "language")
	if snippetType != "" {
		builder = builder.Where(sq.Eq{"type": snippetType})
	}
	rows, err := s.query(ctx, builder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		snippet, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		snippets = append(snippets, snippet)
	}
	return snippets, rows.Err()
}

// FindSnippet matches name against the snippet name or any of its aliases.
func (s *Store) FindSnippet(ctx context.Context, name, language, snippetType string) (Snippet, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	query, args, err := s.sq.Select(snippetColumns...).
		From("snippets").
		Where(sq.Eq{"language": language, "type": snippetType}).
		Where(sq.Or{
			sq.Eq{"name": name},
			sq.Expr("(',' || aliases || ',') LIKE ?", "%,"+name+",%"),
		}).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return Snippet{}, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Snippet{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Snippet{}, err
		}
		return Snippet{}, ErrNotFound
	}
	return scanSnippet(rows)
}

func scanSnippet(row rowScanner) (Snippet, error) {
	var snippet Snippet
	var aliases string
	if err := row.Scan(&snippet.ID, &snippet.Name, &snippet.Language, &snippet.Body, &snippet.Type, &aliases); err != nil {
		return Snippet{}, err
	}
	snippet.Aliases = splitAliases(aliases)
	return snippet, nil
}

func joinAliases(aliases []string) string {
	clean := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias != "" && !strings.Contains(alias, ",") {
			clean = append(clean, alias)
		}
	}
	return strings.Join(clean, ",")
}

func splitAliases(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
