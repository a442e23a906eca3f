package storage

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

type Placeholder struct {
	ID       int64
	Name     string
	Language string
	Body     string
}

func (s *Store) ListPlaceholders(ctx context.Context) ([]Placeholder, error) {
	rows, err := s.query(ctx, s.sq.Select("id", "name", "language", "body").
		From("placeholders").
		OrderBy("name", "language"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var placeholders []Placeholder
	for rows.Next() {
		var p Placeholder
		if err := rows.Scan(&p.ID, &p.Name, &p.Language, &p.Body); err != nil {
			return nil, err
		}
		placeholders = append(placeholders, p)
	}
	return placeholders, rows.Err()
}

func (s *Store) GetPlaceholder(ctx context.Context, name, language string) (Placeholder, error) {
	var p Placeholder
	err := s.queryRow(ctx, s.sq.Select("id", "name", "language", "body").
		From("placeholders").
		Where(sq.Eq{"name": name, "language": language}),
		&p.ID, &p.Name, &p.Language, &p.Body)
	return p, err
}

func (s *Store) AddPlaceholder(ctx context.Context, name, language, body string) error {
	result, err := s.exec(ctx, s.sq.Insert("placeholders").
		Columns("name", "language", "body").
		Values(name, language, body).
		Suffix("ON CONFLICT (name, language) DO NOTHING"))
	if err != nil {
		return err
	}
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *Store) EditPlaceholder(ctx context.Context, name, language, body string) error {
	result, err := s.exec(ctx, s.sq.Update("placeholders").
		Set("body", body).
		Where(sq.Eq{"name": name, "language": language}))
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

func (s *Store) DeletePlaceholder(ctx context.Context, name, language string) error {
	result, err := s.exec(ctx, s.sq.Delete("placeholders").Where(sq.Eq{"name": name, "language": language}))
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
