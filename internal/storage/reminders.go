package storage

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
)

type Reminder struct {
	ID           int64
	ChannelID    string
	Message      string
	Schedule     string
	CreatedAt    time.Time
	NextFireDate time.Time
}

var reminderColumns = []string{"id", "channel_id", "message", "schedule", "created_at", "next_fire_date"}

func (s *Store) CreateReminder(ctx context.Context, reminder *Reminder) error {
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now()
	}
	id, err := s.insertReturningID(ctx, s.sq.Insert("reminders").
		Columns("channel_id", "message", "schedule", "created_at", "next_fire_date").
		Values(reminder.ChannelID, reminder.Message, reminder.Schedule, reminder.CreatedAt.Unix(), reminder.NextFireDate.Unix()))
	if err != nil {
		return err
	}
	reminder.ID = id
	return nil
}

func (s *Store) GetReminder(ctx context.Context, id int64) (Reminder, error) {
	var (
		reminder Reminder
		created  int64
		next     int64
	)
	err := s.queryRow(ctx, s.sq.Select(reminderColumns...).From("reminders").Where(sq.Eq{"id": id}),
		&reminder.ID, &reminder.ChannelID, &reminder.Message, &reminder.Schedule, &created, &next)
	if err != nil {
		return Reminder{}, err
	}
	reminder.CreatedAt = time.Unix(created, 0)
	reminder.NextFireDate = time.Unix(next, 0)
	return reminder, nil
}

func (s *Store) ListReminders(ctx context.Context) ([]Reminder, error) {
	rows, err := s.query(ctx, s.sq.Select(reminderColumns...).From("reminders").OrderBy("id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		var reminder Reminder
		var created, next int64
		if err := rows.Scan(&reminder.ID, &reminder.ChannelID, &reminder.Message, &reminder.Schedule, &created, &next); err != nil {
			return nil, err
		}
		reminder.CreatedAt = time.Unix(created, 0)
		reminder.NextFireDate = time.Unix(next, 0)
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}

func (s *Store) UpdateReminderNextFire(ctx context.Context, id int64, next time.Time) error {
	_, err := s.exec(ctx, s.sq.Update("reminders").Set("next_fire_date", next.Unix()).Where(sq.Eq{"id": id}))
	return err
}

func (s *Store) DeleteReminder(ctx context.Context, id int64) error {
	result, err := s.exec(ctx, s.sq.Delete("reminders").Where(sq.Eq{"id": id}))
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
