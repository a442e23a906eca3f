package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"modbot/internal/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const maxMessageLength = 1024

var (
	ErrInvalidSchedule = errors.New("reminder: invalid cron expression")
	ErrInvalidMessage  = errors.New("reminder: message must be 1-1024 characters")
	ErrNotFound        = errors.New("reminder: not found")
)

type Store interface {
	CreateReminder(ctx context.Context, reminder *storage.Reminder) error
	GetReminder(ctx context.Context, id int64) (storage.Reminder, error)
	ListReminders(ctx context.Context) ([]storage.Reminder, error)
	UpdateReminderNextFire(ctx context.Context, id int64, next time.Time) error
	DeleteReminder(ctx context.Context, id int64) error
}

type Sender interface {
	SendText(ctx context.Context, channelID, content string) error
}

// Scheduler posts stored reminders on their cron schedules.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	store   Store
	sender  Sender
	logger  *zap.Logger
	entries map[int64]cron.EntryID
	now     func() time.Time
}

func New(store Store, sender Sender, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		store:   store,
		sender:  sender,
		logger:  logger,
		entries: make(map[int64]cron.EntryID),
		now:     time.Now,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running sends to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Load(ctx context.Context) error {
	reminders, err := s.store.ListReminders(ctx)
	if err != nil {
		return err
	}
	for _, r := range reminders {
		schedule, err := cron.ParseStandard(r.Schedule)
		if err != nil {
			s.logger.Warn("skipping reminder with bad schedule", zap.Int64("reminder_id", r.ID), zap.String("schedule", r.Schedule), zap.Error(err))
			continue
		}
		s.register(r.ID, schedule)
		if err := s.store.UpdateReminderNextFire(ctx, r.ID, schedule.Next(s.now())); err != nil {
			s.logger.Warn("reminder next fire update failed", zap.Int64("reminder_id", r.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) Add(ctx context.Context, channelID, expr, message string) (storage.Reminder, error) {
	message = strings.TrimSpace(message)
	if message == "" || len([]rune(message)) > maxMessageLength {
		return storage.Reminder{}, ErrInvalidMessage
	}
	expr = strings.TrimSpace(expr)
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return storage.Reminder{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	now := s.now()
	r := storage.Reminder{
		ChannelID:    channelID,
		Message:      message,
		Schedule:     expr,
		CreatedAt:    now,
		NextFireDate: schedule.Next(now),
	}
	if err := s.store.CreateReminder(ctx, &r); err != nil {
		return storage.Reminder{}, err
	}
	s.register(r.ID, schedule)
	return r, nil
}

func (s *Scheduler) List(ctx context.Context) ([]storage.Reminder, error) {
	return s.store.ListReminders(ctx)
}

func (s *Scheduler) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	if entry, ok := s.entries[id]; ok {
		s.cron.Remove(entry)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	err := s.store.DeleteReminder(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Scheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) register(id int64, schedule cron.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[id]; ok {
		s.cron.Remove(entry)
	}
	s.entries[id] = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.fire(context.Background(), id, schedule)
	}))
}

func (s *Scheduler) fire(ctx context.Context, id int64, schedule cron.Schedule) {
	r, err := s.store.GetReminder(ctx, id)
	if err != nil {
		s.logger.Warn("reminder lookup failed", zap.Int64("reminder_id", id), zap.Error(err))
		return
	}
	if err := s.sender.SendText(ctx, r.ChannelID, r.Message); err != nil {
		s.logger.Warn("reminder send failed", zap.Int64("reminder_id", id), zap.String("channel_id", r.ChannelID), zap.Error(err))
	}
	if err := s.store.UpdateReminderNextFire(ctx, id, schedule.Next(s.now())); err != nil {
		s.logger.Warn("reminder next fire update failed", zap.Int64("reminder_id", id), zap.Error(err))
	}
}
