package analytics

import (
	"context"
	"sort"
	"time"

	"modbot/internal/storage"
)

type Store interface {
	ListAuditLogs(ctx context.Context, since time.Time) ([]storage.AuditLog, error)
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total   int
	ByLevel map[string]int
	ByEvent map[string]int
	Actors  map[string]int
}

type Count struct {
	Key   string
	Count int
}

func (s *Service) Report(ctx context.Context, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		ByLevel: make(map[string]int),
		ByEvent: make(map[string]int),
		Actors:  make(map[string]int),
	}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
		if log.ActorID != "" {
			report.Actors[log.ActorID]++
		}
	}
	return report, nil
}

// TopActors returns the most active moderators, busiest first.
func (r Report) TopActors(limit int) []Count {
	return top(r.Actors, limit)
}

func (r Report) Events() []Count {
	return top(r.ByEvent, 0)
}

func top(counts map[string]int, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for key, count := range counts {
		out = append(out, Count{Key: key, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
