package prompt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	KindSuspiciousResolution = "suspicious_resolution"
	KindPlaceholder          = "placeholder"
)

const idPrefix = "prompt:"

var ErrExpired = errors.New("prompt: expired or unknown")

// Prompt is the context held while a modal waits for the user's input.
type Prompt struct {
	Kind       string `json:"kind"`
	ReportID   int64  `json:"report_id,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Name       string `json:"name,omitempty"`
	Language   string `json:"language,omitempty"`
	Subcommand string `json:"subcommand,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
}

// Store correlates a modal custom id with its Prompt. Take consumes the
// entry, so each prompt is answered at most once.
type Store interface {
	Put(ctx context.Context, p Prompt, ttl time.Duration) (string, error)
	Take(ctx context.Context, id string) (Prompt, error)
}

func newID() string {
	return idPrefix + uuid.NewString()
}

// IsID reports whether a component custom id was issued by a Store.
func IsID(customID string) bool {
	return strings.HasPrefix(customID, idPrefix)
}
