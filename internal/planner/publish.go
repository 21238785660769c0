package planner

import (
	"context"
	"fmt"

	"quorum/internal/icloud"
	"quorum/internal/ics"
	"quorum/internal/overlap"
)

// Publisher writes suggestions to a shared calendar.
type Publisher interface {
	Publish(ctx context.Context, s overlap.Suggestion) (uid string, err error)
	Retract(ctx context.Context, uid string) error
}

// CalDAVPublisher publishes into one CalDAV calendar.
type CalDAVPublisher struct {
	Client   *icloud.CalDAVClient
	Calendar string
}

func (p *CalDAVPublisher) Publish(ctx context.Context, s overlap.Suggestion) (string, error) {
	return p.Client.PublishSuggestion(ctx, p.Calendar, s)
}

func (p *CalDAVPublisher) Retract(ctx context.Context, uid string) error {
	return p.Client.RetractSuggestion(ctx, p.Calendar, uid)
}

// Publish writes new suggestions to the publisher and retracts those
// published earlier that are no longer suggested. In dry-run mode it only
// logs and leaves the state file untouched.
func (p *Planner) Publish(ctx context.Context, suggestions []overlap.Suggestion) error {
	if p.publisher == nil {
		return fmt.Errorf("no publish calendar configured")
	}

	state, err := p.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load publish state: %w", err)
	}

	current := make(map[string]bool, len(suggestions))
	for _, s := range suggestions {
		key := ics.SuggestionKey(s)
		current[key] = true

		if _, exists := state[key]; exists {
			p.logger.Debug("Suggestion already published, skipping.", "start", s.Start, "players", s.PlayerCount)
			continue
		}

		if p.dryRun {
			p.logger.Info("[DRY RUN] Would publish suggestion", "start", s.Start, "end", s.End, "players", s.PlayerCount)
			continue
		}

		uid, err := p.publisher.Publish(ctx, s)
		if err != nil {
			p.logger.Error("Failed to publish suggestion", "start", s.Start, "error", err)
			continue
		}
		state[key] = uid
	}

	for key, uid := range state {
		if current[key] {
			continue
		}
		if p.dryRun {
			p.logger.Info("[DRY RUN] Would retract stale suggestion", "uid", uid)
			continue
		}
		if err := p.publisher.Retract(ctx, uid); err != nil {
			p.logger.Error("Failed to retract suggestion", "uid", uid, "error", err)
			continue
		}
		delete(state, key)
	}

	if p.dryRun {
		return nil
	}
	if err := p.state.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save publish state: %w", err)
	}
	return nil
}
