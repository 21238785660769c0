package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// State keeps track of which suggestions have been published.
// The key is ics.SuggestionKey, and the value is the UID of the published event.
type State map[string]string

// StateStore persists State between runs.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// FileState keeps the state in a JSON file. A missing file is an empty state.
type FileState struct {
	Path string
}

func (f *FileState) Load(context.Context) (State, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(State), nil
		}
		return nil, err
	}
	state := make(State)
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return state, nil
}

func (f *FileState) Save(_ context.Context, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal publish state: %w", err)
	}
	return os.WriteFile(f.Path, data, 0o644)
}

// RedisState keeps the state in one Redis hash, so several planners
// publishing to the same calendar share it.
type RedisState struct {
	Client *redis.Client
	Key    string
}

func (r *RedisState) Load(ctx context.Context) (State, error) {
	fields, err := r.Client.HGetAll(ctx, r.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.Key, err)
	}
	return State(fields), nil
}

func (r *RedisState) Save(ctx context.Context, state State) error {
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.Key)
		if len(state) > 0 {
			pipe.HSet(ctx, r.Key, map[string]string(state))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", r.Key, err)
	}
	return nil
}
