package planner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"quorum/internal/ics"
	"quorum/internal/overlap"
)

type fakePublisher struct {
	published []string
	retracted []string
	failFor   string
}

func (f *fakePublisher) Publish(_ context.Context, s overlap.Suggestion) (string, error) {
	uid := ics.SuggestionUID(s)
	if uid == f.failFor {
		return "", errors.New("server said no")
	}
	f.published = append(f.published, uid)
	return uid, nil
}

func (f *fakePublisher) Retract(_ context.Context, uid string) error {
	f.retracted = append(f.retracted, uid)
	return nil
}

func suggestion(startHour, endHour int, members ...string) overlap.Suggestion {
	return overlap.Suggestion{
		Start:       at(startHour),
		End:         at(endHour),
		PlayerCount: len(members),
		MemberIDs:   members,
	}
}

func newPublishingPlanner(t *testing.T, pub Publisher, dryRun bool) (*Planner, string) {
	t.Helper()
	statePath := filepath.Join(t.TempDir(), "state.json")
	p, err := New(discardLogger(), Config{
		Sources:   []Source{free("alice", 18, 22)},
		Publisher: pub,
		StatePath: statePath,
		DryRun:    dryRun,
	})
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return p, statePath
}

func readState(t *testing.T, path string) State {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func TestPublish_SkipsKnownAndRetractsStale(t *testing.T) {
	pub := &fakePublisher{}
	p, statePath := newPublishingPlanner(t, pub, false)
	ctx := context.Background()

	first := suggestion(18, 21, "alice", "bob")
	second := suggestion(19, 22, "bob", "carol")
	third := suggestion(10, 13, "alice", "carol")

	if err := p.Publish(ctx, []overlap.Suggestion{first, second}); err != nil {
		t.Fatalf("Publish() unexpected error: %v", err)
	}
	if len(pub.published) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.published))
	}
	state := readState(t, statePath)
	if state[ics.SuggestionKey(first)] != ics.SuggestionUID(first) || len(state) != 2 {
		t.Fatalf("state = %v", state)
	}

	pub.published = nil
	if err := p.Publish(ctx, []overlap.Suggestion{second, third}); err != nil {
		t.Fatalf("Publish() unexpected error: %v", err)
	}
	if !reflect.DeepEqual(pub.published, []string{ics.SuggestionUID(third)}) {
		t.Fatalf("published = %v, want only the new suggestion", pub.published)
	}
	if !reflect.DeepEqual(pub.retracted, []string{ics.SuggestionUID(first)}) {
		t.Fatalf("retracted = %v, want the dropped suggestion", pub.retracted)
	}

	var keys []string
	for k := range readState(t, statePath) {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{ics.SuggestionKey(third), ics.SuggestionKey(second)}
	sort.Strings(want)
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("state keys = %v, want %v", keys, want)
	}
}

func TestPublish_FailedSuggestionIsRetried(t *testing.T) {
	s := suggestion(18, 21, "alice", "bob")
	pub := &fakePublisher{failFor: ics.SuggestionUID(s)}
	p, statePath := newPublishingPlanner(t, pub, false)

	if err := p.Publish(context.Background(), []overlap.Suggestion{s}); err != nil {
		t.Fatalf("Publish() unexpected error: %v", err)
	}
	if state := readState(t, statePath); len(state) != 0 {
		t.Fatalf("state = %v, a failed publish must not be recorded", state)
	}

	pub.failFor = ""
	if err := p.Publish(context.Background(), []overlap.Suggestion{s}); err != nil {
		t.Fatalf("Publish() unexpected error: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published = %v, want the retried suggestion", pub.published)
	}
}

func TestPublish_DryRun(t *testing.T) {
	pub := &fakePublisher{}
	p, statePath := newPublishingPlanner(t, pub, true)

	if err := p.Publish(context.Background(), []overlap.Suggestion{suggestion(18, 21, "alice", "bob")}); err != nil {
		t.Fatalf("Publish() unexpected error: %v", err)
	}
	if len(pub.published) != 0 || len(pub.retracted) != 0 {
		t.Fatalf("dry run touched the publisher: %+v", pub)
	}
	if _, err := os.Stat(statePath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run wrote the state file: %v", err)
	}
}

func TestPublish_WithoutPublisher(t *testing.T) {
	p, _ := newPublishingPlanner(t, nil, false)
	if err := p.Publish(context.Background(), nil); err == nil {
		t.Fatalf("Publish() expected an error without a publisher")
	}
}
