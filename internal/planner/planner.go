package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"quorum/internal/models"
	"quorum/internal/overlap"
)

// ErrNoSources is returned when there is nothing to read availability from,
// or when every source failed.
var ErrNoSources = errors.New("no availability sources")

// Planner gathers availability from its sources and turns it into suggestions.
type Planner struct {
	logger    *slog.Logger
	sources   []Source
	directory Directory
	roster    overlap.Roster
	publisher Publisher
	state     StateStore
	dryRun    bool
}

// Config wires a Planner. Directory and Publisher are optional.
type Config struct {
	Sources   []Source
	Directory Directory
	Roster    overlap.Roster
	Publisher Publisher
	// State defaults to a JSON file at StatePath.
	State     StateStore
	StatePath string
	DryRun    bool
}

// New creates a Planner.
func New(logger *slog.Logger, cfg Config) (*Planner, error) {
	if len(cfg.Sources) == 0 {
		return nil, ErrNoSources
	}
	roster := make(overlap.Roster, len(cfg.Roster))
	for id, m := range cfg.Roster {
		roster[id] = m
	}
	state := cfg.State
	if state == nil {
		state = &FileState{Path: cfg.StatePath}
	}
	return &Planner{
		logger:    logger,
		sources:   cfg.Sources,
		directory: cfg.Directory,
		roster:    roster,
		publisher: cfg.Publisher,
		state:     state,
		dryRun:    cfg.DryRun,
	}, nil
}

// Plan runs one planning cycle over opts.From..opts.To. A zero
// opts.GroupSize is filled in from the roster.
func (p *Planner) Plan(ctx context.Context, opts overlap.Options) (*overlap.Result, error) {
	p.logger.Info("Starting planning cycle.", "policy", opts.Policy, "threshold", opts.MinParticipants, "from", opts.From, "to", opts.To)

	blocks, err := p.fetchAll(ctx, opts)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Fetched all availability.", "count", len(blocks))

	roster := p.Roster(ctx)
	intervals := make([]overlap.Interval, 0, len(blocks))
	seen := make(map[string]bool)
	for _, b := range blocks {
		intervals = append(intervals, overlap.Interval{MemberID: b.MemberID, Start: b.Start, End: b.End})
		seen[b.MemberID] = true
	}

	if opts.GroupSize == 0 {
		opts.GroupSize = groupSize(roster, seen)
	}

	res, err := overlap.Compute(intervals, roster, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to compute suggestions: %w", err)
	}
	if res.Dropped > 0 {
		p.logger.Warn("Dropped malformed availability blocks", "count", res.Dropped)
	}

	p.logger.Info("Planning cycle finished.",
		"groupSize", opts.GroupSize,
		"minParticipants", res.MinParticipants,
		"candidates", res.Candidates,
		"suggestions", len(res.Suggestions))
	return res, nil
}

// Roster merges the configured members with those of the directory. A
// directory failure is logged and the configured roster is used alone.
func (p *Planner) Roster(ctx context.Context) overlap.Roster {
	roster := make(overlap.Roster, len(p.roster))
	for id, m := range p.roster {
		roster[id] = m
	}
	if p.directory == nil {
		return roster
	}

	members, err := p.directory.Members(ctx)
	if err != nil {
		p.logger.Error("Could not load group members", "error", err)
		return roster
	}
	for _, m := range members {
		if _, ok := roster[m.ID]; ok {
			continue
		}
		roster[m.ID] = toOverlapMember(m)
	}
	return roster
}

func (p *Planner) fetchAll(ctx context.Context, opts overlap.Options) ([]*models.Block, error) {
	var all []*models.Block
	failed := 0
	for _, src := range p.sources {
		blocks, err := src.Fetch(ctx, opts.From, opts.To)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Error("Could not fetch availability", "source", src.Name(), "error", err)
			failed++
			continue
		}
		p.logger.Debug("Fetched availability", "source", src.Name(), "count", len(blocks))
		all = append(all, blocks...)
	}
	if failed == len(p.sources) {
		return nil, fmt.Errorf("%w: all %d sources failed", ErrNoSources, failed)
	}
	return all, nil
}

// groupSize counts the roster plus any member who has availability but no
// roster entry.
func groupSize(roster overlap.Roster, withBlocks map[string]bool) int {
	n := len(roster)
	for id := range withBlocks {
		if _, ok := roster[id]; !ok {
			n++
		}
	}
	return n
}

// SortedMembers returns the roster ordered by ID.
func SortedMembers(roster overlap.Roster) []overlap.Member {
	members := make([]overlap.Member, 0, len(roster))
	for id := range roster {
		members = append(members, roster.Lookup(id))
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members
}

func toOverlapMember(m models.Member) overlap.Member {
	return overlap.Member{ID: m.ID, Name: m.Name, Email: m.Email, Image: m.Image}
}
