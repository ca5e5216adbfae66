package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/wellsight/plunger-monitor/internal/protocol"
	"github.com/wellsight/plunger-monitor/internal/series"
	"github.com/wellsight/plunger-monitor/pkg/config"
)

// EventStore is the persistence contract the engine needs: inserts
// assign a unique id within the kind, and previously inserted events
// can be fetched back by id. Dependencies between events are carried
// as ids, so a record must exist before a dependent computation runs.
type EventStore interface {
	Insert(kind string, fields map[string]any) (int64, error)
	FetchByID(kind string, id int64) (map[string]any, error)
}

// Notifier publishes anomaly notifications. Optional; a nil notifier
// disables publishing.
type Notifier interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Roles name each computation's slot in the per-cycle accumulator and
// in the parent cycle record.
const (
	RoleBasicPressure     = "basicPressure"
	RoleCycleDuration     = "cycleDuration"
	RoleArrivalVelocity   = "arrivalVelocity"
	RoleGasVolume         = "gasVolume"
	RoleLowCasingPressure = "lowCasingPressure"
	RoleArrivalStatus     = "arrivalStatus"
	RoleUnsafeVelocity    = "unsafeVelocity"
	RoleLowFlow           = "lowFlow"
	RoleLowCycleDuration  = "lowCycleDuration"
	RoleHighCycleDuration = "highCycleDuration"
)

// computation is one entry of the fixed derivation graph. Basic
// computations have no requirements and always emit; complex ones
// declare the roles they re-fetch from the store, and anomaly ones may
// return nil fields to signal "not triggered".
type computation struct {
	role     string
	kind     string
	requires []string
	anomaly  bool
	compute  func(e *Engine, c *cycleState) (map[string]any, error)
}

// cycleState accumulates the ids produced so far for one cycle.
type cycleState struct {
	cycleID int
	rows    []series.Row
	ids     map[string]int64  // role -> event id
	kinds   map[string]string // role -> event kind, for re-fetch
}

// fetchUpstream loads a previously produced event's fields from the
// store. The dependency is resolved by id, never by a live object.
func (c *cycleState) fetchUpstream(store EventStore, role string) (map[string]any, error) {
	id, ok := c.ids[role]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", role, ErrDependencyMissing)
	}
	fields, err := store.FetchByID(c.kinds[role], id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%d: %w", c.kinds[role], id, err)
	}
	return fields, nil
}

// Engine derives the per-cycle event graph and persists it.
type Engine struct {
	store    EventStore
	notifier Notifier
	cfg      config.EngineConfig
	well     string

	basics    []computation
	complexes []computation
}

// New creates an engine for one well. notifier may be nil.
func New(store EventStore, notifier Notifier, cfg config.EngineConfig, well string) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		well:     well,
		basics: []computation{
			{role: RoleBasicPressure, kind: kindBasicPressure, compute: computePressureDelta},
			{role: RoleCycleDuration, kind: kindCycleDuration, compute: computeCycleDuration},
			{role: RoleArrivalVelocity, kind: kindArrivalVelocity, compute: computeArrivalVelocity},
		},
		complexes: []computation{
			{role: RoleGasVolume, kind: kindGasVolume,
				requires: []string{RoleCycleDuration}, compute: computeGasVolume},
			{role: RoleLowCasingPressure, kind: kindLowCasingPressure, anomaly: true,
				requires: []string{RoleBasicPressure}, compute: computeLowCasingPressure},
			{role: RoleArrivalStatus, kind: kindArrivalStatus,
				compute: computeArrivalStatus},
			{role: RoleUnsafeVelocity, kind: kindUnsafeVelocity, anomaly: true,
				requires: []string{RoleArrivalVelocity}, compute: computeUnsafeVelocity},
			{role: RoleLowFlow, kind: kindLowFlow, anomaly: true,
				requires: []string{RoleGasVolume}, compute: computeLowFlow},
			{role: RoleLowCycleDuration, kind: kindLowCycleDuration, anomaly: true,
				requires: []string{RoleCycleDuration}, compute: computeLowCycleDuration},
			{role: RoleHighCycleDuration, kind: kindHighCycleDuration, anomaly: true,
				requires: []string{RoleCycleDuration}, compute: computeHighCycleDuration},
		},
	}
}

// RunSummary reports what one engine run produced.
type RunSummary struct {
	RunID           string
	Cycles          int
	Events          int
	NegativeSamples int
}

// Run executes the whole pipeline over one bounded input window:
// trim, align, segment, then derive and persist events cycle by cycle
// in ascending cycle-id order. Each cycle is fully committed before
// the next begins, so aborting between cycles leaves no partial cycle
// split across runs.
func (e *Engine) Run(ctx context.Context, channels map[string][]series.Sample) (*RunSummary, error) {
	if err := series.CheckChannels(channels); err != nil {
		return nil, err
	}

	channels = series.TrimLeading(channels)

	reference := channels[series.ChannelFlowRate]
	others := make(map[string][]series.Sample, len(channels)-1)
	for name, samples := range channels {
		if name != series.ChannelFlowRate {
			others[name] = samples
		}
	}

	aligner := series.NewAligner(e.cfg.AlignWindowSeconds)
	rows, err := aligner.Align(reference, others)
	if err != nil {
		return nil, err
	}

	segmented := series.Segment(reference)
	series.ApplyCycleIDs(rows, segmented.CycleIDs)

	summary := &RunSummary{
		RunID:           uuid.New().String(),
		NegativeSamples: segmented.NegativeSamples,
	}
	if segmented.NegativeSamples > 0 {
		fmt.Printf("Warning: %d negative flow-rate samples treated as flowing (run %s)\n",
			segmented.NegativeSamples, summary.RunID)
	}

	groups := series.GroupByCycle(rows)
	for _, cycleID := range series.CycleIDs(groups) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		produced, err := e.processCycle(ctx, summary.RunID, cycleID, groups[cycleID])
		summary.Events += produced
		if err != nil {
			return summary, fmt.Errorf("cycle %d: %w", cycleID, err)
		}
		summary.Cycles++
	}

	if e.notifier != nil {
		e.publishRunCompleted(ctx, summary)
	}

	return summary, nil
}

// processCycle evaluates the ordered computations for one cycle and
// persists the parent record. Skippable computation errors leave the
// role absent; store errors abort the cycle's remaining computations
// (events already inserted stay committed).
func (e *Engine) processCycle(ctx context.Context, runID string, cycleID int, rows []series.Row) (int, error) {
	state := &cycleState{
		cycleID: cycleID,
		rows:    rows,
		ids:     make(map[string]int64),
		kinds:   make(map[string]string),
	}

	produced := 0
	for _, comp := range e.basics {
		n, err := e.runComputation(ctx, runID, state, comp)
		produced += n
		if err != nil {
			return produced, err
		}
	}
	for _, comp := range e.complexes {
		n, err := e.runComputation(ctx, runID, state, comp)
		produced += n
		if err != nil {
			return produced, err
		}
	}

	if err := e.insertCycleRecord(runID, state); err != nil {
		return produced, err
	}
	return produced + 1, nil
}

func (e *Engine) runComputation(ctx context.Context, runID string, state *cycleState, comp computation) (int, error) {
	for _, role := range comp.requires {
		if _, ok := state.ids[role]; !ok {
			fmt.Printf("Cycle %d: skipping %s: role %s: %v\n",
				state.cycleID, comp.role, role, ErrDependencyMissing)
			return 0, nil
		}
	}

	fields, err := comp.compute(e, state)
	if err != nil {
		if skippable(err) {
			fmt.Printf("Cycle %d: skipping %s: %v\n", state.cycleID, comp.role, err)
			return 0, nil
		}
		return 0, fmt.Errorf("%s: %w", comp.role, err)
	}
	if fields == nil {
		// Anomaly condition not met; nothing is persisted.
		return 0, nil
	}

	fields["cycle_id"] = state.cycleID
	id, err := e.store.Insert(comp.kind, fields)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", comp.role, err)
	}

	state.ids[comp.role] = id
	state.kinds[comp.role] = comp.kind

	if comp.anomaly && e.notifier != nil {
		e.publishAnomaly(ctx, runID, state.cycleID, comp.kind, id)
	}
	return 1, nil
}

// parentColumns maps each role to its id column in the cycle record.
var parentColumns = map[string]string{
	RoleBasicPressure:     "basic_pressure_id",
	RoleCycleDuration:     "cycle_duration_id",
	RoleArrivalVelocity:   "arrival_velocity_id",
	RoleGasVolume:         "gas_volume_id",
	RoleLowCasingPressure: "low_casing_pressure_id",
	RoleArrivalStatus:     "arrival_status_id",
	RoleUnsafeVelocity:    "unsafe_velocity_id",
	RoleLowFlow:           "low_flow_id",
	RoleLowCycleDuration:  "low_cycle_duration_id",
	RoleHighCycleDuration: "high_cycle_duration_id",
}

// insertCycleRecord persists the parent record aggregating every
// produced event id by role. Roles that were not produced are simply
// absent, never zero placeholders.
func (e *Engine) insertCycleRecord(runID string, state *cycleState) error {
	fields := map[string]any{
		"cycle_id": state.cycleID,
		"run_id":   runID,
	}
	for role, id := range state.ids {
		fields[parentColumns[role]] = id
	}

	if _, err := e.store.Insert(kindCycleRecord, fields); err != nil {
		return fmt.Errorf("cycle record: %w", err)
	}
	return nil
}

func (e *Engine) publishAnomaly(ctx context.Context, runID string, cycleID int, kind string, id int64) {
	notification := &protocol.AnomalyNotification{
		Type:      protocol.NotifyTypeAnomaly,
		RunID:     runID,
		Well:      e.well,
		CycleID:   cycleID,
		EventKind: kind,
		EventID:   id,
		Emitted:   time.Now().UTC(),
	}

	data, err := protocol.EncodeAnomalyNotification(notification)
	if err != nil {
		fmt.Printf("Failed to encode anomaly notification: %v\n", err)
		return
	}
	if err := e.notifier.Publish(ctx, e.well, data); err != nil {
		fmt.Printf("Failed to publish anomaly notification: %v\n", err)
	}
}

func (e *Engine) publishRunCompleted(ctx context.Context, summary *RunSummary) {
	notification := &protocol.RunCompletedNotification{
		Type:     protocol.NotifyTypeRunCompleted,
		RunID:    summary.RunID,
		Well:     e.well,
		Cycles:   summary.Cycles,
		Events:   summary.Events,
		Finished: time.Now().UTC(),
	}

	data, err := protocol.EncodeRunCompletedNotification(notification)
	if err != nil {
		fmt.Printf("Failed to encode run notification: %v\n", err)
		return
	}
	if err := e.notifier.Publish(ctx, e.well, data); err != nil {
		fmt.Printf("Failed to publish run notification: %v\n", err)
	}
}

// round3 rounds to 3 decimal places. Part of the output contract:
// every float persisted by the engine goes through this.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
