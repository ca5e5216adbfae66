package store

import "fmt"

// Event kind names double as table names. One table per kind; every
// table carries an auto-assigned id unique within the kind.
const (
	KindBasicPressure     = "basic_pressure_event"
	KindCycleDuration     = "cycle_duration_event"
	KindArrivalVelocity   = "plunger_arrival_velocity_event"
	KindGasVolume         = "gas_volume_produced_event"
	KindLowCasingPressure = "unexpected_low_casing_pressure"
	KindArrivalStatus     = "plunger_arrival_status_event"
	KindUnsafeVelocity    = "plunger_unsafe_velocity"
	KindLowFlow           = "unexpected_low_flow"
	KindLowCycleDuration  = "unexpected_low_cycle_duration"
	KindHighCycleDuration = "unexpected_high_cycle_duration"
	KindCycleRecord       = "cycle_record"
)

// column describes one field of an event kind.
type column struct {
	name    string
	sqlType string // portable across the two dialects
}

// schema is the closed set of event kinds and their columns. Inserts
// referencing anything outside this map fail with SchemaError before
// touching the database.
var schema = map[string][]column{
	KindBasicPressure: {
		{"cycle_id", "INTEGER"},
		{"delta_pt", "REAL"},
		{"delta_cp", "REAL"},
		{"delta_pl", "REAL"},
		{"ph", "REAL"},
	},
	KindCycleDuration: {
		{"cycle_id", "INTEGER"},
		{"start_time", "INTEGER"},
		{"end_time", "INTEGER"},
		{"total_duration", "INTEGER"},
		{"flow_duration", "INTEGER"},
		{"shutin_duration", "INTEGER"},
	},
	KindArrivalVelocity: {
		{"cycle_id", "INTEGER"},
		{"arrival_speed", "REAL"},
	},
	KindGasVolume: {
		{"cycle_id", "INTEGER"},
		{"gas_volume", "REAL"},
		{"cycle_duration_id", "INTEGER"},
	},
	KindLowCasingPressure: {
		{"cycle_id", "INTEGER"},
		{"delta_cp", "REAL"},
		{"threshold", "REAL"},
		{"basic_pressure_id", "INTEGER"},
		{"description", "TEXT"},
	},
	KindArrivalStatus: {
		{"cycle_id", "INTEGER"},
		{"non_arrival", "INTEGER"},
		{"unexpected_casing_pressure", "INTEGER"},
		{"low_casing_pressure_id", "INTEGER"},
		{"description", "TEXT"},
	},
	KindUnsafeVelocity: {
		{"cycle_id", "INTEGER"},
		{"arrival_speed", "REAL"},
		{"safety_threshold", "REAL"},
		{"velocity_event_id", "INTEGER"},
		{"description", "TEXT"},
	},
	KindLowFlow: {
		{"cycle_id", "INTEGER"},
		{"gas_volume", "REAL"},
		{"volume_threshold", "REAL"},
		{"gas_volume_id", "INTEGER"},
		{"description", "TEXT"},
	},
	KindLowCycleDuration: {
		{"cycle_id", "INTEGER"},
		{"total_duration", "INTEGER"},
		{"flow_duration", "INTEGER"},
		{"shutin_duration", "INTEGER"},
		{"total_threshold", "INTEGER"},
		{"flow_threshold", "INTEGER"},
		{"shutin_threshold", "INTEGER"},
		{"cycle_duration_id", "INTEGER"},
		{"description", "TEXT"},
	},
	KindHighCycleDuration: {
		{"cycle_id", "INTEGER"},
		{"total_duration", "INTEGER"},
		{"flow_duration", "INTEGER"},
		{"shutin_duration", "INTEGER"},
		{"total_threshold", "INTEGER"},
		{"flow_threshold", "INTEGER"},
		{"shutin_threshold", "INTEGER"},
		{"cycle_duration_id", "INTEGER"},
		{"description", "TEXT"},
	},
	KindCycleRecord: {
		{"cycle_id", "INTEGER"},
		{"run_id", "TEXT"},
		{"basic_pressure_id", "INTEGER"},
		{"cycle_duration_id", "INTEGER"},
		{"arrival_velocity_id", "INTEGER"},
		{"gas_volume_id", "INTEGER"},
		{"low_casing_pressure_id", "INTEGER"},
		{"arrival_status_id", "INTEGER"},
		{"unsafe_velocity_id", "INTEGER"},
		{"low_flow_id", "INTEGER"},
		{"low_cycle_duration_id", "INTEGER"},
		{"high_cycle_duration_id", "INTEGER"},
	},
}

// SchemaError reports an insert against an unknown kind or column.
type SchemaError struct {
	Kind   string
	Column string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("unknown column %q for event kind %q", e.Column, e.Kind)
	}
	return fmt.Sprintf("unknown event kind %q", e.Kind)
}

// Kinds returns every known event kind.
func Kinds() []string {
	kinds := make([]string, 0, len(schema))
	for kind := range schema {
		kinds = append(kinds, kind)
	}
	return kinds
}

// validColumns returns the column whitelist for a kind.
func validColumns(kind string) (map[string]bool, error) {
	cols, ok := schema[kind]
	if !ok {
		return nil, &SchemaError{Kind: kind}
	}
	valid := make(map[string]bool, len(cols))
	for _, c := range cols {
		valid[c.name] = true
	}
	return valid, nil
}
