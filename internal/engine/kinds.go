package engine

import "github.com/wellsight/plunger-monitor/internal/store"

// Event kinds the engine emits, as named by the store schema.
const (
	kindBasicPressure     = store.KindBasicPressure
	kindCycleDuration     = store.KindCycleDuration
	kindArrivalVelocity   = store.KindArrivalVelocity
	kindGasVolume         = store.KindGasVolume
	kindLowCasingPressure = store.KindLowCasingPressure
	kindArrivalStatus     = store.KindArrivalStatus
	kindUnsafeVelocity    = store.KindUnsafeVelocity
	kindLowFlow           = store.KindLowFlow
	kindLowCycleDuration  = store.KindLowCycleDuration
	kindHighCycleDuration = store.KindHighCycleDuration
	kindCycleRecord       = store.KindCycleRecord
)
