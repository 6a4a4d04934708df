package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewOrchestrationID returns an opaque, unique, time-ordered id for an
// Orchestration: a nanosecond timestamp prefix (for ordering and readable
// sorting in store listings) plus a short uuid suffix (for uniqueness under
// concurrent creation within the same nanosecond on coarse clocks).
func NewOrchestrationID() string {
	return fmt.Sprintf("orch_%d_%s", time.Now().UnixNano(), uuid.New().String()[:8])
}

// NewObservationID returns an opaque unique id for an Observation.
func NewObservationID() string {
	return fmt.Sprintf("obs_%d_%s", time.Now().UnixNano(), uuid.New().String()[:8])
}
