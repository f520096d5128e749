// SPDX-License-Identifier: MPL-2.0

package build

import (
	"fmt"

	"github.com/gigantum/gtm/internal/naming"
)

const (
	// StateIdle is the state of a target before processing starts.
	StateIdle State = iota
	// StateCheckingExistence means the engine is asked whether the tag already exists.
	StateCheckingExistence
	// StateConfirmOverwrite means the user is asked whether to replace an existing image.
	StateConfirmOverwrite
	// StateBuilding covers pre-build hooks, the engine build, and extra tags.
	StateBuilding
	// StateTracking means the build result is being written to the tracker.
	StateTracking
	// StateDone indicates the target was built and recorded (terminal state).
	StateDone
	// StateFailed indicates the target failed or was aborted (terminal state).
	StateFailed
)

type (
	// State is the processing state of one build target.
	State int

	// Transition describes one state change of a target.
	Transition struct {
		// Index is the 1-based position of the target in the batch.
		Index int
		// Total is the number of targets in the batch.
		Total  int
		Target Target
		// Tag is empty until the naming strategy has run.
		Tag  naming.ImageTag
		From State
		To   State
		// Err is set when To is StateFailed.
		Err error
	}

	// Observer receives every state transition.
	Observer func(Transition)
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingExistence:
		return "checking-existence"
	case StateConfirmOverwrite:
		return "confirm-overwrite"
	case StateBuilding:
		return "building"
	case StateTracking:
		return "tracking"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether no further transitions can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
