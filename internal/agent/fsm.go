package agent

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
)

const (
	StateIdle       = "idle"
	StateThinking   = "thinking"
	StateActing     = "acting"
	StateResponding = "responding"
	StateFailed     = "failed"
)

const (
	EventStart     = "start"
	EventCallTools = "call_tools"
	EventToolsDone = "tools_done"
	EventRespond   = "respond"
	EventFinish    = "finish"
	EventFail      = "fail"
)

func newMachine(initial string, logger zerolog.Logger) *fsm.FSM {
	return fsm.NewFSM(
		initial,
		fsm.Events{
			{Name: EventStart, Src: []string{StateIdle, StateFailed}, Dst: StateThinking},
			{Name: EventCallTools, Src: []string{StateThinking}, Dst: StateActing},
			{Name: EventToolsDone, Src: []string{StateActing}, Dst: StateThinking},
			{Name: EventRespond, Src: []string{StateThinking}, Dst: StateResponding},
			{Name: EventFinish, Src: []string{StateResponding}, Dst: StateIdle},
			{Name: EventFail, Src: []string{StateIdle, StateThinking, StateActing, StateResponding}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug().Str("event", e.Event).Str("from", e.Src).Str("to", e.Dst).Msg("agent transition")
			},
		},
	)
}

// restoredState maps a persisted state onto one a new run can start from.
// A session stored mid-run belongs to a run that never finished.
func restoredState(persisted string) (state string, interrupted bool) {
	switch persisted {
	case "", StateIdle:
		return StateIdle, false
	case StateFailed:
		return StateFailed, false
	default:
		return StateFailed, true
	}
}
