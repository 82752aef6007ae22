// Package agent runs the conversational data agent: a state machine over
// LLM turns and tool calls, persisted per conversation.
package agent

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"qwery/internal/model"
)

// Agent is one conversation's agent, bound to the datasources it may query.
type Agent struct {
	Conversation *model.Conversation
	Datasources  []model.Datasource
	Session      *model.AgentSession

	machine  *fsm.FSM
	sessions SessionStore
	logger   zerolog.Logger
}

func (a *Agent) State() string {
	return a.machine.Current()
}

// transition fires event and persists the resulting state.
func (a *Agent) transition(ctx context.Context, event string) error {
	if err := a.machine.Event(ctx, event); err != nil {
		return fmt.Errorf("agent %s from %s: %w", event, a.machine.Current(), err)
	}
	a.Session.State = a.machine.Current()
	if err := a.sessions.Save(ctx, a.Session); err != nil {
		return fmt.Errorf("persist agent session: %w", err)
	}
	return nil
}

// fail moves the agent to failed and records cause. It persists even when
// ctx is already done.
func (a *Agent) fail(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	a.Session.LastError = cause.Error()
	if a.machine.Can(EventFail) {
		if err := a.transition(ctx, EventFail); err != nil {
			a.logger.Error().Err(err).Msg("mark agent failed")
		}
		return
	}
	if err := a.sessions.Save(ctx, a.Session); err != nil {
		a.logger.Error().Err(err).Msg("persist agent failure")
	}
}

func (a *Agent) datasource(idOrName string) (*model.Datasource, bool) {
	for i := range a.Datasources {
		ds := &a.Datasources[i]
		if ds.ID == idOrName || ds.Slug == idOrName || ds.Name == idOrName {
			return ds, true
		}
	}
	return nil, false
}
