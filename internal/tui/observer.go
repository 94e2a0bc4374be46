package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/easyclaim/internal/claimer"
	"github.com/fentz26/easyclaim/internal/models"
)

type runStartedMsg claimer.RunInfo

type userValidatedMsg models.UserIdentity

type iterationMsg claimer.IterationEvent

type runFinishedMsg claimer.RunResult

// ProgramObserver forwards run events to a bubbletea program. Send returns
// once the program has exited, so a run never blocks on a closed view.
type ProgramObserver struct {
	send func(tea.Msg)
}

var _ claimer.Observer = (*ProgramObserver)(nil)

// NewProgramObserver returns an observer feeding p.
func NewProgramObserver(p *tea.Program) *ProgramObserver {
	return &ProgramObserver{send: p.Send}
}

func (o *ProgramObserver) RunStarted(info claimer.RunInfo) { o.send(runStartedMsg(info)) }

func (o *ProgramObserver) UserValidated(_ string, user models.UserIdentity) {
	o.send(userValidatedMsg(user))
}

func (o *ProgramObserver) Iteration(ev claimer.IterationEvent) { o.send(iterationMsg(ev)) }

func (o *ProgramObserver) RunFinished(res claimer.RunResult) { o.send(runFinishedMsg(res)) }
