package core

import (
	"context"

	"github.com/agenthands/texty/internal/core/model"
)

type ProgressKind string

const (
	ProgressStatus ProgressKind = "status-update"
	ProgressText   ProgressKind = "text-delta"
)

type Status string

const (
	StatusLoaded      Status = "loaded"
	StatusStarting    Status = "starting"
	StatusClassifying Status = "classifying"
	StatusPlanning    Status = "planning"
	StatusReducing    Status = "reducing"
	StatusNarrating   Status = "narrating"
	StatusSaving      Status = "saving"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

// Progress is one notification of a running step. A stream of them ends with
// exactly one Final notification that carries either Node or Err.
type Progress struct {
	Kind   ProgressKind    `json:"kind"`
	Status Status          `json:"status,omitempty"`
	Debug  string          `json:"debug,omitempty"`
	Delta  string          `json:"delta,omitempty"`
	Text   string          `json:"text,omitempty"`
	Intent model.Intent    `json:"intent,omitempty"`
	Node   *model.TimeNode `json:"node,omitempty"`
	Final  bool            `json:"final,omitempty"`
	Err    error           `json:"-"`
	Error  string          `json:"error,omitempty"`
}

// Outcome is the final state of a finished step.
type Outcome struct {
	Node   model.TimeNode
	Text   string
	Intent model.Intent
}

// Wait drains ch and returns the outcome carried by its final notification.
func Wait(ch <-chan Progress) (Outcome, error) {
	var last *Progress
	for p := range ch {
		if p.Final {
			last = &p
		}
	}
	if last == nil {
		return Outcome{}, context.Canceled
	}
	if last.Err != nil {
		return Outcome{}, last.Err
	}
	out := Outcome{Text: last.Text, Intent: last.Intent}
	if last.Node != nil {
		out.Node = *last.Node
	}
	return out, nil
}

// reporter sends notifications without outliving the caller's context.
type reporter struct {
	ctx context.Context
	ch  chan Progress
}

func newReporter(ctx context.Context) *reporter {
	return &reporter{ctx: ctx, ch: make(chan Progress, 16)}
}

func (r *reporter) send(p Progress) bool {
	select {
	case r.ch <- p:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *reporter) status(status Status, debug string) bool {
	return r.send(Progress{Kind: ProgressStatus, Status: status, Debug: debug})
}

func (r *reporter) delta(chunk, text string) bool {
	return r.send(Progress{Kind: ProgressText, Delta: chunk, Text: text})
}

// finish emits the final notification and closes the stream. When the
// context is already done the notification is only delivered if there is
// room in the buffer.
func (r *reporter) finish(out Outcome, err error) {
	defer close(r.ch)

	p := Progress{Kind: ProgressStatus, Final: true, Status: StatusDone, Text: out.Text, Intent: out.Intent}
	if err != nil {
		p.Status = StatusFailed
		p.Err = err
		p.Error = err.Error()
	} else {
		node := out.Node
		p.Node = &node
	}

	select {
	case r.ch <- p:
		return
	case <-r.ctx.Done():
	}
	select {
	case r.ch <- p:
	default:
	}
}
