// Package diagnostics is the notice stream a Configure call may attach
// to a plan: deprecation warnings (legacy bracket field notation) and
// join-type fallback warnings, composed as a pipz pipeline over zlog
// events the way the teacher's field_registry.go wires its extraction
// hook (`pipz.Apply[zlog.Event[T]]("name", fn)` registered against a
// named channel), generalized from a single global sentinel hook into
// an injectable sink so no process-wide state backs it (SPEC_FULL.md
// §2).
package diagnostics

import (
	"context"

	"github.com/zoobzio/pipz"
	"github.com/zoobzio/zlog"
)

// Notice is one diagnostic event flowing through the sink's pipeline.
type Notice struct {
	Kind    string // "deprecation" | "join_fallback"
	Message string
}

// Sink is an injectable diagnostics collector: every Configure call may
// supply its own, so two plans built concurrently never share a
// process-wide logging side channel.
type Sink struct {
	pipeline pipz.Chainable[Notice]
}

// New builds a Sink whose pipeline logs deprecation notices at debug
// level and join-fallback warnings at warn level, in that fixed order -
// mirroring the teacher's single-stage `pipz.Apply` hook, extended to a
// two-stage sequence since this port has two distinct notice kinds
// instead of one extraction event.
func New() *Sink {
	return &Sink{
		pipeline: pipz.NewSequence[Notice]("selecto-diagnostics",
			logDeprecation,
			logJoinFallback,
		),
	}
}

var logDeprecation = pipz.Apply[Notice]("log-deprecation", func(_ context.Context, n Notice) (Notice, error) {
	if n.Kind == "deprecation" {
		zlog.Debug("deprecated field reference", zlog.String("message", n.Message))
	}
	return n, nil
})

var logJoinFallback = pipz.Apply[Notice]("log-join-fallback", func(_ context.Context, n Notice) (Notice, error) {
	if n.Kind == "join_fallback" {
		zlog.Warn("join type fallback to basic left join", zlog.String("message", n.Message))
	}
	return n, nil
})

// Deprecation emits a bracket-notation (or other) deprecation notice.
// It implements the resolve.Notice function type.
func (s *Sink) Deprecation(message string) {
	if s == nil {
		return
	}
	_, _ = s.pipeline.Process(context.Background(), Notice{Kind: "deprecation", Message: message})
}

// JoinFallback emits a warning that an unrecognized join type fell back
// to a basic left join, per spec.md §4.7's fallback rule.
func (s *Sink) JoinFallback(message string) {
	if s == nil {
		return
	}
	_, _ = s.pipeline.Process(context.Background(), Notice{Kind: "join_fallback", Message: message})
}
