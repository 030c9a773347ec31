package logger

import (
	"context"
	"log/slog"

	"github.com/angeloszaimis/jsonlog/internal/metrics"
)

// handler is the slog.Handler behind every Logger a Configurator hands out.
// It resolves the active installation on each call, so handles bound before
// a reconfiguration keep working and follow the new sink.
type handler struct {
	cfg    *Configurator
	bound  []boundAttr
	prefix string
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	inst := h.cfg.current.Load()
	return inst != nil && level >= inst.level
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	h.deliver(h.cfg.current.Load(), r)
	return nil
}

// deliver encodes r for inst and hands it to inst's sink. A record that
// raced a reconfiguration and found the sink closed is re-encoded for the
// installation that replaced it, once. A panic while encoding or writing is
// counted as a dropped record and never reaches the caller.
func (h *handler) deliver(inst *installation, r slog.Record) {
	for attempt := 0; inst != nil && r.Level >= inst.level; attempt++ {
		if h.offer(inst, r) {
			return
		}

		next := h.cfg.current.Load()
		if attempt > 0 || next == nil || next == inst {
			inst.sink.metrics.RecordDrop(metrics.DropClosed)
			return
		}
		inst = next
	}
}

func (h *handler) offer(inst *installation, r slog.Record) (accepted bool) {
	defer func() {
		if recover() != nil {
			inst.sink.metrics.RecordDrop(metrics.DropPanic)
			accepted = true
		}
	}()

	return inst.sink.offer(inst.encoder.encode(r, h.bound, h.prefix))
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	bound := make([]boundAttr, len(h.bound), len(h.bound)+len(attrs))
	copy(bound, h.bound)
	for _, a := range attrs {
		bound = append(bound, boundAttr{prefix: h.prefix, attr: a})
	}

	return &handler{cfg: h.cfg, bound: bound, prefix: h.prefix}
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &handler{cfg: h.cfg, bound: h.bound, prefix: h.prefix + name + "."}
}
