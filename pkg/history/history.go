// Package history keeps the undo/redo stack of editing commands
package history

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"voxeledit/internal/logging"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

var HistoryDepth = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "voxeledit",
	Subsystem: "history",
	Name:      "depth",
	Help:      "Number of commands kept in the undo history",
})

var HistoryBytes = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "voxeledit",
	Subsystem: "history",
	Name:      "bytes",
	Help:      "Memory held by the diffs of the undo history",
})

var HistoryOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "voxeledit",
	Subsystem: "history",
	Name:      "operations_total",
	Help:      "History operations by kind",
}, []string{"op"})

// Collectors returns the history metrics for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{HistoryDepth, HistoryBytes, HistoryOperations}
}

// Command is an undoable edit that has already been applied once
type Command interface {
	Name() string
	Size() int
	Undo()
	Redo()
}

// Limits bounds the history. Zero means unbounded
type Limits struct {
	MaxCommands int
	MaxMemory   int
}

// History is a linear undo/redo stack. Pushing a command drops every command
// that was undone before. When a limit is exceeded the oldest commands are
// discarded. Not safe for concurrent use
type History struct {
	limits   Limits
	commands []Command
	// cursor is the number of commands currently applied
	cursor int
	size   int
	log    logging.Logger
}

// New creates an empty history
func New(limits Limits, log logging.Logger) *History {
	return &History{limits: limits, log: logging.OrNop(log)}
}

// Push records an applied command
func (h *History) Push(c Command) {
	for _, dropped := range h.commands[h.cursor:] {
		h.size -= dropped.Size()
	}
	clear(h.commands[h.cursor:])
	h.commands = append(h.commands[:h.cursor], c)
	h.cursor++
	h.size += c.Size()
	HistoryOperations.WithLabelValues("push").Inc()

	h.evict()
	h.publish()
	h.log.Debug("command pushed", "name", c.Name(), "bytes", c.Size(), "depth", len(h.commands))
}

func (h *History) evict() {
	for len(h.commands) > 1 && h.overLimit() {
		oldest := h.commands[0]
		h.size -= oldest.Size()
		h.commands[0] = nil
		h.commands = h.commands[1:]
		h.cursor = max(h.cursor-1, 0)
		HistoryOperations.WithLabelValues("evict").Inc()
		h.log.Debug("command evicted", "name", oldest.Name(), "bytes", oldest.Size())
	}
}

func (h *History) overLimit() bool {
	if h.limits.MaxCommands > 0 && len(h.commands) > h.limits.MaxCommands {
		return true
	}
	return h.limits.MaxMemory > 0 && h.size > h.limits.MaxMemory
}

// Undo reverts the last applied command
func (h *History) Undo() (Command, error) {
	if !h.CanUndo() {
		return nil, ErrNothingToUndo
	}
	h.cursor--
	c := h.commands[h.cursor]
	c.Undo()
	HistoryOperations.WithLabelValues("undo").Inc()
	h.log.Debug("command undone", "name", c.Name())
	return c, nil
}

// Redo reapplies the last undone command
func (h *History) Redo() (Command, error) {
	if !h.CanRedo() {
		return nil, ErrNothingToRedo
	}
	c := h.commands[h.cursor]
	h.cursor++
	c.Redo()
	HistoryOperations.WithLabelValues("redo").Inc()
	h.log.Debug("command redone", "name", c.Name())
	return c, nil
}

func (h *History) CanUndo() bool { return h.cursor > 0 }
func (h *History) CanRedo() bool { return h.cursor < len(h.commands) }

// Len returns the number of commands kept, applied or undone
func (h *History) Len() int { return len(h.commands) }

// Cursor returns the number of applied commands
func (h *History) Cursor() int { return h.cursor }

// Size returns the memory held by every kept command
func (h *History) Size() int { return h.size }

// Commands returns the kept commands, oldest first
func (h *History) Commands() []Command {
	return append([]Command(nil), h.commands...)
}

// Clear forgets every command without touching the image
func (h *History) Clear() {
	clear(h.commands)
	h.commands = h.commands[:0]
	h.cursor = 0
	h.size = 0
	h.publish()
}

func (h *History) publish() {
	HistoryDepth.Set(float64(len(h.commands)))
	HistoryBytes.Set(float64(h.size))
}
