package emit

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapEmitter writes events to a zap logger as structured entries.
//
// node_error is logged at error level, node_retry and any event whose name
// ends in "_degraded" or "_rejected" at warn, node_start at debug, and
// everything else at info. Meta keys become fields in sorted order.
type ZapEmitter struct {
	logger *zap.Logger
}

// NewZapEmitter wraps logger. A nil logger discards everything.
func NewZapEmitter(logger *zap.Logger) *ZapEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapEmitter{logger: logger.With(zap.String("component", "graph"))}
}

// Emit implements Emitter.
func (z *ZapEmitter) Emit(event Event) {
	level := levelFor(event.Msg)
	ce := z.logger.Check(level, event.Msg)
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, 3+len(event.Meta))
	fields = append(fields,
		zap.String("run_id", event.RunID),
		zap.Int("step", event.Step),
		zap.String("node_id", event.NodeID),
	)

	keys := make([]string, 0, len(event.Meta))
	for k := range event.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, event.Meta[k]))
	}

	ce.Write(fields...)
}

func levelFor(msg string) zapcore.Level {
	switch {
	case msg == "node_error":
		return zapcore.ErrorLevel
	case msg == "node_retry", strings.HasSuffix(msg, "_degraded"), strings.HasSuffix(msg, "_rejected"):
		return zapcore.WarnLevel
	case msg == "node_start":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
