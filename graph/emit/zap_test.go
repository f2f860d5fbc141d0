package emit

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapEmitter_Levels(t *testing.T) {
	tests := []struct {
		msg  string
		want zapcore.Level
	}{
		{msg: "node_error", want: zapcore.ErrorLevel},
		{msg: "node_retry", want: zapcore.WarnLevel},
		{msg: "research_degraded", want: zapcore.WarnLevel},
		{msg: "overrides_rejected", want: zapcore.WarnLevel},
		{msg: "node_start", want: zapcore.DebugLevel},
		{msg: "node_end", want: zapcore.InfoLevel},
		{msg: "interrupt", want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			NewZapEmitter(zap.New(core)).Emit(Event{RunID: "trip_1", Msg: tt.msg})

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("entries = %d, want 1", len(entries))
			}
			if entries[0].Level != tt.want {
				t.Errorf("level = %v, want %v", entries[0].Level, tt.want)
			}
		})
	}
}

func TestZapEmitter_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewZapEmitter(zap.New(core)).Emit(Event{
		RunID:  "trip_1",
		Step:   4,
		NodeID: "planner",
		Msg:    "node_end",
		Meta:   map[string]interface{}{"duration_ms": int64(15), "attempt": 0},
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	want := map[string]interface{}{
		"component":   "graph",
		"run_id":      "trip_1",
		"step":        int64(4),
		"node_id":     "planner",
		"duration_ms": int64(15),
		"attempt":     int64(0),
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %v (%T), want %v (%T)", k, fields[k], fields[k], v, v)
		}
	}
}

func TestZapEmitter_BelowLevelSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewZapEmitter(zap.New(core)).Emit(Event{Msg: "node_start"})
	if logs.Len() != 0 {
		t.Errorf("debug event logged at info level: %v", logs.All())
	}
}

func TestZapEmitter_NilLogger(t *testing.T) {
	NewZapEmitter(nil).Emit(Event{Msg: "node_error"})
}
