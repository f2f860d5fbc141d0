package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// LogEmitter prints one line per event, for the plan command's --events
// trace and for tests.
//
//	[node_end] runID=trip_1 step=3 nodeID=planner meta={"attempt":0,"duration_ms":812}
//	{"runID":"trip_1","step":3,"nodeID":"planner","msg":"node_end","meta":{"attempt":0,"duration_ms":812}}
//
// Writes are serialized, so lines from concurrent branches stay whole.
type LogEmitter struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

// NewLogEmitter writes text lines, or JSON lines when jsonMode is set. A nil
// writer means os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{w: writer, json: jsonMode}
}

// jsonLine is the JSON shape of an event.
type jsonLine struct {
	RunID  string                 `json:"runID"`
	Step   int                    `json:"step"`
	NodeID string                 `json:"nodeID"`
	Msg    string                 `json:"msg"`
	Meta   map[string]interface{} `json:"meta"`
}

func (l *LogEmitter) Emit(event Event) {
	var line string
	if l.json {
		line = jsonFormat(event)
	} else {
		line = textFormat(event)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, line)
}

func jsonFormat(e Event) string {
	data, err := json.Marshal(jsonLine{RunID: e.RunID, Step: e.Step, NodeID: e.NodeID, Msg: e.Msg, Meta: e.Meta})
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}\n", "failed to marshal event: "+err.Error())
	}
	return string(data) + "\n"
}

func textFormat(e Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] runID=%s step=%d nodeID=%s", e.Msg, e.RunID, e.Step, e.NodeID)
	if len(e.Meta) > 0 {
		if meta, err := json.Marshal(e.Meta); err == nil {
			b.WriteString(" meta=")
			b.Write(meta)
		} else {
			fmt.Fprintf(&b, " meta=%v", e.Meta)
		}
	}
	b.WriteByte('\n')
	return b.String()
}
