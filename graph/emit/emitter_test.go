package emit

import "testing"

func TestMultiEmitter(t *testing.T) {
	a, b := NewBufferedEmitter(), NewBufferedEmitter()
	m := NewMultiEmitter(a, nil, b, NewNullEmitter())

	m.Emit(Event{RunID: "r", Msg: "run_start"})
	m.Emit(Event{RunID: "r", Msg: "run_complete"})

	for name, e := range map[string]*BufferedEmitter{"a": a, "b": b} {
		h := e.GetHistory("r")
		if len(h) != 2 || h[0].Msg != "run_start" || h[1].Msg != "run_complete" {
			t.Errorf("%s history = %+v", name, h)
		}
	}
}

func TestEmitterImplementations(t *testing.T) {
	var _ Emitter = NewNullEmitter()
	var _ Emitter = NewBufferedEmitter()
	var _ Emitter = NewLogEmitter(nil, false)
	var _ Emitter = NewZapEmitter(nil)
	var _ Emitter = NewOTelEmitter(nil)
	var _ Emitter = NewMultiEmitter()
}
