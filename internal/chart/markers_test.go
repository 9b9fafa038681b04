// internal/chart/markers_test.go
package chart_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/selinkarabicakkk/trading-bot/internal/chart"
)

func TestMarkerBuffer_EvictsOldest(t *testing.T) {
	b := chart.NewMarkerBuffer(3)
	for i := 1; i <= 5; i++ {
		b.CreateMarker(json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
	}
	got := b.Markers()
	want := []string{`{"n":3}`, `{"n":4}`, `{"n":5}`}
	if len(got) != len(want) {
		t.Fatalf("len = %d; want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("marker %d = %s; want %s", i, got[i], want[i])
		}
	}
}

func TestMarkerBuffer_CopiesInputAndResets(t *testing.T) {
	b := chart.NewMarkerBuffer(0)
	m := json.RawMessage(`{"shape":"arrowUp"}`)
	b.CreateMarker(m)
	m[2] = 'X'
	if got := string(b.Markers()[0]); got != `{"shape":"arrowUp"}` {
		t.Errorf("buffer aliased caller slice: %s", got)
	}
	b.Reset()
	if n := len(b.Markers()); n != 0 {
		t.Errorf("after Reset len = %d", n)
	}
}
