package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordTurn(t *testing.T) {
	m := New()
	m.RecordTurn("pricing", 200*time.Millisecond, nil)
	m.RecordTurn("pricing", 100*time.Millisecond, nil)
	m.RecordTurn("greeting", 100*time.Millisecond, errors.New("boom"))

	stats := m.Stats()["turns"].(map[string]interface{})
	assert.Equal(t, uint64(3), stats["total"])
	assert.Equal(t, uint64(1), stats["errors"])
	assert.Equal(t, map[string]uint64{"pricing": 2}, stats["by_intent"])
	assert.InDelta(t, 133.3, stats["avg_duration_ms"], 0.5)
}

func TestRecordRetrieval(t *testing.T) {
	m := New()
	m.RecordRetrieval(4)
	m.RecordRetrieval(0)

	stats := m.Stats()["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(2), stats["total"])
	assert.Equal(t, uint64(4), stats["hits"])
	assert.Equal(t, uint64(1), stats["empty"])
	assert.InDelta(t, 0.5, stats["empty_rate"], 1e-9)
}

func TestExport(t *testing.T) {
	m := New()
	m.RecordTurn("services", time.Second, nil)
	m.RecordChat(time.Second, 10, 5, true, nil)
	m.RecordOrphansDeleted(3)
	m.RecordOrphansDeleted(-1)

	out := m.Export(Namespace, "")

	tests := []string{
		"# TYPE consultant_turns_total counter",
		"consultant_turns_total 1\n",
		"consultant_chat_fallback_calls_total 1\n",
		"consultant_tokens_prompt_total 10\n",
		"consultant_orphans_deleted_total 3\n",
		`consultant_turns_by_intent_total{intent="services"} 1`,
		"consultant_turn_duration_seconds_total 1.000000",
	}
	for _, want := range tests {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, m.Export(Namespace, "rag"), "consultant_rag_quotes_total 0")
}

func TestReset(t *testing.T) {
	m := New()
	m.RecordQuote()
	m.RecordIndexed(nil)
	m.RecordIndexed(errors.New("x"))
	m.RecordTurn("general", time.Second, nil)

	m.Reset()

	s := m.Stats()
	assert.Equal(t, uint64(0), s["quotes"])
	assert.Equal(t, uint64(0), s["indexing"].(map[string]interface{})["chunks"])
	assert.Empty(t, s["turns"].(map[string]interface{})["by_intent"])
}
