package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *MessageLog {
	t.Helper()
	return NewMessageLog(filepath.Join(t.TempDir(), "conversation.json"))
}

func TestMessageLogAddAndRetrieve(t *testing.T) {
	log := newTestLog(t)

	log.Add("user", "hello there", "")
	log.Add("ccb", "hi", "assistant")

	require.Equal(t, 2, log.Len())

	last := log.Last()
	require.NotNil(t, last)
	assert.Equal(t, "ccb", last.Sender)
	assert.Equal(t, "assistant", last.Role)

	lastUser := log.LastByRole("user")
	require.NotNil(t, lastUser)
	assert.Equal(t, "hello there", lastUser.Text)
	assert.Equal(t, "user", lastUser.Role, "empty role should default to user")

	recent := log.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "hi", recent[0].Text)

	assert.Len(t, log.Recent(10), 2, "Recent should clamp to available messages")
	assert.Empty(t, log.Recent(0))
}

func TestMessageLogEmpty(t *testing.T) {
	log := newTestLog(t)

	assert.Nil(t, log.Last())
	assert.Nil(t, log.LastByRole("user"))
	assert.Empty(t, log.All())
	assert.Equal(t, "[]", log.Export())
}

func TestMessageLogPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation.json")

	first := NewMessageLog(path)
	first.Add("user", "remember me", "")

	second := NewMessageLog(path)
	require.Equal(t, 1, second.Len())
	assert.Equal(t, "remember me", second.All()[0].Text)
}

func TestMessageLogCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	log := NewMessageLog(path)
	assert.Equal(t, 0, log.Len())
}

func TestMessageLogWrongShapeStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"sender": "user"}]`), 0600))

	log := NewMessageLog(path)
	assert.Equal(t, 0, log.Len(), "elements without text should invalidate the file")
}

func TestMessageLogSearch(t *testing.T) {
	log := newTestLog(t)
	log.Add("user", "the parser crashed", "")
	log.Add("ccb", "Parser fixed now", "assistant")
	log.Add("user", "thanks", "")

	hits := log.Search("PARSER")
	require.Len(t, hits, 2)
	assert.Equal(t, "the parser crashed", hits[0].Text)

	assert.Empty(t, log.Search("compiler"))
}

func TestMessageLogPrune(t *testing.T) {
	fill := func(t *testing.T) *MessageLog {
		log := newTestLog(t)
		for _, text := range []string{"one", "two", "three", "four"} {
			log.Add("user", text, "")
		}
		return log
	}

	t.Run("oldest keeps tail", func(t *testing.T) {
		log := fill(t)
		log.Prune(2, "oldest")

		require.Equal(t, 2, log.Len())
		assert.Equal(t, "three", log.All()[0].Text)
		assert.Equal(t, "four", log.All()[1].Text)
	})

	t.Run("newest keeps head", func(t *testing.T) {
		log := fill(t)
		log.Prune(2, "newest")

		require.Equal(t, 2, log.Len())
		assert.Equal(t, "one", log.All()[0].Text)
		assert.Equal(t, "two", log.All()[1].Text)
	})

	t.Run("unknown strategy keeps all", func(t *testing.T) {
		log := fill(t)
		log.Prune(1, "random")

		assert.Equal(t, 4, log.Len())
	})

	t.Run("within limit untouched", func(t *testing.T) {
		log := newTestLog(t)
		log.Add("user", "only", "")

		log.Prune(5, "oldest")
		assert.Equal(t, 1, log.Len())
	})
}

func TestMessageLogClearOverwritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation.json")
	log := NewMessageLog(path)
	log.Add("user", "data", "")

	log.Clear()
	assert.Equal(t, 0, log.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestMessageLogExportImport(t *testing.T) {
	log := newTestLog(t)
	log.Add("user", "exported line", "")

	exported := log.Export()

	var parsed []Message
	require.NoError(t, json.Unmarshal([]byte(exported), &parsed))
	require.Len(t, parsed, 1)

	other := newTestLog(t)
	require.NoError(t, other.Import(exported))
	require.Equal(t, 1, other.Len())
	assert.Equal(t, "exported line", other.All()[0].Text)

	assert.Error(t, other.Import(`{"sender": "user"}`), "non-array import should fail")
	assert.Error(t, other.Import(`[{"role": "user"}]`), "missing sender/text should fail")
	assert.Equal(t, 1, other.Len(), "failed import should leave the log untouched")
}

func TestMessageLogAllReturnsCopy(t *testing.T) {
	log := newTestLog(t)
	log.Add("user", "original", "")

	all := log.All()
	all[0].Text = "mutated"

	assert.Equal(t, "original", log.All()[0].Text)
}
