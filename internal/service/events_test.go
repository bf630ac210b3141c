package service

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/whisprlabs/whisprgate/internal/model"
)

func executedEvent(user model.Address, n uint64) model.ConfidentialSwapExecutedEvent {
	return model.ConfidentialSwapExecutedEvent{
		User:           user,
		Execute:        model.Ciphertext{byte(n)},
		WithdrawAmount: model.Ciphertext{byte(n + 1)},
		Nonce:          model.NonceFromUint64(n),
	}
}

func TestJournalListFiltersByUser(t *testing.T) {
	journal, err := NewEventJournal(t.TempDir(), 100, nil)
	assert.NoError(t, err)
	t.Cleanup(journal.Close)

	alice := testUser(1)
	bob := testUser(2)
	journal.EmitExecuted(executedEvent(alice, 1))
	journal.EmitExecuted(executedEvent(bob, 2))
	journal.EmitExecuted(executedEvent(alice, 3))

	records, err := journal.List(context.Background(), alice, 10)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, alice, rec.User)
	}

	// Zero address lists everything
	all, err := journal.List(context.Background(), model.Address{}, 10)
	assert.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestJournalSubscribe(t *testing.T) {
	journal, err := NewEventJournal(t.TempDir(), 100, nil)
	assert.NoError(t, err)
	t.Cleanup(journal.Close)

	ch, cancel := journal.Subscribe()
	defer cancel()

	user := testUser(3)
	emitted := journal.EmitExecuted(executedEvent(user, 7))

	select {
	case rec := <-ch:
		assert.Equal(t, emitted.ID, rec.ID)
		assert.Equal(t, user, rec.User)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive the event")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestJournalWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	journal, err := NewEventJournal(dir, 100, nil)
	assert.NoError(t, err)

	user := testUser(4)
	emitted := journal.EmitExecuted(executedEvent(user, 9))

	// Close flushes the consumer goroutine's pending writes
	assert.Eventually(t, func() bool {
		entries, _ := filepath.Glob(filepath.Join(dir, "events-*.jsonl"))
		if len(entries) != 1 {
			return false
		}
		info, err := os.Stat(entries[0])
		return err == nil && info.Size() > 0
	}, 2*time.Second, 10*time.Millisecond)
	journal.Close()

	entries, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl"))
	assert.NoError(t, err)
	assert.Len(t, entries, 1)

	f, err := os.Open(entries[0])
	assert.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	assert.True(t, scanner.Scan())
	var rec model.EventRecord
	assert.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
	assert.Equal(t, emitted.ID, rec.ID)
	assert.Equal(t, model.EventConfidentialSwapExecuted, rec.Type)
}

func TestJournalBufferTrims(t *testing.T) {
	journal, err := NewEventJournal(t.TempDir(), 100, nil)
	assert.NoError(t, err)
	t.Cleanup(journal.Close)
	journal.buffer = newEventBuffer(3)

	user := testUser(5)
	for i := uint64(0); i < 10; i++ {
		journal.EmitExecuted(executedEvent(user, i))
	}

	records := journal.buffer.List(user, 100)
	assert.Len(t, records, 3)
	// Most recent first
	assert.Equal(t, model.NonceFromUint64(9), mustEvent(t, records[0]).Nonce)
}

func mustEvent(t *testing.T, rec *model.EventRecord) model.ConfidentialSwapExecutedEvent {
	t.Helper()
	var ev model.ConfidentialSwapExecutedEvent
	assert.NoError(t, json.Unmarshal(rec.Payload, &ev))
	return ev
}
