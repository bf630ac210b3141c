package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/whisprlabs/whisprgate/internal/model"
)

type EventRepo interface {
	Insert(ctx context.Context, rec *model.EventRecord) error
	List(ctx context.Context, user model.Address, limit int) ([]*model.EventRecord, error)
}

// EventJournal is the append-only public event log. Entries are emitted once
// and never mutated; persistence (jsonl file plus optional repo) happens on
// a consumer goroutine so emission never blocks the callback path.
type EventJournal struct {
	logChan chan *model.EventRecord
	logFile *os.File
	buffer  *eventBuffer
	repo    EventRepo

	subMu sync.Mutex
	subs  map[int]chan *model.EventRecord
	nextS int

	drained chan struct{}
}

func NewEventJournal(dir string, bufferSize int, repo EventRepo) (*EventJournal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	// Daily file, append-only
	filename := filepath.Join(dir, "events-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	j := &EventJournal{
		logChan: make(chan *model.EventRecord, bufferSize),
		logFile: f,
		buffer:  newEventBuffer(bufferSize),
		repo:    repo,
		subs:    make(map[int]chan *model.EventRecord),
		drained: make(chan struct{}),
	}

	go j.processEvents()

	return j, nil
}

// EmitExecuted journals one ConfidentialSwapExecutedEvent. The payload is
// opaque ciphertext by design; the journal stores and forwards it verbatim.
func (j *EventJournal) EmitExecuted(ev model.ConfidentialSwapExecutedEvent) *model.EventRecord {
	payload, _ := json.Marshal(ev)
	rec := &model.EventRecord{
		ID:        uuid.NewString(),
		Type:      model.EventConfidentialSwapExecuted,
		User:      ev.User,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	j.append(rec)
	return rec
}

func (j *EventJournal) append(rec *model.EventRecord) {
	if j.buffer != nil {
		j.buffer.Add(rec)
	}
	j.broadcast(rec)
	select {
	case j.logChan <- rec:
	default:
		// Buffer full: protect the callback path, warn loudly
		log.Println("event journal buffer full, dropping persistence of entry", rec.ID)
	}
}

func (j *EventJournal) List(ctx context.Context, user model.Address, limit int) ([]*model.EventRecord, error) {
	if j.repo != nil {
		records, err := j.repo.List(ctx, user, limit)
		if err == nil {
			return records, nil
		}
	}
	if j.buffer == nil {
		return nil, nil
	}
	return j.buffer.List(user, limit), nil
}

// Subscribe registers a live feed of journaled events. The returned cancel
// func must be called to free the subscription.
func (j *EventJournal) Subscribe() (<-chan *model.EventRecord, func()) {
	ch := make(chan *model.EventRecord, 16)
	j.subMu.Lock()
	id := j.nextS
	j.nextS++
	j.subs[id] = ch
	j.subMu.Unlock()

	cancel := func() {
		j.subMu.Lock()
		if _, ok := j.subs[id]; ok {
			delete(j.subs, id)
			close(ch)
		}
		j.subMu.Unlock()
	}
	return ch, cancel
}

func (j *EventJournal) broadcast(rec *model.EventRecord) {
	j.subMu.Lock()
	defer j.subMu.Unlock()
	for _, ch := range j.subs {
		select {
		case ch <- rec:
		default:
			// Slow consumer misses the entry; the journal is the record
		}
	}
}

func (j *EventJournal) processEvents() {
	defer close(j.drained)
	encoder := json.NewEncoder(j.logFile)
	for rec := range j.logChan {
		if j.repo != nil {
			if err := j.repo.Insert(context.Background(), rec); err != nil {
				log.Printf("failed to write event to repo: %v", err)
			}
		}
		if err := encoder.Encode(rec); err != nil {
			log.Printf("failed to write event to file: %v", err)
		}
	}
}

func (j *EventJournal) Close() {
	close(j.logChan)
	<-j.drained
	j.logFile.Close()
}

type eventBuffer struct {
	mu      sync.Mutex
	maxSize int
	records []*model.EventRecord
}

func newEventBuffer(maxSize int) *eventBuffer {
	return &eventBuffer{maxSize: maxSize}
}

func (b *eventBuffer) Add(rec *model.EventRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, rec)
	if len(b.records) > b.maxSize {
		b.records = b.records[len(b.records)-b.maxSize:]
	}
}

func (b *eventBuffer) List(user model.Address, limit int) []*model.EventRecord {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*model.EventRecord
	for i := len(b.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := b.records[i]
		if !user.IsZero() && rec.User != user {
			continue
		}
		out = append(out, rec)
	}
	return out
}
