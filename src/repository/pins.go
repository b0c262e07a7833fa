package repository

import (
	"fmt"
	"sync"
	"time"

	cfg "vibemint/src/configuration"
)

type (
	// PinRecord is one successful upload as remembered by the serve binary.
	// Nothing here is authoritative; the pinning network and the chain are.
	PinRecord struct {
		TokenURI string    `json:"tokenURI"`
		ImageURL string    `json:"imageUrl"`
		Name     string    `json:"name"`
		Size     int64     `json:"size"`
		PinnedAt time.Time `json:"pinnedAt"`
	}

	PinLedger interface {
		Record(record PinRecord) error
		Recent(limit int) []PinRecord
		Connect() bool
	}

	InMemoryLedger struct {
		mu      sync.Mutex
		records []PinRecord
	}
)

func NewPinLedger(config *cfg.Properties) (PinLedger, error) {
	if config == nil {
		return nil, fmt.Errorf("config is not valid")
	}
	return &InMemoryLedger{}, nil
}

func (l *InMemoryLedger) Connect() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.records == nil {
		l.records = make([]PinRecord, 0)
	}
	return true
}

func (l *InMemoryLedger) Record(record PinRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.records == nil {
		return fmt.Errorf("can not record pin, ledger is off")
	}
	l.records = append(l.records, record)
	return nil
}

// Recent returns up to limit records, newest first.
func (l *InMemoryLedger) Recent(limit int) []PinRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]PinRecord, 0, limit)
	for i := len(l.records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, l.records[i])
	}
	return result
}
