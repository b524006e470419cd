package engine

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
)

const (
	intentKeyPrefix = "order_intent_"

	intentStatusPending = "pending"
	intentStatusDone    = "done"
	intentStatusFailed  = "failed"

	journalWALPrefix        = "intent_"
	journalSegmentThreshold = 1000
	journalMaxSegments      = 100
)

// OrderIntent is a journaled order submission. It is written before the
// gateway call, its id doubles as the exchange client order id, and pending
// intents are reconciled on startup.
type OrderIntent struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	CampaignID  string          `json:"campaign_id"`
	Symbol      string          `json:"symbol"`
	QuoteAmount decimal.Decimal `json:"quote_amount"`
	// OrderIndex is the campaign's order counter at submission time, used to
	// detect intents that were already applied.
	OrderIndex int       `json:"order_index"`
	Time       time.Time `json:"time"`
	Error      string    `json:"error,omitempty"`
}

// Journal is the WAL-backed order-intent log.
type Journal struct {
	wal     *gowal.Wal
	mu      sync.Mutex
	intents map[string]*OrderIntent
	order   []string
}

// OpenJournal replays the intent WAL in dir. The last record per intent wins.
func OpenJournal(dir string) (*Journal, error) {
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           journalWALPrefix,
		SegmentThreshold: journalSegmentThreshold,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init intent WAL")
	}

	j := &Journal{
		wal:     wal,
		intents: make(map[string]*OrderIntent),
	}

	for msg := range wal.Iterator() {
		var intent OrderIntent
		if err := json.Unmarshal(msg.Value, &intent); err != nil {
			return nil, errors.Wrapf(err, "decode order intent %s", msg.Key)
		}
		if _, seen := j.intents[intent.ID]; !seen {
			j.order = append(j.order, intent.ID)
		}
		intentCopy := intent
		j.intents[intent.ID] = &intentCopy
	}

	return j, nil
}

// Prepare journals a pending intent for the next order of the campaign and
// returns it. The intent id is the idempotency key handed to the exchange.
func (j *Journal) Prepare(campaignID, symbol string, quoteAmount decimal.Decimal, orderIndex int, now time.Time) (*OrderIntent, error) {
	intent := &OrderIntent{
		ID:          uuid.New().String(),
		Status:      intentStatusPending,
		CampaignID:  campaignID,
		Symbol:      symbol,
		QuoteAmount: quoteAmount,
		OrderIndex:  orderIndex,
		Time:        now,
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.persist(intent); err != nil {
		return nil, err
	}

	j.intents[intent.ID] = intent
	j.order = append(j.order, intent.ID)

	return intent, nil
}

// MarkDone records that the intent was executed and applied.
func (j *Journal) MarkDone(intent *OrderIntent) error {
	if intent == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	intent.Status = intentStatusDone
	intent.Error = ""
	return j.persist(intent)
}

// MarkFailed records that the intent did not execute.
func (j *Journal) MarkFailed(intent *OrderIntent, cause error) error {
	if intent == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	intent.Status = intentStatusFailed
	if cause != nil {
		intent.Error = cause.Error()
	} else {
		intent.Error = ""
	}
	return j.persist(intent)
}

// Pending returns the pending intents in journal order.
func (j *Journal) Pending() []*OrderIntent {
	j.mu.Lock()
	defer j.mu.Unlock()

	pending := make([]*OrderIntent, 0)
	for _, id := range j.order {
		if intent := j.intents[id]; intent != nil && intent.Status == intentStatusPending {
			pending = append(pending, intent)
		}
	}
	return pending
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}

func (j *Journal) persist(intent *OrderIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return errors.Wrap(err, "marshal order intent")
	}

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, intentKeyPrefix+intent.ID, data)
}
