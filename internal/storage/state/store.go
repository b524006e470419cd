// Package state persists campaigns, positions and the trade-record audit
// trail in a write-ahead log. Replay is latest-wins per key, so a save is a
// full-record upsert.
package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"dcapilot/internal/domain"
)

const (
	campaignKeyPrefix = "campaign_"
	positionKeyPrefix = "position_"
	tradeKeyPrefix    = "trade_"

	walPrefix        = "state_"
	segmentThreshold = 1000
	maxSegments      = 100
)

// ErrVersionConflict is returned when a save carries a stale version, meaning
// another writer updated the record since it was read.
var ErrVersionConflict = errors.New("version conflict")

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is a WAL-backed campaign/position store with an in-memory view.
type Store struct {
	wal *gowal.Wal
	mu  sync.RWMutex

	campaigns map[string]*domain.Campaign
	positions map[string]*domain.Position
	trades    []domain.TradeRecord
}

// Open replays the WAL in dir into memory and returns a ready store.
func Open(dir string) (*Store, error) {
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           walPrefix,
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init state WAL")
	}

	s := &Store{
		wal:       wal,
		campaigns: make(map[string]*domain.Campaign),
		positions: make(map[string]*domain.Position),
	}

	for msg := range wal.Iterator() {
		switch {
		case strings.HasPrefix(msg.Key, campaignKeyPrefix):
			var c domain.Campaign
			if err := json.Unmarshal(msg.Value, &c); err != nil {
				return nil, errors.Wrapf(err, "decode campaign record %s", msg.Key)
			}
			s.campaigns[c.ID] = &c
		case strings.HasPrefix(msg.Key, positionKeyPrefix):
			var p domain.Position
			if err := json.Unmarshal(msg.Value, &p); err != nil {
				return nil, errors.Wrapf(err, "decode position record %s", msg.Key)
			}
			s.positions[p.ID] = &p
		case strings.HasPrefix(msg.Key, tradeKeyPrefix):
			var t domain.TradeRecord
			if err := json.Unmarshal(msg.Value, &t); err != nil {
				return nil, errors.Wrapf(err, "decode trade record %s", msg.Key)
			}
			s.trades = append(s.trades, t)
		}
	}

	return s, nil
}

// PutCampaign seeds a campaign from configuration. Existing campaigns are
// left untouched so re-seeding never resets progress.
func (s *Store) PutCampaign(c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[c.ID]; ok {
		return nil
	}

	return s.writeCampaign(c)
}

// SaveCampaign persists a full campaign record. The caller must hold the
// version it read; a mismatch means another writer won the race.
func (s *Store) SaveCampaign(c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.campaigns[c.ID]; ok && existing.Version != c.Version {
		return errors.Wrapf(ErrVersionConflict, "campaign %s: have %d, stored %d", c.ID, c.Version, existing.Version)
	}

	c.Version++
	return s.writeCampaign(c)
}

// PutPosition records a freshly opened position (manual entry or automated
// open by an external collaborator). Existing ids are left untouched.
func (s *Store) PutPosition(p *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[p.ID]; ok {
		return nil
	}

	return s.writePosition(p)
}

// SavePosition persists a full position record with an optimistic version check.
func (s *Store) SavePosition(p *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.positions[p.ID]; ok && existing.Version != p.Version {
		return errors.Wrapf(ErrVersionConflict, "position %s: have %d, stored %d", p.ID, p.Version, existing.Version)
	}

	p.Version++
	return s.writePosition(p)
}

// Campaign returns a copy of the campaign with the given id.
func (s *Store) Campaign(id string) (*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "campaign %s", id)
	}
	copied := *c
	return &copied, nil
}

// Position returns a copy of the position with the given id.
func (s *Store) Position(id string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "position %s", id)
	}
	copied := *p
	return &copied, nil
}

// ActiveCampaigns returns copies of all campaigns with the active flag set,
// ordered by id for deterministic tick reports.
func (s *Store) ActiveCampaigns() []*domain.Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		if !c.IsActive {
			continue
		}
		copied := *c
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ActiveTrailingPositions returns copies of all active positions with the
// trailing stop enabled, ordered by id.
func (s *Store) ActiveTrailingPositions() []*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if p.Status != domain.PositionStatusActive || !p.TrailingEnabled {
			continue
		}
		copied := *p
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// AppendTradeRecord adds an entry to the append-only audit trail.
func (s *Store) AppendTradeRecord(rec domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal trade record")
	}

	nextIndex := s.wal.CurrentIndex() + 1
	key := fmt.Sprintf("%s%d", tradeKeyPrefix, nextIndex)
	if err := s.wal.Write(nextIndex, key, data); err != nil {
		return errors.Wrap(err, "persist trade record")
	}

	s.trades = append(s.trades, rec)
	return nil
}

// TradeRecords returns a copy of the audit trail in append order.
func (s *Store) TradeRecords() []domain.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.TradeRecord, len(s.trades))
	copy(result, s.trades)
	return result
}

// Close closes the underlying WAL.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

func (s *Store) writeCampaign(c *domain.Campaign) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal campaign")
	}

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, campaignKeyPrefix+c.ID, data); err != nil {
		return errors.Wrapf(err, "persist campaign %s", c.ID)
	}

	copied := *c
	s.campaigns[c.ID] = &copied
	return nil
}

func (s *Store) writePosition(p *domain.Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal position")
	}

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, positionKeyPrefix+p.ID, data); err != nil {
		return errors.Wrapf(err, "persist position %s", p.ID)
	}

	copied := *p
	s.positions[p.ID] = &copied
	return nil
}
