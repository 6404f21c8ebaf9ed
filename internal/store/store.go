package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"musdScope/internal/model"
)

// Store is the entity repository. Mutations go through Begin/Tx; the methods on
// Store itself are the query side.
type Store struct {
	backend Backend
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Begin starts a unit of work.
func (s *Store) Begin() *Tx {
	return newTx(s.backend)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Stats returns the protocol aggregate, zero-valued before the first event.
func (s *Store) Stats(ctx context.Context) (*model.ProtocolStats, error) {
	stats := model.NewProtocolStats()
	if _, err := getJSON(ctx, s.backend, entityKey(KindProtocolStats, model.StatsID), stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) User(ctx context.Context, id string) (*model.User, error) {
	u := model.NewUser(id)
	if err := s.mustGet(ctx, entityKey(KindUser, id), u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) Pool(ctx context.Context, id string) (*model.RWAPool, error) {
	p := model.NewRWAPool(id)
	if err := s.mustGet(ctx, entityKey(KindRWAPool, id), p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) SuperStakePosition(ctx context.Context, user string) (*model.SuperStakePosition, error) {
	p := model.NewSuperStakePosition(user)
	if err := s.mustGet(ctx, entityKey(KindSuperStakePosition, user), p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) LiquidityPosition(ctx context.Context, pool, user string) (*model.LiquidityPosition, error) {
	lp := model.NewLiquidityPosition(pool, user)
	if err := s.mustGet(ctx, entityKey(KindLiquidityPosition, lp.ID), lp); err != nil {
		return nil, err
	}
	return lp, nil
}

func (s *Store) MUSDPosition(ctx context.Context, id string) (*model.MUSDPosition, error) {
	var p model.MUSDPosition
	if err := s.mustGet(ctx, entityKey(KindMUSDPosition, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) Swap(ctx context.Context, id string) (*model.RWASwap, error) {
	var sw model.RWASwap
	if err := s.mustGet(ctx, entityKey(KindRWASwap, id), &sw); err != nil {
		return nil, err
	}
	return &sw, nil
}

func (s *Store) SuperStakeHistoryEntry(ctx context.Context, id string) (*model.SuperStakePositionHistory, error) {
	var h model.SuperStakePositionHistory
	if err := s.mustGet(ctx, entityKey(KindSuperStakeHistory, id), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Pools lists every known pool ordered by address.
func (s *Store) Pools(ctx context.Context) ([]*model.RWAPool, error) {
	kvs, err := s.backend.Scan(ctx, entityPrefix(KindRWAPool), false, 0)
	if err != nil {
		return nil, fmt.Errorf("scan pools: %w", err)
	}
	out := make([]*model.RWAPool, 0, len(kvs))
	for _, kv := range kvs {
		p := model.NewRWAPool("")
		if err := json.Unmarshal(kv.Value, p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kv.Key, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// MUSDPositions returns a user's snapshots, newest first.
func (s *Store) MUSDPositions(ctx context.Context, user string, limit int) ([]*model.MUSDPosition, error) {
	ids, err := s.indexIDs(ctx, indexPrefix(indexMUSDPositionsByUser, user), true, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*model.MUSDPosition, 0, len(ids))
	for _, id := range ids {
		p, err := s.MUSDPosition(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SwapsByPool returns a pool's swaps, newest first.
func (s *Store) SwapsByPool(ctx context.Context, pool string, limit int) ([]*model.RWASwap, error) {
	return s.swaps(ctx, indexPrefix(indexSwapsByPool, pool), limit)
}

// SwapsByUser returns a trader's swaps, newest first.
func (s *Store) SwapsByUser(ctx context.Context, user string, limit int) ([]*model.RWASwap, error) {
	return s.swaps(ctx, indexPrefix(indexSwapsByUser, user), limit)
}

func (s *Store) swaps(ctx context.Context, prefix string, limit int) ([]*model.RWASwap, error) {
	ids, err := s.indexIDs(ctx, prefix, true, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*model.RWASwap, 0, len(ids))
	for _, id := range ids {
		sw, err := s.Swap(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, nil
}

// SuperStakeHistory returns a user's staking history, newest first.
func (s *Store) SuperStakeHistory(ctx context.Context, user string, limit int) ([]*model.SuperStakePositionHistory, error) {
	ids, err := s.indexIDs(ctx, indexPrefix(indexHistoryByUser, user), true, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*model.SuperStakePositionHistory, 0, len(ids))
	for _, id := range ids {
		h, err := s.SuperStakeHistoryEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// LiquidityPositionsByUser returns every pool position held by user, ordered by pool.
func (s *Store) LiquidityPositionsByUser(ctx context.Context, user string) ([]*model.LiquidityPosition, error) {
	ids, err := s.indexIDs(ctx, indexPrefix(indexLiquidityByUser, user), false, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*model.LiquidityPosition, 0, len(ids))
	for _, id := range ids {
		lp := model.NewLiquidityPosition("", user)
		if err := s.mustGet(ctx, entityKey(KindLiquidityPosition, id), lp); err != nil {
			return nil, err
		}
		out = append(out, lp)
	}
	return out, nil
}

// Cursor returns the position of the last applied event.
func (s *Store) Cursor(ctx context.Context) (model.Cursor, bool, error) {
	var c model.Cursor
	found, err := getJSON(ctx, s.backend, cursorKey, &c)
	return c, found, err
}

// LoadCheckpoint returns the last fully scanned block.
func (s *Store) LoadCheckpoint(ctx context.Context) (uint64, bool, error) {
	var cp model.Checkpoint
	found, err := getJSON(ctx, s.backend, checkpointKey, &cp)
	if err != nil || !found {
		return 0, false, err
	}
	return cp.LastScannedBlock, true, nil
}

// SaveCheckpoint records the last fully scanned block.
func (s *Store) SaveCheckpoint(ctx context.Context, block uint64) error {
	data, err := json.Marshal(model.Checkpoint{
		LastScannedBlock: block,
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := s.backend.Commit(ctx, []Write{{Key: checkpointKey, Value: data}}); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *Store) mustGet(ctx context.Context, key string, dst interface{}) error {
	found, err := getJSON(ctx, s.backend, key, dst)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return nil
}

func (s *Store) indexIDs(ctx context.Context, prefix string, reverse bool, limit int) ([]string, error) {
	kvs, err := s.backend.Scan(ctx, prefix, reverse, limit)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	ids := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		var id string
		if err := json.Unmarshal(kv.Value, &id); err != nil {
			return nil, fmt.Errorf("decode index %s: %w", kv.Key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
