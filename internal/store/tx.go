package store

import (
	"context"
	"encoding/json"
	"fmt"

	"musdScope/internal/model"
)

// Tx is the unit of work for one event. Reads see the Tx's own pending writes;
// nothing reaches the backend until Commit.
type Tx struct {
	backend Backend
	pending map[string][]byte
	order   []string
	done    bool
}

func newTx(backend Backend) *Tx {
	return &Tx{backend: backend, pending: make(map[string][]byte)}
}

// Get implements the raw read used by the typed loaders.
func (tx *Tx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := tx.pending[key]; ok {
		return v, true, nil
	}
	return tx.backend.Get(ctx, key)
}

func (tx *Tx) put(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if _, ok := tx.pending[key]; !ok {
		tx.order = append(tx.order, key)
	}
	tx.pending[key] = data
	return nil
}

// Writes returns the pending writes in first-write order.
func (tx *Tx) Writes() []Write {
	out := make([]Write, 0, len(tx.order))
	for _, k := range tx.order {
		out = append(out, Write{Key: k, Value: tx.pending[k]})
	}
	return out
}

// Commit hands every pending write to the backend in one batch.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return fmt.Errorf("store: tx already finished")
	}
	tx.done = true
	if len(tx.order) == 0 {
		return nil
	}
	if err := tx.backend.Commit(ctx, tx.Writes()); err != nil {
		return fmt.Errorf("commit %d writes: %w", len(tx.order), err)
	}
	return nil
}

// Discard drops pending writes.
func (tx *Tx) Discard() {
	tx.done = true
	tx.pending = make(map[string][]byte)
	tx.order = nil
}

// LoadUser returns the stored user or a zero user, and whether it existed.
func (tx *Tx) LoadUser(ctx context.Context, id string) (*model.User, bool, error) {
	u := model.NewUser(id)
	found, err := getJSON(ctx, tx, entityKey(KindUser, id), u)
	if err != nil {
		return nil, false, err
	}
	return u, found, nil
}

func (tx *Tx) SaveUser(u *model.User) error {
	return tx.put(entityKey(KindUser, u.ID), u)
}

func (tx *Tx) LoadStats(ctx context.Context) (*model.ProtocolStats, error) {
	s := model.NewProtocolStats()
	if _, err := getJSON(ctx, tx, entityKey(KindProtocolStats, model.StatsID), s); err != nil {
		return nil, err
	}
	return s, nil
}

func (tx *Tx) SaveStats(s *model.ProtocolStats) error {
	return tx.put(entityKey(KindProtocolStats, model.StatsID), s)
}

// LoadPool returns the stored pool or a zero pool, and whether it existed.
func (tx *Tx) LoadPool(ctx context.Context, id string) (*model.RWAPool, bool, error) {
	p := model.NewRWAPool(id)
	found, err := getJSON(ctx, tx, entityKey(KindRWAPool, id), p)
	if err != nil {
		return nil, false, err
	}
	return p, found, nil
}

func (tx *Tx) SavePool(p *model.RWAPool) error {
	return tx.put(entityKey(KindRWAPool, p.ID), p)
}

func (tx *Tx) LoadLiquidityPosition(ctx context.Context, pool, user string) (*model.LiquidityPosition, error) {
	lp := model.NewLiquidityPosition(pool, user)
	if _, err := getJSON(ctx, tx, entityKey(KindLiquidityPosition, lp.ID), lp); err != nil {
		return nil, err
	}
	return lp, nil
}

func (tx *Tx) SaveLiquidityPosition(lp *model.LiquidityPosition) error {
	if err := tx.put(entityKey(KindLiquidityPosition, lp.ID), lp); err != nil {
		return err
	}
	return tx.put(indexPrefix(indexLiquidityByUser, lp.User)+lp.Pool, lp.ID)
}

// LoadSuperStakePosition returns the stored position or a zero one, and whether it existed.
func (tx *Tx) LoadSuperStakePosition(ctx context.Context, user string) (*model.SuperStakePosition, bool, error) {
	p := model.NewSuperStakePosition(user)
	found, err := getJSON(ctx, tx, entityKey(KindSuperStakePosition, user), p)
	if err != nil {
		return nil, false, err
	}
	return p, found, nil
}

func (tx *Tx) SaveSuperStakePosition(p *model.SuperStakePosition) error {
	return tx.put(entityKey(KindSuperStakePosition, p.ID), p)
}

// AppendMUSDPosition writes an immutable snapshot and its per-user index entry.
func (tx *Tx) AppendMUSDPosition(ctx context.Context, p *model.MUSDPosition) error {
	if err := tx.appendOnce(ctx, entityKey(KindMUSDPosition, p.ID), p); err != nil {
		return err
	}
	return tx.put(chainOrderKey(indexPrefix(indexMUSDPositionsByUser, p.User), p.BlockNumber, p.LogIndex), p.ID)
}

// AppendSwap writes an immutable swap row indexed by pool and by user.
func (tx *Tx) AppendSwap(ctx context.Context, s *model.RWASwap) error {
	if err := tx.appendOnce(ctx, entityKey(KindRWASwap, s.ID), s); err != nil {
		return err
	}
	if err := tx.put(chainOrderKey(indexPrefix(indexSwapsByPool, s.Pool), s.BlockNumber, s.LogIndex), s.ID); err != nil {
		return err
	}
	return tx.put(chainOrderKey(indexPrefix(indexSwapsByUser, s.User), s.BlockNumber, s.LogIndex), s.ID)
}

// AppendSuperStakeHistory writes an immutable history row and its per-user index entry.
func (tx *Tx) AppendSuperStakeHistory(ctx context.Context, h *model.SuperStakePositionHistory) error {
	if err := tx.appendOnce(ctx, entityKey(KindSuperStakeHistory, h.ID), h); err != nil {
		return err
	}
	return tx.put(chainOrderKey(indexPrefix(indexHistoryByUser, h.User), h.BlockNumber, h.LogIndex), h.ID)
}

func (tx *Tx) appendOnce(ctx context.Context, key string, v interface{}) error {
	_, found, err := tx.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if found {
		return fmt.Errorf("%s: %w", key, ErrImmutable)
	}
	return tx.put(key, v)
}

// Cursor returns the last committed event position.
func (tx *Tx) Cursor(ctx context.Context) (model.Cursor, bool, error) {
	var c model.Cursor
	found, err := getJSON(ctx, tx, cursorKey, &c)
	return c, found, err
}

func (tx *Tx) SetCursor(c model.Cursor) error {
	return tx.put(cursorKey, c)
}

type getter interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

func getJSON(ctx context.Context, g getter, key string, dst interface{}) (bool, error) {
	data, found, err := g.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
