package indexer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"musdScope/internal/store"
)

// Sources is the set of contract addresses whose logs are fetched: the static
// protocol contracts plus every pool the factory has created. It implements
// engine.SourceRegistry.
type Sources struct {
	mu      sync.RWMutex
	static  []common.Address
	factory common.Address
	pools   map[common.Address]uint64
}

func NewSources(static []common.Address, factory common.Address) *Sources {
	return &Sources{
		static:  append([]common.Address(nil), static...),
		factory: factory,
		pools:   make(map[common.Address]uint64),
	}
}

// LoadPools registers every pool already in the store.
func (s *Sources) LoadPools(ctx context.Context, st *store.Store) (int, error) {
	pools, err := st.Pools(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range pools {
		s.RegisterPool(p.ID, p.CreatedAtBlock)
	}
	return len(pools), nil
}

// RegisterPool starts following a pool from the given block.
func (s *Sources) RegisterPool(pool string, fromBlock uint64) {
	if !common.IsHexAddress(pool) {
		return
	}
	addr := common.HexToAddress(pool)
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.pools[addr]; ok && prev <= fromBlock {
		return
	}
	s.pools[addr] = fromBlock
}

// Tracks reports whether addr is already followed.
func (s *Sources) Tracks(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.pools[addr]; ok {
		return true
	}
	for _, a := range s.static {
		if a == addr {
			return true
		}
	}
	return false
}

func (s *Sources) Factory() common.Address {
	return s.factory
}

// Addresses returns static and pool addresses, deduplicated and sorted.
func (s *Sources) Addresses() []common.Address {
	return s.addresses(func(uint64) bool { return true })
}

// AddressesUpTo is Addresses without the pools registered from a block after
// toBlock: such a pool cannot have emitted anything in a range ending there.
func (s *Sources) AddressesUpTo(toBlock uint64) []common.Address {
	return s.addresses(func(from uint64) bool { return from <= toBlock })
}

func (s *Sources) addresses(include func(from uint64) bool) []common.Address {
	s.mu.RLock()
	seen := make(map[common.Address]struct{}, len(s.static)+len(s.pools))
	out := make([]common.Address, 0, len(s.static)+len(s.pools))
	add := func(a common.Address) {
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, a := range s.static {
		add(a)
	}
	for a, from := range s.pools {
		if include(from) {
			add(a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].Hex(), out[j].Hex()) < 0
	})
	return out
}

func (s *Sources) PoolCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}

// ParseAddresses parses configured contract addresses. Blank entries are
// ignored; any malformed entry fails the whole list.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in) == "" {
			continue
		}
		addr, err := ParseAddress(in)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}
