// Package contracts knows the protocol's contract interfaces: it decodes their
// logs into typed events and performs the view calls the reduction relies on.
package contracts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"musdScope/internal/model"
)

type buildFunc func(args map[string]interface{}) (interface{}, error)

type eventSpec struct {
	event abi.Event
	build buildFunc
}

// Decoder turns raw logs of the mUSD, factory, pool and SuperStake contracts into typed events.
type Decoder struct {
	byTopic map[string]eventSpec
}

// NewDecoder parses every contract ABI and indexes its events by topic0.
func NewDecoder() (*Decoder, error) {
	d := &Decoder{byTopic: make(map[string]eventSpec)}

	builders := []struct {
		abi    func() (abi.ABI, error)
		events map[string]buildFunc
	}{
		{MUSDABI, map[string]buildFunc{
			model.EventCollateralLocked:       buildCollateralLocked,
			model.EventCollateralUnlocked:     buildCollateralUnlocked,
			model.EventPositionLiquidated:     buildPositionLiquidated,
			model.EventCollateralAssetUpdated: buildCollateralAssetUpdated,
			model.EventMintPercentageUpdated:  buildMintPercentageUpdated,
			model.EventCollateralPriceUpdated: buildCollateralPriceUpdated,
			model.EventMinHealthFactorUpdated: buildMinHealthFactorUpdated,
		}},
		{FactoryABI, map[string]buildFunc{
			model.EventPoolCreated: buildPoolCreated,
		}},
		{PoolABI, map[string]buildFunc{
			model.EventLiquidityAdded:   buildLiquidity,
			model.EventLiquidityRemoved: buildLiquidity,
			model.EventSwap:             buildSwap,
		}},
		{SuperStakeABI, map[string]buildFunc{
			model.EventPositionOpened:   buildPositionOpened,
			model.EventPositionClosed:   buildPositionClosed,
			model.EventTokensConfigured: buildTokensConfigured,
			model.EventSwapperUpdated:   buildSwapperUpdated,
			model.EventMaxLoopsUpdated:  buildMaxLoopsUpdated,
		}},
	}

	for _, b := range builders {
		parsed, err := b.abi()
		if err != nil {
			return nil, fmt.Errorf("parse abi: %w", err)
		}
		for name, build := range b.events {
			event, ok := parsed.Events[name]
			if !ok {
				return nil, fmt.Errorf("abi has no event %s", name)
			}
			d.byTopic[strings.ToLower(event.ID.Hex())] = eventSpec{event: event, build: build}
		}
	}
	return d, nil
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.byTopic[strings.ToLower(topic0)]
	return ok
}

// Topics returns every supported topic0, sorted.
func (d *Decoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.byTopic))
	for topic := range d.byTopic {
		out = append(out, common.HexToHash(topic))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

// EventNames returns the name of every decodable event, sorted.
func (d *Decoder) EventNames() []string {
	out := make([]string, 0, len(d.byTopic))
	for _, spec := range d.byTopic {
		out = append(out, spec.event.Name)
	}
	sort.Strings(out)
	return out
}

// EventTopic returns the topic0 of a named event.
func (d *Decoder) EventTopic(name string) (common.Hash, bool) {
	for topic, spec := range d.byTopic {
		if spec.event.Name == name {
			return common.HexToHash(topic), true
		}
	}
	return common.Hash{}, false
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	spec, ok := d.byTopic[log.Topic0()]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid contract address: %s", log.Address)
	}

	args, err := unpackArgs(spec.event, log)
	if err != nil {
		return nil, err
	}
	decoded, err := spec.build(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.event.Name, err)
	}

	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      strings.ToLower(log.TxHash),
		LogIndex:    log.LogIndex,
		Address:     strings.ToLower(log.Address),
		EventName:   spec.event.Name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: log.Topic0(), Data: log.Data},
	}, nil
}

func unpackArgs(event abi.Event, log model.LogRecord) (map[string]interface{}, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics[1:])
	if err != nil {
		return nil, err
	}

	args := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(args, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	data, err := hexutil.Decode(normalizeData(log.Data))
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(args, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return args, nil
}

func normalizeData(data string) string {
	if data == "" {
		return "0x"
	}
	return data
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
