package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// timestampBatch caps the number of eth_getBlockByNumber calls per JSON-RPC batch.
const timestampBatch = 100

// Client is the node connection shared by the log runner and the contract reader.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu      sync.Mutex
	chainID *big.Int
}

// NewClient dials rpcURL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain id. The first successful answer is cached.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	cached := c.chainID
	c.mu.Unlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	id, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.chainID = id
	c.mu.Unlock()
	return new(big.Int).Set(id), nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

type blockTime struct {
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// BlockTimestamps resolves the timestamps of the given blocks with batched
// eth_getBlockByNumber calls. Duplicate numbers are fetched once.
func (c *Client) BlockTimestamps(ctx context.Context, numbers []uint64) (map[uint64]uint64, error) {
	unique := uniqueSorted(numbers)
	out := make(map[uint64]uint64, len(unique))
	for start := 0; start < len(unique); start += timestampBatch {
		end := start + timestampBatch
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]

		results := make([]*blockTime, len(chunk))
		elems := make([]rpc.BatchElem, len(chunk))
		for i, n := range chunk {
			results[i] = new(blockTime)
			elems[i] = rpc.BatchElem{
				Method: "eth_getBlockByNumber",
				Args:   []interface{}{hexutil.EncodeUint64(n), false},
				Result: results[i],
			}
		}
		if err := c.rpcClient.BatchCallContext(ctx, elems); err != nil {
			return nil, err
		}
		for i, n := range chunk {
			if elems[i].Error != nil {
				return nil, fmt.Errorf("block %d: %w", n, elems[i].Error)
			}
			if results[i].Timestamp == 0 {
				return nil, fmt.Errorf("block %d not found", n)
			}
			out[n] = uint64(results[i].Timestamp)
		}
	}
	return out, nil
}

// FilterLogs returns logs emitted by addresses in [fromBlock, toBlock] whose
// topic0 is one of topic0. An empty topic0 list matches every event.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call at blockNumber (nil means latest).
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

func uniqueSorted(numbers []uint64) []uint64 {
	out := append([]uint64(nil), numbers...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
