package store

import "fmt"

// Entity kinds. They double as key prefixes and publication subjects.
const (
	KindUser               = "user"
	KindProtocolStats      = "protocol_stats"
	KindMUSDPosition       = "musd_position"
	KindRWAPool            = "rwa_pool"
	KindLiquidityPosition  = "liquidity_position"
	KindRWASwap            = "rwa_swap"
	KindSuperStakePosition = "superstake_position"
	KindSuperStakeHistory  = "superstake_history"

	kindIndex = "idx"
	kindMeta  = "meta"
)

const (
	cursorKey     = kindMeta + "/cursor"
	checkpointKey = kindMeta + "/checkpoint"
)

func entityKey(kind, id string) string {
	return kind + "/" + id
}

func entityPrefix(kind string) string {
	return kind + "/"
}

// indexPrefix groups secondary index entries, e.g. idx/musd_position/{user}/.
func indexPrefix(name, owner string) string {
	return kindIndex + "/" + name + "/" + owner + "/"
}

// chainOrderKey sorts lexicographically in (block, logIndex) order.
func chainOrderKey(prefix string, block, logIndex uint64) string {
	return fmt.Sprintf("%s%020d/%06d", prefix, block, logIndex)
}

const (
	indexMUSDPositionsByUser = "musd_position"
	indexSwapsByPool         = "rwa_swap_pool"
	indexSwapsByUser         = "rwa_swap_user"
	indexHistoryByUser       = "superstake_history"
	indexLiquidityByUser     = "liquidity_position"
)

// IsEntity reports whether a write holds an entity document rather than an index or meta entry.
func (w Write) IsEntity() bool {
	switch w.Kind() {
	case kindIndex, kindMeta:
		return false
	}
	return true
}
