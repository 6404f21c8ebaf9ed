package engine

import (
	"musdScope/internal/model"
)

// stampStats records the event that last touched the aggregate.
func stampStats(stats *model.ProtocolStats, rec model.TypedEventRecord) {
	stats.UpdatedAtBlock = rec.BlockNumber
	stats.UpdatedAtTimestamp = rec.Timestamp
}

// trackActive moves activeUsers by one when a user crosses the active boundary.
func trackActive(stats *model.ProtocolStats, wasActive, isActive bool) {
	switch {
	case !wasActive && isActive:
		stats.ActiveUsers++
	case wasActive && !isActive && stats.ActiveUsers > 0:
		stats.ActiveUsers--
	}
}
