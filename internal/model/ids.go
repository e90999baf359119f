package model

import (
	"fmt"
	"strings"
)

// Singleton ids.
const (
	ProtocolID = "protocol"
	BundleID   = "bundle"
)

// ZeroAddress is the lowercase zero address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NormalizeAddress lowercases and trims an address for use as an id.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// EventID keys immutable per-event records.
func EventID(txHash string, logIndex uint64) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(txHash), logIndex)
}

// PoolLookupID keys a PoolLookup row.
func PoolLookupID(tokenA, tokenB string, tickSpacing int32) string {
	return fmt.Sprintf("%s-%s-%d", NormalizeAddress(tokenA), NormalizeAddress(tokenB), tickSpacing)
}

// RollupID keys an hour or day bucket of a pool.
func RollupID(pool string, bucket uint64) string {
	return fmt.Sprintf("%s-%d", pool, bucket)
}

// LiquidityProviderID keys a pool liquidity provider.
func LiquidityProviderID(pool, owner string) string {
	return pool + "-" + owner
}

// PositionSnapshotID keys a position snapshot.
func PositionSnapshotID(tokenID string, timestamp uint64) string {
	return fmt.Sprintf("%s-%d", tokenID, timestamp)
}

// GaugeEpochID keys GaugeEpochData.
func GaugeEpochID(gauge string, epoch uint64) string {
	return fmt.Sprintf("%s-%d", gauge, epoch)
}

// GaugeEpochRewardID keys GaugeEpochReward. Fee and bribe rewards of the
// same token accumulate separately.
func GaugeEpochRewardID(gauge string, epoch uint64, rewardType, token string) string {
	return fmt.Sprintf("%s-%d-%s-%s", gauge, epoch, rewardType, token)
}

// StakedPositionID keys GaugeStakedPosition; tokenID is empty for V2 gauges.
func StakedPositionID(user, gauge, tokenID string) string {
	if tokenID == "" {
		return user + "-" + gauge
	}
	return user + "-" + gauge + "-" + tokenID
}

// VeVoteID keys a vote by (veNFT, pool).
func VeVoteID(tokenID, pool string) string {
	return tokenID + "-" + pool
}

// VoteSnapshotID keys a vote snapshot by (veNFT, epoch).
func VoteSnapshotID(tokenID string, epoch uint64) string {
	return fmt.Sprintf("%s-%d", tokenID, epoch)
}

// PoolVoteID keys a pool vote by (veNFT, epoch, pool).
func PoolVoteID(tokenID string, epoch uint64, pool string) string {
	return fmt.Sprintf("%s-%d-%s", tokenID, epoch, pool)
}

// VeNFTRewardsID keys distributor claims by (veNFT, epochStart).
func VeNFTRewardsID(tokenID string, epochStart uint64) string {
	return fmt.Sprintf("%s-%d", tokenID, epochStart)
}
