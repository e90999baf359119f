package store

import (
	"encoding/json"
	"fmt"

	"clscope/internal/model"
)

// Store is the in-memory entity state handed to every handler. It also owns
// the Protocol and Bundle singletons.
type Store struct {
	Tokens             *Table[model.Token]
	Pools              *Table[model.Pool]
	PoolLookups        *Table[model.PoolLookup]
	Bundles            *Table[model.Bundle]
	Protocols          *Table[model.Protocol]
	LiquidityProviders *Table[model.LiquidityProvider]
	PoolHourData       *Table[model.PoolRollup]
	PoolDayData        *Table[model.PoolRollup]
	Transactions       *Table[model.Transaction]
	Swaps              *Table[model.Swap]
	Mints              *Table[model.LiquidityChange]
	Burns              *Table[model.LiquidityChange]
	Positions          *Table[model.Position]
	PositionSnapshots  *Table[model.PositionSnapshot]
	PositionFees       *Table[model.PositionFees]
	Collects           *Table[model.Collect]
	Users              *Table[model.User]
	Gauges             *Table[model.Gauge]
	StakedPositions    *Table[model.GaugeStakedPosition]
	GaugeEpochs        *Table[model.GaugeEpochData]
	GaugeEpochRewards  *Table[model.GaugeEpochReward]
	RewardSources      *Table[model.VotingRewardSource]
	RewardDeposits     *Table[model.VotingRewardDeposit]
	RewardClaims       *Table[model.VotingRewardClaim]
	VeNFTs             *Table[model.VeNFT]
	VeVotes            *Table[model.VeVote]
	VoteSnapshots      *Table[model.VoteSnapshot]
	PoolVotes          *Table[model.PoolVote]
	VeNFTRewards       *Table[model.VeNFTRewards]

	tables []table
}

// New builds an empty store.
func New() *Store {
	s := &Store{
		Tokens:             newTable[model.Token]("token"),
		Pools:              newTable[model.Pool]("pool"),
		PoolLookups:        newTable[model.PoolLookup]("pool_lookup"),
		Bundles:            newTable[model.Bundle]("bundle"),
		Protocols:          newTable[model.Protocol]("protocol"),
		LiquidityProviders: newTable[model.LiquidityProvider]("liquidity_provider"),
		PoolHourData:       newTable[model.PoolRollup]("pool_hour_data"),
		PoolDayData:        newTable[model.PoolRollup]("pool_day_data"),
		Transactions:       newTable[model.Transaction]("transaction"),
		Swaps:              newTable[model.Swap]("swap"),
		Mints:              newTable[model.LiquidityChange]("mint"),
		Burns:              newTable[model.LiquidityChange]("burn"),
		Positions:          newTable[model.Position]("position"),
		PositionSnapshots:  newTable[model.PositionSnapshot]("position_snapshot"),
		PositionFees:       newTable[model.PositionFees]("position_fees"),
		Collects:           newTable[model.Collect]("collect"),
		Users:              newTable[model.User]("user"),
		Gauges:             newTable[model.Gauge]("gauge"),
		StakedPositions:    newTable[model.GaugeStakedPosition]("gauge_staked_position"),
		GaugeEpochs:        newTable[model.GaugeEpochData]("gauge_epoch_data"),
		GaugeEpochRewards:  newTable[model.GaugeEpochReward]("gauge_epoch_reward"),
		RewardSources:      newTable[model.VotingRewardSource]("voting_reward_source"),
		RewardDeposits:     newTable[model.VotingRewardDeposit]("voting_reward_deposit"),
		RewardClaims:       newTable[model.VotingRewardClaim]("voting_reward_claim"),
		VeNFTs:             newTable[model.VeNFT]("ve_nft"),
		VeVotes:            newTable[model.VeVote]("ve_vote"),
		VoteSnapshots:      newTable[model.VoteSnapshot]("vote_snapshot"),
		PoolVotes:          newTable[model.PoolVote]("pool_vote"),
		VeNFTRewards:       newTable[model.VeNFTRewards]("ve_nft_rewards"),
	}
	s.tables = []table{
		s.Tokens, s.Pools, s.PoolLookups, s.Bundles, s.Protocols, s.LiquidityProviders,
		s.PoolHourData, s.PoolDayData, s.Transactions, s.Swaps, s.Mints, s.Burns,
		s.Positions, s.PositionSnapshots, s.PositionFees, s.Collects, s.Users,
		s.Gauges, s.StakedPositions, s.GaugeEpochs, s.GaugeEpochRewards,
		s.RewardSources, s.RewardDeposits, s.RewardClaims,
		s.VeNFTs, s.VeVotes, s.VoteSnapshots, s.PoolVotes, s.VeNFTRewards,
	}
	return s
}

// Protocol returns the protocol singleton, creating it on first access.
func (s *Store) Protocol() model.Protocol {
	p, _ := s.Protocols.GetOrInsertWith(model.ProtocolID, model.NewProtocol)
	return p
}

// Bundle returns the bundle singleton, creating it on first access.
func (s *Store) Bundle() model.Bundle {
	b, _ := s.Bundles.GetOrInsertWith(model.BundleID, model.NewBundle)
	return b
}

// Commit makes staged writes visible and returns them as change records
// stamped with the event position. Every staged row is serialized before any
// becomes visible, so a failed commit leaves the committed state untouched.
func (s *Store) Commit(cursor model.Cursor) ([]model.EntityChange, error) {
	base := model.EntityChange{
		BlockNumber: cursor.BlockNumber,
		LogIndex:    cursor.LogIndex,
		Timestamp:   cursor.Timestamp,
	}
	var out []model.EntityChange
	for _, t := range s.tables {
		var err error
		out, err = t.changes(base, out)
		if err != nil {
			s.Rollback()
			return nil, err
		}
	}
	for _, t := range s.tables {
		t.apply()
	}
	return out, nil
}

// Rollback discards staged writes.
func (s *Store) Rollback() {
	for _, t := range s.tables {
		t.rollback()
	}
}

// Counts returns committed row counts per entity.
func (s *Store) Counts() map[string]int {
	out := make(map[string]int, len(s.tables))
	for _, t := range s.tables {
		out[t.Name()] = t.Len()
	}
	return out
}

// Dump serializes every committed row, keyed by entity then id.
func (s *Store) Dump() (map[string]map[string]json.RawMessage, error) {
	out := make(map[string]map[string]json.RawMessage, len(s.tables))
	for _, t := range s.tables {
		rows, err := t.dump()
		if err != nil {
			return nil, err
		}
		out[t.Name()] = rows
	}
	return out, nil
}

// Restore loads rows produced by Dump.
func (s *Store) Restore(data map[string]map[string]json.RawMessage) error {
	byName := make(map[string]table, len(s.tables))
	for _, t := range s.tables {
		byName[t.Name()] = t
	}
	for name, rows := range data {
		t, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown entity %q", name)
		}
		if err := t.restore(rows); err != nil {
			return err
		}
	}
	return nil
}
