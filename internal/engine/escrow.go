package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clscope/internal/fixedpoint"
	"clscope/internal/model"
)

func (e *Engine) handleEscrowDeposit(ctx context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.EscrowDepositEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	value, err := parseBigInt(data.Value)
	if err != nil {
		return err
	}

	id := tokenID.String()
	nft, created := e.store.VeNFTs.GetOrInsertWith(id, func() model.VeNFT {
		return model.VeNFT{ID: id, CreatedAt: ev.Timestamp}
	})
	if created {
		owner, err := e.reader.OwnerOf(ctx, ev.Address, tokenID, ev.BlockNumber)
		if err != nil {
			e.skip(ev, "veNFT owner unavailable", zap.String("ve_nft", id), zap.Error(err))
		} else {
			nft.Owner = model.NormalizeAddress(owner)
			user := e.touchUser(nft.Owner, ev.Timestamp)
			user.VeNFTCount++
			e.store.Users.Put(user.ID, user)
		}
	}

	locked, err := e.reader.Locked(ctx, ev.Address, tokenID, ev.BlockNumber)
	if err != nil {
		e.skip(ev, "lock unavailable", zap.String("ve_nft", id), zap.Error(err))
		nft.LockedAmount = nft.LockedAmount.Add(fixedpoint.ConvertTokenToDecimal(value, defaultDecimals))
		if data.Locktime > 0 {
			nft.LockEnd = data.Locktime
		}
	} else {
		nft.LockedAmount = fixedpoint.ConvertTokenToDecimal(locked.Amount, defaultDecimals)
		nft.LockEnd = locked.End
		nft.IsPermanent = locked.IsPermanent
	}

	power, err := e.reader.BalanceOfNFT(ctx, ev.Address, tokenID, ev.BlockNumber)
	if err != nil {
		e.skip(ev, "voting power unavailable", zap.String("ve_nft", id), zap.Error(err))
		nft.VotingPower = nft.LockedAmount
	} else {
		nft.VotingPower = fixedpoint.ConvertTokenToDecimal(power, defaultDecimals)
	}

	nft.UpdatedAt = ev.Timestamp
	e.store.VeNFTs.Put(nft.ID, nft)
	return nil
}

func (e *Engine) handleEscrowWithdraw(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.EscrowWithdrawEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	nft, ok := e.store.VeNFTs.Get(tokenID.String())
	if !ok {
		e.skip(ev, "withdraw of unknown veNFT", zap.String("ve_nft", tokenID.String()))
		return nil
	}
	nft.LockedAmount = decimal.Zero
	nft.VotingPower = decimal.Zero
	nft.LockEnd = 0
	nft.IsPermanent = false
	nft.UpdatedAt = ev.Timestamp
	e.store.VeNFTs.Put(nft.ID, nft)
	return nil
}

func (e *Engine) handleEscrowTransfer(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.TransferEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	from := model.NormalizeAddress(data.From)
	to := model.NormalizeAddress(data.To)
	if from == model.ZeroAddress || to == model.ZeroAddress {
		return nil
	}
	nft, ok := e.store.VeNFTs.Get(tokenID.String())
	if !ok {
		e.skip(ev, "transfer of unknown veNFT", zap.String("ve_nft", tokenID.String()))
		return nil
	}
	if nft.Owner == to {
		return nil
	}

	if nft.Owner != "" {
		prev := e.touchUser(nft.Owner, ev.Timestamp)
		prev.VeNFTCount = decUint(prev.VeNFTCount)
		e.store.Users.Put(prev.ID, prev)
	}
	next := e.touchUser(to, ev.Timestamp)
	next.VeNFTCount++
	e.store.Users.Put(next.ID, next)

	nft.Owner = to
	nft.UpdatedAt = ev.Timestamp
	e.store.VeNFTs.Put(nft.ID, nft)
	return nil
}

func (e *Engine) handleLockPermanent(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.LockPermanentEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	amount, err := parseBigInt(data.Amount)
	if err != nil {
		return err
	}
	nft, ok := e.store.VeNFTs.Get(tokenID.String())
	if !ok {
		e.skip(ev, "permanent lock of unknown veNFT", zap.String("ve_nft", tokenID.String()))
		return nil
	}
	nft.IsPermanent = true
	nft.LockEnd = 0
	nft.LockedAmount = fixedpoint.ConvertTokenToDecimal(amount, defaultDecimals)
	nft.VotingPower = nft.LockedAmount
	nft.UpdatedAt = ev.Timestamp
	e.store.VeNFTs.Put(nft.ID, nft)
	return nil
}

func (e *Engine) handleMinterMint(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.MinterMintEventData](ev)
	if err != nil {
		return err
	}
	period := data.Timestamp
	if period == 0 {
		period = EpochStart(Epoch(ev.Timestamp))
	}
	e.updateProtocol(func(p *model.Protocol) {
		p.ActivePeriod = period
		p.EpochCount++
	})
	return nil
}

func (e *Engine) handleDistributorClaimed(_ context.Context, ev model.TypedEventRecord) error {
	data, err := decodePayload[model.DistributorClaimedEventData](ev)
	if err != nil {
		return err
	}
	tokenID, err := parseBigInt(data.TokenID)
	if err != nil {
		return err
	}
	raw, err := parseBigInt(data.Amount)
	if err != nil {
		return err
	}
	nftID := tokenID.String()
	amount := fixedpoint.ConvertTokenToDecimal(raw, defaultDecimals)

	id := model.VeNFTRewardsID(nftID, data.EpochStart)
	rewards, _ := e.store.VeNFTRewards.GetOrInsertWith(id, func() model.VeNFTRewards {
		return model.VeNFTRewards{ID: id, VeNFT: nftID, EpochStart: data.EpochStart}
	})
	rewards.EpochEnd = data.EpochEnd
	rewards.Amount = rewards.Amount.Add(amount)
	rewards.Timestamp = ev.Timestamp
	e.store.VeNFTRewards.Put(rewards.ID, rewards)

	if nft, ok := e.store.VeNFTs.Get(nftID); ok {
		nft.TotalClaimed = nft.TotalClaimed.Add(amount)
		nft.UpdatedAt = ev.Timestamp
		e.store.VeNFTs.Put(nft.ID, nft)
	}
	return nil
}
