package engine

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clscope/internal/fixedpoint"
	"clscope/internal/model"
)

const (
	unknownSymbol = "UNKNOWN"
	unknownName   = "Unknown Token"
)

// getOrCreateToken returns the token, reading ERC20 metadata on first sight.
// Unreadable metadata falls back to UNKNOWN with 18 decimals.
func (e *Engine) getOrCreateToken(ctx context.Context, id string) model.Token {
	token, _ := e.store.Tokens.GetOrInsertWith(id, func() model.Token {
		t := model.NewToken(id)
		t.Symbol = unknownSymbol
		t.Name = unknownName
		t.Decimals = defaultDecimals

		meta, err := e.reader.TokenMeta(ctx, id)
		if err != nil {
			e.logger.Debug("token metadata unavailable", zap.String("token", id), zap.Error(err))
			return t
		}
		if meta.Symbol != "" {
			t.Symbol = meta.Symbol
		}
		if meta.Name != "" {
			t.Name = meta.Name
		}
		t.Decimals = meta.Decimals
		if supply, ok := new(big.Int).SetString(meta.TotalSupply, 10); ok {
			t.TotalSupply = model.NewBigInt(supply)
		}
		return t
	})
	return token
}

// tokenDecimals returns the decimals of a known token, 18 otherwise.
func (e *Engine) tokenDecimals(id string) uint8 {
	if t, ok := e.store.Tokens.Get(id); ok {
		return t.Decimals
	}
	return defaultDecimals
}

func (e *Engine) convert(token string, raw *big.Int) decimal.Decimal {
	return fixedpoint.ConvertTokenToDecimal(raw, e.tokenDecimals(token))
}

func (e *Engine) touchTransaction(ev model.TypedEventRecord) model.Transaction {
	id := normalizeHash(ev.TxHash)
	tx, _ := e.store.Transactions.GetOrInsertWith(id, func() model.Transaction {
		return model.Transaction{
			ID:          id,
			BlockNumber: ev.BlockNumber,
			Timestamp:   ev.Timestamp,
			From:        model.NormalizeAddress(ev.TxFrom),
		}
	})
	return tx
}

// touchUser returns the user row with activity stamped at timestamp. The
// caller must Put it back.
func (e *Engine) touchUser(id string, timestamp uint64) model.User {
	user, _ := e.store.Users.GetOrInsertWith(id, func() model.User {
		return model.User{ID: id, FirstActivity: timestamp}
	})
	if user.FirstActivity == 0 {
		user.FirstActivity = timestamp
	}
	if timestamp > user.LastActivity {
		user.LastActivity = timestamp
	}
	return user
}

func (e *Engine) updateProtocol(fn func(p *model.Protocol)) {
	p := e.store.Protocol()
	fn(&p)
	e.store.Protocols.Put(p.ID, p)
}

func normalizeHash(h string) string {
	return model.NormalizeAddress(h)
}
