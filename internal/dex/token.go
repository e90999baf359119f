package dex

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"clscope/internal/model"
)

// TokenMetaCache caches token metadata by normalized address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[string]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[string]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(token string) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[model.NormalizeAddress(token)]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(token string, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[model.NormalizeAddress(token)] = meta
	c.mu.Unlock()
}

func (c *TokenMetaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// fetchTokenMeta reads ERC20 metadata at the latest block. decimals is
// required; symbol, name and totalSupply are best effort.
func (r *ChainReader) fetchTokenMeta(ctx context.Context, token string) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: model.NormalizeAddress(token)}

	values, err := r.call(ctx, contractERC20, token, "decimals", 0)
	if err != nil {
		return meta, err
	}
	if meta.Decimals, err = asUint8(values[0]); err != nil {
		return meta, fmt.Errorf("decimals: %w", err)
	}

	meta.Symbol = r.readText(ctx, token, "symbol")
	meta.Name = r.readText(ctx, token, "name")

	if values, err := r.call(ctx, contractERC20, token, "totalSupply", 0); err == nil {
		if supply, err := asBigInt(values[0]); err == nil {
			meta.TotalSupply = supply.String()
		}
	}
	return meta, nil
}

// readText reads a string getter, falling back to the bytes32 variant.
func (r *ChainReader) readText(ctx context.Context, token, method string) string {
	if values, err := r.call(ctx, contractERC20, token, method, 0); err == nil {
		if text, ok := values[0].(string); ok {
			return strings.TrimSpace(text)
		}
	}
	values, err := r.call(ctx, contractERC20Bytes32, token, method, 0)
	if err != nil {
		r.logger.Debug("token text unavailable", zap.String("token", token), zap.String("method", method), zap.Error(err))
		return ""
	}
	text, _ := bytes32ToString(values[0])
	return strings.TrimSpace(text)
}
