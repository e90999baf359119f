package materialize

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clscope/internal/engine"
	"clscope/internal/fixedpoint"
	"clscope/internal/model"
	"clscope/internal/pricing"
	"clscope/internal/storage"
	"clscope/internal/storage/bolt"
	"clscope/internal/store"
)

const (
	baseToken   = "0x00000000000000000000000000000000000000b1"
	stableToken = "0x00000000000000000000000000000000000000c1"
	factoryAddr = "0x0000000000000000000000000000000000000f01"
	poolAddr    = "0x0000000000000000000000000000000000000a01"
	pool2Addr   = "0x0000000000000000000000000000000000000a02"
)

type memorySink struct {
	changes []model.EntityChange
	batches int
	err     error
}

func (s *memorySink) WriteChanges(_ context.Context, changes []model.EntityChange) error {
	if s.err != nil {
		return s.err
	}
	s.batches++
	s.changes = append(s.changes, changes...)
	return nil
}

func (s *memorySink) Close() error { return nil }

func newTestEngine() *engine.Engine {
	return engine.New(engine.Config{
		Pricing: pricing.Config{BaseToken: baseToken, Stablecoins: []string{stableToken}},
	}, store.New(), nil, nil)
}

func event(t *testing.T, name, address string, block, logIndex uint64, payload any) model.TypedEventRecord {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return model.TypedEventRecord{
		ChainID:     1329,
		BlockNumber: block,
		TxHash:      "0xtx",
		LogIndex:    logIndex,
		Address:     address,
		EventName:   name,
		Timestamp:   1_700_000_000 + block,
		Decoded:     raw,
	}
}

func poolCreated(t *testing.T, block uint64, pool string) model.TypedEventRecord {
	return event(t, model.EventPoolCreated, factoryAddr, block, 0, model.PoolCreatedEventData{
		Token0: baseToken, Token1: stableToken, TickSpacing: 60, Pool: pool,
	})
}

func writeEvents(t *testing.T, lines ...any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typed.jsonl")
	var out []byte
	for _, line := range lines {
		switch v := line.(type) {
		case string:
			out = append(out, v...)
		default:
			raw, err := json.Marshal(v)
			require.NoError(t, err)
			out = append(out, raw...)
		}
		out = append(out, '\n')
	}
	require.NoError(t, os.WriteFile(path, out, 0o644))
	return path
}

func TestRunAppliesEventsInOrder(t *testing.T) {
	malformed := poolCreated(t, 3, pool2Addr)
	malformed.Decoded = json.RawMessage(`[1,2]`)

	path := writeEvents(t,
		poolCreated(t, 1, poolAddr),
		"{not json",
		"",
		poolCreated(t, 1, poolAddr),
		malformed,
		event(t, "Unrouted", poolAddr, 4, 0, map[string]string{}),
	)

	eng := newTestEngine()
	sink := &memorySink{}
	summary, err := NewMaterializer(Config{BatchSize: 1}, eng, sink, nil).Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 2, summary.Applied)
	assert.Equal(t, 1, summary.Skipped, "repeated PoolCreated at an already applied position")
	assert.Equal(t, 2, summary.Malformed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, uint64(4), summary.Cursor.BlockNumber)
	assert.Equal(t, len(sink.changes), summary.Changes)

	assert.True(t, eng.Store().Pools.Has(poolAddr))
	assert.False(t, eng.Store().Pools.Has(pool2Addr))
	assert.Equal(t, uint64(1), eng.Store().Protocol().TotalPools)

	keys := make(map[string]bool)
	for _, change := range sink.changes {
		keys[change.Key()] = true
	}
	assert.True(t, keys["pool:"+poolAddr])
	assert.True(t, keys["token:"+baseToken])
}

func TestRunResumesFromSavedState(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state", "materialize.json")
	first := writeEvents(t, poolCreated(t, 1, poolAddr))

	_, err := NewMaterializer(Config{StateStore: &FileStateStore{Path: statePath}}, newTestEngine(), &memorySink{}, nil).
		Run(context.Background(), first)
	require.NoError(t, err)

	both := writeEvents(t, poolCreated(t, 1, poolAddr), poolCreated(t, 2, pool2Addr))
	eng := newTestEngine()
	sink := &memorySink{}
	summary, err := NewMaterializer(Config{StateStore: &FileStateStore{Path: statePath}}, eng, sink, nil).
		Run(context.Background(), both)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Applied)
	assert.True(t, eng.Store().Pools.Has(poolAddr), "restored from state")
	assert.True(t, eng.Store().Pools.Has(pool2Addr))
	assert.Equal(t, uint64(2), eng.Store().Protocol().TotalPools)

	state, ok, err := (&FileStateStore{Path: statePath}).Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), state.Cursor.BlockNumber)
	assert.Len(t, state.Entities["pool"], 2)
}

func TestRunStopsOnFatalEvent(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	badMint := event(t, model.EventMint, poolAddr, 2, 0, model.MintEventData{
		Owner: poolAddr, TickLower: -900000, TickUpper: 60, Amount: "1", Amount0: "1", Amount1: "1",
	})
	path := writeEvents(t, poolCreated(t, 1, poolAddr), badMint, poolCreated(t, 3, pool2Addr))

	sink := &memorySink{}
	summary, err := NewMaterializer(Config{BatchSize: 10, StateStore: &FileStateStore{Path: statePath}}, newTestEngine(), sink, nil).
		Run(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fixedpoint.ErrTickOutOfRange))
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, sink.batches, "events before the failure are flushed")

	state, ok, err := (&FileStateStore{Path: statePath}).Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), state.Cursor.BlockNumber)
}

func TestRunSkipFailed(t *testing.T) {
	badMint := event(t, model.EventMint, poolAddr, 2, 0, model.MintEventData{
		Owner: poolAddr, TickLower: -900000, TickUpper: 60, Amount: "1", Amount0: "1", Amount1: "1",
	})
	path := writeEvents(t, poolCreated(t, 1, poolAddr), badMint, poolCreated(t, 3, pool2Addr))

	eng := newTestEngine()
	summary, err := NewMaterializer(Config{SkipFailed: true}, eng, nil, nil).Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Applied)
	assert.True(t, eng.Store().Pools.Has(pool2Addr))
}

func TestRunSinkError(t *testing.T) {
	path := writeEvents(t, poolCreated(t, 1, poolAddr))
	_, err := NewMaterializer(Config{}, newTestEngine(), &memorySink{err: errors.New("sink down")}, nil).
		Run(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	path := writeEvents(t, poolCreated(t, 1, poolAddr))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := NewMaterializer(Config{StateStore: &FileStateStore{Path: statePath}}, newTestEngine(), &memorySink{}, nil).
		Run(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.Applied)
}

// cancellingReader cancels the run the first time the engine asks for token
// metadata, which happens while an event is being applied.
type cancellingReader struct {
	engine.ContractReader
	cancel context.CancelFunc
}

func (r cancellingReader) TokenMeta(context.Context, string) (model.TokenMeta, error) {
	r.cancel()
	return model.TokenMeta{}, engine.ErrUnavailable
}

// liveContextSink refuses writes made with a done context.
type liveContextSink struct {
	memorySink
}

func (s *liveContextSink) WriteChanges(ctx context.Context, changes []model.EntityChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memorySink.WriteChanges(ctx, changes)
}

func TestRunFlushesPendingWorkAfterCancel(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	path := writeEvents(t, poolCreated(t, 1, poolAddr), poolCreated(t, 2, pool2Addr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := engine.New(engine.Config{
		Pricing: pricing.Config{BaseToken: baseToken, Stablecoins: []string{stableToken}},
	}, store.New(), cancellingReader{cancel: cancel}, nil)
	sink := &liveContextSink{}

	summary, err := NewMaterializer(Config{BatchSize: 10, StateStore: &FileStateStore{Path: statePath}}, eng, sink, nil).
		Run(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, sink.batches, "pending changes reach the sink after cancel")
	assert.Equal(t, len(sink.changes), summary.Changes)

	state, ok, err := (&FileStateStore{Path: statePath}).Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), state.Cursor.BlockNumber)
	assert.Len(t, state.Entities["pool"], 1)
}

// failingAfterSink fails every write after the first ok writes.
type failingAfterSink struct {
	ok    int
	calls int
}

func (s *failingAfterSink) WriteChanges(context.Context, []model.EntityChange) error {
	s.calls++
	if s.calls > s.ok {
		return errors.New("sink down")
	}
	return nil
}

func (s *failingAfterSink) Close() error { return nil }

func swap(t *testing.T, block uint64) model.TypedEventRecord {
	one := "1000000000000000000"
	return event(t, model.EventSwap, poolAddr, block, block, model.SwapEventData{
		Sender: poolAddr, Recipient: poolAddr,
		Amount0: one, Amount1: "-" + one,
		SqrtPriceX96: fixedpoint.Q96.String(), Liquidity: one, Tick: 0,
	})
}

func TestResumeAfterSinkFailureAppliesEachEventOnce(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "clscope.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	state := &BoltStateStore{Store: db, Name: "materialize"}
	path := writeEvents(t, poolCreated(t, 1, poolAddr), swap(t, 2), swap(t, 3))

	// the bolt sink takes the third batch before the second sink fails it
	sink := storage.MultiSink{db, &failingAfterSink{ok: 2}}
	_, err = NewMaterializer(Config{BatchSize: 1, StateStore: state}, newTestEngine(), sink, nil).
		Run(context.Background(), path)
	require.Error(t, err)

	saved, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), saved.Cursor.BlockNumber)

	eng := newTestEngine()
	summary, err := NewMaterializer(Config{BatchSize: 1, StateStore: state}, eng, db, nil).
		Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 2, summary.Skipped)

	pool, ok := eng.Store().Pools.Get(poolAddr)
	require.True(t, ok)
	assert.Equal(t, uint64(2), pool.TxCount)
	assert.True(t, pool.VolumeToken0.Equal(decimal.NewFromInt(2)), pool.VolumeToken0.String())

	saved, ok, err = state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), saved.Cursor.BlockNumber)
}

func TestFileStateStoreMissingFile(t *testing.T) {
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "missing.json")}
	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	var nilStore *FileStateStore
	_, ok, err = nilStore.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, nilStore.Save(context.Background(), State{}))
}
