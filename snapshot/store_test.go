package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchd/domain/orderbook"
	"matchd/scale"
)

func testScale(t *testing.T) scale.Scale {
	t.Helper()
	sc, err := scale.New("0.01", "0.001")
	require.NoError(t, err)
	return sc
}

func TestLoadLatestEmptyDir(t *testing.T) {
	store, err := NewStore(t.TempDir(), "BTC-USD")
	require.NoError(t, err)

	num, snap, err := store.LoadLatest()
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, int64(0), num)
}

func TestSaveAndLoadHighest(t *testing.T) {
	store, err := NewStore(t.TempDir(), "BTC-USD")
	require.NoError(t, err)

	for _, n := range []int64{1, 3, 2} {
		require.NoError(t, store.Save(n, &Snapshot{StateNum: n, OutputSeq: uint64(n) * 10}))
	}

	num, snap, err := store.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(3), num)
	assert.Equal(t, int64(3), snap.StateNum)
	assert.Equal(t, uint64(30), snap.OutputSeq)
}

func TestLoadLatestIgnoresOtherProducts(t *testing.T) {
	dir := t.TempDir()

	btc, err := NewStore(dir, "BTC-USD")
	require.NoError(t, err)
	eth, err := NewStore(dir, "ETH-USD")
	require.NoError(t, err)

	require.NoError(t, btc.Save(2, &Snapshot{StateNum: 2}))
	require.NoError(t, eth.Save(9, &Snapshot{StateNum: 9}))

	num, snap, err := btc.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, int64(2), num)
	assert.Equal(t, int64(2), snap.StateNum)
}

func TestLoadLatestIgnoresTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, "BTC-USD")
	require.NoError(t, err)

	require.NoError(t, store.Save(5, &Snapshot{StateNum: 5}))
	// A crash between write and rename leaves a .tmp behind.
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "matcher_state.BTC-USD.6.json.tmp"), []byte("{"), 0o644))

	num, _, err := store.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, int64(5), num)
}

func TestCaptureRestoreRoundTrip(t *testing.T) {
	sc := testScale(t)

	book := orderbook.New()
	book.Add(&orderbook.Order{ID: "b1", Owner: "alice", Side: orderbook.Bid, Price: 10000, Size: 500})
	book.Add(&orderbook.Order{ID: "b2", Owner: "bob", Side: orderbook.Bid, Price: 10000, Size: 250})
	book.Add(&orderbook.Order{ID: "b3", Owner: "carol", Side: orderbook.Bid, Price: 9900, Size: 100})
	book.Add(&orderbook.Order{ID: "a1", Owner: "dave", Side: orderbook.Ask, Price: 10100, Size: 750})

	snap := Capture(book, sc)
	require.Len(t, snap.Bids, 3)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, "b1", snap.Bids[0].OrderID)
	assert.Equal(t, "100", snap.Bids[0].Price)
	assert.Equal(t, "0.5", snap.Bids[0].Size)

	restored := orderbook.New()
	require.NoError(t, snap.Restore(restored, sc))

	wantBids, wantAsks := book.State()
	gotBids, gotAsks := restored.State()
	require.Len(t, gotBids, len(wantBids))
	require.Len(t, gotAsks, len(wantAsks))
	for i := range wantBids {
		assert.Equal(t, wantBids[i].ID, gotBids[i].ID)
		assert.Equal(t, wantBids[i].Price, gotBids[i].Price)
		assert.Equal(t, wantBids[i].Size, gotBids[i].Size)
	}
	for i := range wantAsks {
		assert.Equal(t, wantAsks[i].ID, gotAsks[i].ID)
	}
}

func TestRestoreRejectsOffGridValues(t *testing.T) {
	sc := testScale(t)

	snap := &Snapshot{
		Bids: []OrderState{{OrderID: "b1", OwnerID: "alice", Side: 0, Price: "100.005", Size: "1"}},
	}
	err := snap.Restore(orderbook.New(), sc)
	require.Error(t, err)
}

func TestSnapshotPersistsTicker(t *testing.T) {
	store, err := NewStore(t.TempDir(), "BTC-USD")
	require.NoError(t, err)

	in := &Snapshot{
		StateNum: 1,
		Ticker:   &Ticker{Price: "100.5", Size: "2", Timestamp: 1234},
	}
	require.NoError(t, store.Save(1, in))

	_, out, err := store.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, out.Ticker)
	assert.Equal(t, "100.5", out.Ticker.Price)
	assert.Equal(t, int64(1234), out.Ticker.Timestamp)
}
