package node

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func hashWithTail(tail byte) [32]byte {
	var h [32]byte
	h[31] = tail
	return h
}

func TestBranchInsertBlockKeepsLookupSorted(t *testing.T) {
	b := &Branch{}
	hashes := []byte{5, 1, 9, 3, 7}
	for i, tail := range hashes {
		b.InsertBlock(hashWithTail(tail), BlockRef{Time: uint32(i)})
	}
	require.Len(t, b.Refs, len(hashes))
	require.Len(t, b.Lookup, len(hashes))
	for i := 1; i < len(b.Lookup); i++ {
		require.LessOrEqual(t, hashMiniKey(b.Lookup[i-1].BlockHash), hashMiniKey(b.Lookup[i].BlockHash))
	}
}

func TestBranchFindHashLocatesInsertedBlocks(t *testing.T) {
	b := &Branch{}
	b.InsertBlock(hashWithTail(10), BlockRef{})
	b.InsertBlock(hashWithTail(20), BlockRef{})
	b.InsertBlock(hashWithTail(30), BlockRef{})

	idx, found := b.FindHash(hashWithTail(20))
	require.True(t, found)
	require.Equal(t, hashWithTail(20), b.Lookup[idx].BlockHash)

	_, found = b.FindHash(hashWithTail(99))
	require.False(t, found)
}

func TestBranchInsertBlockRecordsRefIndexAndTip(t *testing.T) {
	b := &Branch{}
	h1, h2 := hashWithTail(1), hashWithTail(2)
	b.InsertBlock(h1, BlockRef{Time: 100})
	b.InsertBlock(h2, BlockRef{Time: 200})

	require.Equal(t, h2, b.TipHash())
	require.Equal(t, BlockRef{Time: 200}, b.TipBlockRef())

	idx, found := b.FindHash(h1)
	require.True(t, found)
	require.EqualValues(t, 0, b.Lookup[idx].RefIndex)

	idx, found = b.FindHash(h2)
	require.True(t, found)
	require.EqualValues(t, 1, b.Lookup[idx].RefIndex)
}

func TestBranchTipHeightAccountsForStartHeight(t *testing.T) {
	b := &Branch{StartHeight: 100}
	b.InsertBlock(hashWithTail(1), BlockRef{})
	b.InsertBlock(hashWithTail(2), BlockRef{})
	require.Equal(t, uint32(101), b.TipHeight())
}

func TestBranchRotatePrevTimes(t *testing.T) {
	b := &Branch{}
	for i := uint32(1); i <= 6; i++ {
		b.RotatePrevTimes(i * 10)
	}
	require.Equal(t, [6]uint32{10, 20, 30, 40, 50, 60}, b.PrevTimes)
	b.RotatePrevTimes(70)
	require.Equal(t, [6]uint32{20, 30, 40, 50, 60, 70}, b.PrevTimes)
}

func txHashWithTail(tail byte) [32]byte {
	var h [32]byte
	h[31] = tail
	return h
}

func TestBranchInsertAndFindUnspent(t *testing.T) {
	b := &Branch{}
	e1 := OutputRef{TxHash: txHashWithTail(1), OutputIndex: 0, Height: 10}
	e2 := OutputRef{TxHash: txHashWithTail(2), OutputIndex: 0, Height: 20}
	e3 := OutputRef{TxHash: txHashWithTail(1), OutputIndex: 1, Height: 10}

	b.InsertUnspent(e1)
	b.InsertUnspent(e2)
	b.InsertUnspent(e3)
	require.Len(t, b.Unspent, 3)

	idx, found := b.FindUnspent(txHashWithTail(2), 0)
	require.True(t, found)
	require.Equal(t, e2, b.Unspent[idx])

	idx, found = b.FindUnspent(txHashWithTail(1), 1)
	require.True(t, found)
	require.Equal(t, e3, b.Unspent[idx])

	_, found = b.FindUnspent(txHashWithTail(9), 0)
	require.False(t, found)
}

func TestBranchRemoveUnspent(t *testing.T) {
	b := &Branch{}
	e1 := OutputRef{TxHash: txHashWithTail(1), OutputIndex: 0}
	e2 := OutputRef{TxHash: txHashWithTail(2), OutputIndex: 0}
	b.InsertUnspent(e1)
	b.InsertUnspent(e2)

	ok := b.RemoveUnspent(txHashWithTail(1), 0)
	require.True(t, ok)
	require.Len(t, b.Unspent, 1)
	require.Equal(t, e2, b.Unspent[0])

	ok = b.RemoveUnspent(txHashWithTail(1), 0)
	require.False(t, ok)
}

func TestBranchInsertUnspentOverwritesExistingEntry(t *testing.T) {
	b := &Branch{}
	e1 := OutputRef{TxHash: txHashWithTail(1), OutputIndex: 0, Height: 10}
	b.InsertUnspent(e1)

	updated := OutputRef{TxHash: txHashWithTail(1), OutputIndex: 0, Height: 999, Coinbase: true}
	b.InsertUnspent(updated)

	require.Len(t, b.Unspent, 1)
	require.Equal(t, updated, b.Unspent[0])
}
