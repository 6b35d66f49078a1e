package node

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleBranch(id uint8) *Branch {
	b := &Branch{ID: id, StartHeight: 0, LastRetargetTime: genesisRetargetTime, Work: big.NewInt(4295032833)}
	for i := range b.PrevTimes {
		b.PrevTimes[i] = genesisRetargetTime
	}
	b.InsertBlock(hashWithTail(1), BlockRef{Ref: FileRef{FileID: 0, FilePos: 0}, Target: 0x1d00ffff, Time: genesisRetargetTime})
	b.InsertBlock(hashWithTail(2), BlockRef{Ref: FileRef{FileID: 0, FilePos: 285}, Target: 0x1d00ffff, Time: genesisRetargetTime + 600})
	b.InsertUnspent(OutputRef{
		TxHash: txHashWithTail(1), OutputIndex: 0,
		Ref: FileRef{FileID: 0, FilePos: 42}, Height: 1, Coinbase: true, BranchID: id,
	})
	return b
}

func TestEncodeDecodeBranchRoundTrip(t *testing.T) {
	b := sampleBranch(0)
	encoded := encodeBranch(b)

	back, err := decodeBranch(0, encoded)
	require.NoError(t, err)

	require.Equal(t, b.Refs, back.Refs)
	require.Equal(t, b.LastRetargetTime, back.LastRetargetTime)
	require.Equal(t, b.ParentBranch, back.ParentBranch)
	require.Equal(t, b.ParentBlockIndex, back.ParentBlockIndex)
	require.Equal(t, b.StartHeight, back.StartHeight)
	require.Equal(t, b.LastValidatedIndex, back.LastValidatedIndex)
	require.Equal(t, b.Unspent, back.Unspent)
	require.Equal(t, 0, b.Work.Cmp(back.Work))
	require.Equal(t, b.TipHash(), back.TipHash())

	idx, found := back.FindHash(hashWithTail(2))
	require.True(t, found)
	require.EqualValues(t, 1, back.Lookup[idx].RefIndex)
}

func TestEncodeDecodeBranchWithSideBranchParentage(t *testing.T) {
	b := sampleBranch(1)
	b.HasParent = true
	b.ParentBranch = 0
	b.ParentBlockIndex = 5
	b.StartHeight = 6

	encoded := encodeBranch(b)
	back, err := decodeBranch(1, encoded)
	require.NoError(t, err)

	require.Equal(t, uint8(0), back.ParentBranch)
	require.EqualValues(t, 5, back.ParentBlockIndex)
	require.EqualValues(t, 6, back.StartHeight)
	require.True(t, back.HasParent, "decodeBranch must infer HasParent from a non-zero branch id")
}

func TestEncodeDecodeBranchZeroWork(t *testing.T) {
	b := &Branch{ID: 0, Work: big.NewInt(0)}
	encoded := encodeBranch(b)
	back, err := decodeBranch(0, encoded)
	require.NoError(t, err)
	require.Equal(t, 0, back.Work.Cmp(big.NewInt(0)))
}

func TestPersisterSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBlockStore(dir)
	require.NoError(t, err)
	defer store.Close()

	branch := sampleBranch(0)
	v := &Validator{
		DataDir:    dir,
		Store:      store,
		Persister:  NewPersister(dir),
		MainBranch: 0,
		Branches:   []*Branch{branch},
	}
	orphanBytes := genesisBlockBytes()
	wantOrphanHash, err := blockHashOf(orphanBytes)
	require.NoError(t, err)
	require.NoError(t, v.Orphans.Add(wantOrphanHash, orphanBytes))

	require.NoError(t, v.Persister.Save(v))

	mainBranch, branches, orphans, err := v.Persister.Load()
	require.NoError(t, err)
	require.Equal(t, uint8(0), mainBranch)
	require.Len(t, branches, 1)
	require.Equal(t, branch.Refs, branches[0].Refs)
	require.Equal(t, 0, branch.Work.Cmp(branches[0].Work))

	require.Equal(t, 1, orphans.Len())
	require.True(t, orphans.Has(wantOrphanHash))
}

func TestPersisterLoadMissingValidationFileErrors(t *testing.T) {
	p := NewPersister(t.TempDir())
	_, _, _, err := p.Load()
	require.Error(t, err)
}
