package node

import (
	"math/big"
	"os"

	"ledgercore.dev/node/consensus"
	"ledgercore.dev/node/crypto"
)

// maxFutureDriftSeconds bounds how far a block's timestamp may sit ahead of the
// network-time estimate the caller supplies to ProcessBlock.
const maxFutureDriftSeconds = 7200

// Validator is the top-level state machine of §4.6: it owns every branch, the
// shared orphan pool, the append-only block store and the on-disk persistence
// layout, and decides the disposition of each candidate block handed to it.
type Validator struct {
	DataDir    string
	Store      *BlockStore
	Persister  *Persister
	Branches   []*Branch
	MainBranch uint8
	Orphans    OrphanPool
	Crypto     crypto.Provider
	ErrSink    ErrorSink
}

// NewValidator opens (or cold-starts) the validator's data directory. A missing
// validation.dat means a fresh node: it materializes the embedded genesis block per
// §6.2. Otherwise it reconstructs state from the persisted branches and orphan pool.
func NewValidator(cfg Config, provider crypto.Provider, sink ErrorSink) (*Validator, error) {
	store, err := NewBlockStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	v := &Validator{
		DataDir:   cfg.DataDir,
		Store:     store,
		Persister: NewPersister(cfg.DataDir),
		Crypto:    provider,
		ErrSink:   sink,
	}

	if _, statErr := os.Stat(v.Persister.validationPath()); statErr != nil {
		if err := v.bootstrapGenesis(); err != nil {
			return nil, err
		}
		return v, nil
	}

	mainBranch, branches, orphans, err := v.Persister.Load()
	if err != nil {
		return nil, err
	}
	v.MainBranch = mainBranch
	v.Branches = branches
	v.Orphans = *orphans
	return v, nil
}

// bootstrapGenesis materializes branch 0 from the embedded genesis block: one
// reference, one unspent coinbase output, zero cumulative work, and every PrevTimes
// slot seeded to the genesis timestamp.
func (v *Validator) bootstrapGenesis() error {
	raw := genesisBlockBytes()
	block, err := consensus.ParseBlockBytes(raw)
	if err != nil {
		return wrapErr(CodeCorruptStore, "parse embedded genesis block", err)
	}
	hash, err := consensus.BlockHash(consensus.SerializeBlockHeader(block.Header))
	if err != nil {
		return wrapErr(CodeCorruptStore, "hash embedded genesis block", err)
	}
	ref, err := v.Store.Append(0, raw)
	if err != nil {
		return err
	}

	branch := &Branch{ID: 0, LastRetargetTime: genesisRetargetTime, Work: zeroWork()}
	for i := range branch.PrevTimes {
		branch.PrevTimes[i] = genesisRetargetTime
	}
	branch.InsertBlock(hash, BlockRef{Ref: ref, Target: block.Header.Bits, Time: block.Header.Time})
	branch.LastValidatedIndex = 1

	if err := v.applyBlockToUnspent(branch, 0, ref, &block); err != nil {
		return err
	}

	v.Branches = []*Branch{branch}
	v.MainBranch = 0
	return v.Persister.Save(v)
}

// ProcessBlock runs §4.6's full state machine on a candidate block, persisting any
// state change before returning.
func (v *Validator) ProcessBlock(raw []byte, networkTime uint32) (Status, error) {
	block, err := consensus.ParseBlockBytes(raw)
	if err != nil {
		return Bad, err
	}
	hash, err := consensus.BlockHash(consensus.SerializeBlockHeader(block.Header))
	if err != nil {
		return Bad, err
	}

	if v.Orphans.Has(hash) {
		return Duplicate, nil
	}
	for _, b := range v.Branches {
		if _, found := b.FindHash(hash); found {
			return Duplicate, nil
		}
	}

	if err := consensus.CheckProofOfWork(hash, block.Header.Bits); err != nil {
		return Bad, err
	}
	if block.Header.Time > networkTime+maxFutureDriftSeconds {
		return BadTime, newErr(CodeBadBlock, "block time too far in the future")
	}
	root, err := consensus.MerkleRoot(consensus.TxHashes(&block))
	if err != nil {
		return Bad, err
	}
	if root != block.Header.MerkleRoot {
		return Bad, ruleErrBad("block: merkle root mismatch")
	}

	parent, parentLocal, found := v.findParent(block.Header.PrevBlockHash)
	if !found {
		if v.Orphans.Len() >= MaxOrphans {
			return MaxCache, newErr(CodeCacheFull, "orphan pool full")
		}
		if err := v.Orphans.Add(hash, raw); err != nil {
			return MaxCache, err
		}
		if perr := v.Persister.Save(v); perr != nil {
			return ErrorStatus, perr
		}
		return OrphanStatus, nil
	}

	isExtension := parentLocal == len(parent.Refs)-1
	var branch *Branch
	var fallbackBits, fallbackTime uint32
	newBranch := false
	if isExtension {
		branch = parent
	} else {
		if len(v.Branches) >= MaxBranches {
			return MaxCache, newErr(CodeCacheFull, "branch limit reached")
		}
		branch = v.newSideBranch(parent, parentLocal)
		fallbackBits = parent.Refs[parentLocal].Target
		fallbackTime = parent.Refs[parentLocal].Time
		newBranch = true
	}

	if block.Header.Time < branch.PrevTimes[0] {
		return Bad, ruleErrBad("block: time earlier than the oldest of the six recent block times")
	}
	if expected := v.requiredBits(branch, fallbackBits, fallbackTime, block.Header.Time); block.Header.Bits != expected {
		return Bad, ruleErrBad("block: bits does not match required difficulty")
	}

	ref, err := v.Store.Append(branch.ID, raw)
	if err != nil {
		return ErrorStatus, err
	}
	branch.InsertBlock(hash, BlockRef{Ref: ref, Target: block.Header.Bits, Time: block.Header.Time})
	branch.Work = new(big.Int).Add(branch.Work, consensus.BlockWork(block.Header.Bits))
	height := branch.StartHeight + uint32(len(branch.Refs)) - 1
	if height%consensus.RetargetWindowBlocks == 0 {
		branch.LastRetargetTime = block.Header.Time
	}
	branch.RotatePrevTimes(block.Header.Time)
	if newBranch {
		v.Branches = append(v.Branches, branch)
	}

	mainBranch := v.branchByID(v.MainBranch)
	if branch.ID != v.MainBranch && branch.Work.Cmp(mainBranch.Work) <= 0 {
		if perr := v.Persister.Save(v); perr != nil {
			return ErrorStatus, perr
		}
		return Side, nil
	}

	if branch.ID == v.MainBranch {
		if err := v.fullyValidateBlock(branch, height, &block); err != nil {
			return v.failBlock(err)
		}
		if err := v.applyBlockToUnspent(branch, height, ref, &block); err != nil {
			return ErrorStatus, err
		}
		branch.LastValidatedIndex = uint32(len(branch.Refs))
		if perr := v.Persister.Save(v); perr != nil {
			return ErrorStatus, perr
		}
		return Main, nil
	}

	if err := v.reorgValidate(branch); err != nil {
		return v.failBlock(err)
	}
	v.MainBranch = branch.ID
	if perr := v.Persister.Save(v); perr != nil {
		return ErrorStatus, perr
	}
	return Main, nil
}

func (v *Validator) failBlock(err error) (Status, error) {
	if perr := v.Persister.Save(v); perr != nil {
		return ErrorStatus, perr
	}
	if consensus.IsRuleError(err) || CodeOf(err) == CodeBadBlock {
		return Bad, err
	}
	return ErrorStatus, err
}

func (v *Validator) branchByID(id uint8) *Branch {
	for _, b := range v.Branches {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (v *Validator) nextBranchID() uint8 {
	var max uint8
	for _, b := range v.Branches {
		if b.ID > max {
			max = b.ID
		}
	}
	return max + 1
}

// findParent looks up hash across every branch's lookup table, returning the branch
// that holds it and its position in that branch's own reference array.
func (v *Validator) findParent(hash [32]byte) (*Branch, int, bool) {
	for _, b := range v.Branches {
		if pos, found := b.FindHash(hash); found {
			return b, int(b.Lookup[pos].RefIndex), true
		}
	}
	return nil, 0, false
}

// newSideBranch creates a branch forking from parent at parentLocal, an interior
// position of parent's reference array. Its own reference array starts empty; its
// work, retarget clock and recent-timestamp window are derived from parent's history up to
// and including the fork block.
func (v *Validator) newSideBranch(parent *Branch, parentLocal int) *Branch {
	return &Branch{
		ID:               v.nextBranchID(),
		ParentBranch:     parent.ID,
		ParentBlockIndex: uint32(parentLocal),
		HasParent:        true,
		StartHeight:      parent.StartHeight + uint32(parentLocal) + 1,
		LastRetargetTime: lastRetargetTimeAt(parent, parentLocal),
		PrevTimes:        prevTimesAt(parent, parentLocal),
		Work:             workAtLocalIndex(parent, parentLocal),
	}
}

// workAtLocalIndex returns parent's cumulative work through (and including) its own
// reference localIndex, derived by subtracting the work of every later reference from
// parent's current total — cheaper than replaying the chain, since each reference
// already carries the target its own work contribution needs.
func workAtLocalIndex(parent *Branch, localIndex int) *big.Int {
	total := new(big.Int).Set(parent.Work)
	for i := len(parent.Refs) - 1; i > localIndex; i-- {
		total.Sub(total, consensus.BlockWork(parent.Refs[i].Target))
	}
	return total
}

// prevTimesAt reconstructs the 6-slot recent-timestamp window as of parent's
// reference localIndex, left-padded with the genesis timestamp when parent's own
// history does not yet reach back 6 blocks.
func prevTimesAt(parent *Branch, localIndex int) [6]uint32 {
	var times [6]uint32
	for i := range times {
		times[i] = genesisRetargetTime
	}
	start := localIndex - 5
	slot := 0
	if start < 0 {
		slot = -start
		start = 0
	}
	for i := start; i <= localIndex; i++ {
		times[slot] = parent.Refs[i].Time
		slot++
	}
	return times
}

// lastRetargetTimeAt returns the retarget-window start time in effect at parent's
// reference localIndex.
func lastRetargetTimeAt(parent *Branch, localIndex int) uint32 {
	height := parent.StartHeight + uint32(localIndex)
	boundary := (height / consensus.RetargetWindowBlocks) * consensus.RetargetWindowBlocks
	if boundary < parent.StartHeight {
		return parent.LastRetargetTime
	}
	localBoundary := int(boundary - parent.StartHeight)
	if localBoundary >= len(parent.Refs) || localBoundary > localIndex {
		return parent.LastRetargetTime
	}
	return parent.Refs[localBoundary].Time
}

// requiredBits computes the compact target a candidate block with timestamp
// blockTime extending branch must carry. fallbackBits/fallbackTime stand in for
// branch's own history when branch has not yet accepted any block of its own (a
// freshly forked side branch).
func (v *Validator) requiredBits(branch *Branch, fallbackBits, fallbackTime, blockTime uint32) uint32 {
	height := branch.StartHeight + uint32(len(branch.Refs))
	var prevBits uint32
	if len(branch.Refs) == 0 {
		prevBits = fallbackBits
	} else {
		prevBits = branch.Refs[len(branch.Refs)-1].Target
	}
	if height == 0 || height%consensus.RetargetWindowBlocks != 0 {
		return prevBits
	}
	return consensus.Retarget(prevBits, int64(blockTime)-int64(branch.LastRetargetTime))
}

// applyBlockToUnspent mutates branch's unspent set for block, which sits at height
// and whose store record begins at ref: every input it spends (skipping the
// coinbase's null input) is removed, and every output it creates is inserted with a
// FileRef computed from block's own layout.
func (v *Validator) applyBlockToUnspent(branch *Branch, height uint32, ref FileRef, block *consensus.Block) error {
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if !tx.IsCoinbase() {
			for _, in := range tx.Inputs {
				branch.RemoveUnspent(in.PrevOut.TxHash, in.PrevOut.Index)
			}
		}
		txHash := consensus.TxHash(tx)
		for oi := range tx.Outputs {
			offset, err := outputByteOffset(block, i, oi)
			if err != nil {
				return err
			}
			branch.InsertUnspent(OutputRef{
				TxHash:      txHash,
				OutputIndex: uint32(oi),
				Ref:         FileRef{FileID: ref.FileID, FilePos: ref.FilePos + 4 + uint64(offset)},
				Height:      height,
				Coinbase:    i == 0,
				BranchID:    branch.ID,
			})
		}
	}
	return nil
}

type chainPos struct {
	branch *Branch
	local  int
}

// pathTo returns, in height order from genesis, every (branch, local-index) position
// that must be replayed to reconstruct state as of branchID's own reference local —
// following parent links through however many branches the position's ancestry
// crosses.
func (v *Validator) pathTo(branchID uint8, local int) ([]chainPos, error) {
	b := v.branchByID(branchID)
	if b == nil {
		return nil, newErr(CodeCorruptStore, "unknown branch id in ancestry walk")
	}
	var path []chainPos
	if b.HasParent {
		parentPath, err := v.pathTo(b.ParentBranch, int(b.ParentBlockIndex))
		if err != nil {
			return nil, err
		}
		path = parentPath
	}
	for i := 0; i <= local; i++ {
		path = append(path, chainPos{branch: b, local: i})
	}
	return path, nil
}

// unspentAtFork reconstructs the unspent-output set as of the block branch forked
// from, by replaying every ancestor block from genesis forward. Committed blocks are
// trusted rather than re-validated here: reorgValidate runs full validation over
// branch's own blocks on top of this base.
func (v *Validator) unspentAtFork(branch *Branch) ([]OutputRef, error) {
	path, err := v.pathTo(branch.ParentBranch, int(branch.ParentBlockIndex))
	if err != nil {
		return nil, err
	}
	scratch := &Branch{ID: branch.ParentBranch}
	for _, pos := range path {
		ref := pos.branch.Refs[pos.local]
		raw, rerr := v.Store.Read(pos.branch.ID, ref.Ref)
		if rerr != nil {
			return nil, wrapErr(CodeIoError, "read ancestor block reconstructing fork-point unspent set", rerr)
		}
		block, perr := consensus.ParseBlockBytes(raw)
		if perr != nil {
			return nil, wrapErr(CodeCorruptStore, "parse ancestor block reconstructing fork-point unspent set", perr)
		}
		height := pos.branch.StartHeight + uint32(pos.local)
		if aerr := v.applyBlockToUnspent(scratch, height, ref.Ref, &block); aerr != nil {
			return nil, aerr
		}
	}
	return scratch.Unspent, nil
}

// reorgValidate fully validates every block of branch from its current
// LastValidatedIndex to its tip, against a working unspent set seeded from the fork
// point. It mutates branch only on complete success.
func (v *Validator) reorgValidate(branch *Branch) error {
	base, err := v.unspentAtFork(branch)
	if err != nil {
		return err
	}
	work := &Branch{ID: branch.ID, Unspent: base}

	for i := int(branch.LastValidatedIndex); i < len(branch.Refs); i++ {
		ref := branch.Refs[i]
		raw, rerr := v.Store.Read(branch.ID, ref.Ref)
		if rerr != nil {
			return wrapErr(CodeIoError, "read branch block for reorg validation", rerr)
		}
		block, perr := consensus.ParseBlockBytes(raw)
		if perr != nil {
			return wrapErr(CodeCorruptStore, "parse branch block for reorg validation", perr)
		}
		height := branch.StartHeight + uint32(i)
		if verr := v.fullyValidateBlock(work, height, &block); verr != nil {
			return verr
		}
		if aerr := v.applyBlockToUnspent(work, height, ref.Ref, &block); aerr != nil {
			return aerr
		}
	}
	branch.Unspent = work.Unspent
	branch.LastValidatedIndex = uint32(len(branch.Refs))
	return nil
}
