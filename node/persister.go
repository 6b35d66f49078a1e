package node

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"ledgercore.dev/node/consensus"
)

// Persister serializes a Validator's in-memory state (branches + orphans) to the
// exact byte layout of §6.1: validation.dat plus one branch<n>.dat per branch.
// Writes go through a temp-file-then-rename so a crash mid-write never corrupts the
// previous, still-valid file.
type Persister struct {
	dataDir string
}

func NewPersister(dataDir string) *Persister {
	return &Persister{dataDir: dataDir}
}

func (p *Persister) validationPath() string { return filepath.Join(p.dataDir, "validation.dat") }
func (p *Persister) branchPath(n uint8) string {
	return filepath.Join(p.dataDir, fmt.Sprintf("branch%d.dat", n))
}

// writeFileAtomic writes data to path via a temp file in the same directory, fsync's
// it, renames it into place, then fsyncs the containing directory so the rename
// itself is durable.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return wrapErr(CodeIoError, "create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return wrapErr(CodeIoError, "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return wrapErr(CodeIoError, "fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return wrapErr(CodeIoError, "close temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return wrapErr(CodeIoError, "rename temp file into place", err)
	}
	if dirFile, err := os.Open(dir); err == nil {
		dirFile.Sync()
		dirFile.Close()
	}
	return nil
}

// Save writes validation.dat and every branch<n>.dat for v.
func (p *Persister) Save(v *Validator) error {
	if err := os.MkdirAll(p.dataDir, 0o755); err != nil {
		return wrapErr(CodeIoError, "create data dir", err)
	}

	w := &byteWriter{}
	w.u8(v.MainBranch)
	w.u8(uint8(len(v.Branches)))
	w.u8(uint8(v.Orphans.Len()))
	for _, o := range v.Orphans.All() {
		w.bytes(o.Bytes)
	}
	if err := writeFileAtomic(p.validationPath(), w.buf); err != nil {
		return err
	}

	for i, b := range v.Branches {
		if err := writeFileAtomic(p.branchPath(uint8(i)), encodeBranch(b)); err != nil {
			return err
		}
	}
	return nil
}

// Load reads validation.dat and every referenced branch<n>.dat, reconstructing a
// Validator's branches and orphan pool.
func (p *Persister) Load() (mainBranch uint8, branches []*Branch, orphans *OrphanPool, err error) {
	data, err := os.ReadFile(p.validationPath())
	if err != nil {
		return 0, nil, nil, wrapErr(CodeIoError, "read validation.dat", err)
	}
	r := &byteReader{buf: data}
	mainBranch, err = r.u8()
	if err != nil {
		return 0, nil, nil, wrapErr(CodeCorruptStore, "validation.dat: main_branch", err)
	}
	numBranches, err := r.u8()
	if err != nil {
		return 0, nil, nil, wrapErr(CodeCorruptStore, "validation.dat: num_branches", err)
	}
	numOrphans, err := r.u8()
	if err != nil {
		return 0, nil, nil, wrapErr(CodeCorruptStore, "validation.dat: num_orphans", err)
	}

	orphans = &OrphanPool{}
	for i := 0; i < int(numOrphans); i++ {
		blockBytes, berr := readSelfDelimitedBlock(r)
		if berr != nil {
			return 0, nil, nil, wrapErr(CodeCorruptStore, "validation.dat: orphan block", berr)
		}
		hash, herr := blockHashOf(blockBytes)
		if herr != nil {
			return 0, nil, nil, wrapErr(CodeCorruptStore, "validation.dat: orphan hash", herr)
		}
		if aerr := orphans.Add(hash, blockBytes); aerr != nil {
			return 0, nil, nil, aerr
		}
	}

	branches = make([]*Branch, numBranches)
	for i := 0; i < int(numBranches); i++ {
		bdata, berr := os.ReadFile(p.branchPath(uint8(i)))
		if berr != nil {
			return 0, nil, nil, wrapErr(CodeIoError, "read branch file", berr)
		}
		branch, derr := decodeBranch(uint8(i), bdata)
		if derr != nil {
			return 0, nil, nil, derr
		}
		branches[i] = branch
	}
	return mainBranch, branches, orphans, nil
}

func encodeBranch(b *Branch) []byte {
	w := &byteWriter{}
	w.u32(uint32(len(b.Refs)))
	for i, ref := range b.Refs {
		w.u16(ref.Ref.FileID)
		w.u64(ref.Ref.FilePos)
		w.u32(ref.Target)
		w.u32(ref.Time)
		hash := hashForRefIndex(b, uint32(i))
		w.hash32(hash)
		w.u32(uint32(lookupPositionOf(b, uint32(i))))
	}
	w.u32(b.LastRetargetTime)
	w.u8(b.ParentBranch)
	w.u32(b.ParentBlockIndex)
	w.u32(b.StartHeight)
	w.u32(b.LastValidatedIndex)

	w.u32(uint32(len(b.Unspent)))
	for _, u := range b.Unspent {
		w.hash32(u.TxHash)
		w.u32(u.OutputIndex)
		w.u16(u.Ref.FileID)
		w.u64(u.Ref.FilePos)
		w.u32(u.Height)
		w.u8(boolToU8(u.Coinbase))
		w.u8(u.BranchID)
	}

	workBytes := b.Work.Bytes()
	if len(workBytes) == 0 {
		workBytes = []byte{0}
	}
	w.u8(uint8(len(workBytes)))
	w.bytes(workBytes)

	return w.buf
}

func decodeBranch(id uint8, data []byte) (*Branch, error) {
	r := &byteReader{buf: data}
	numRefs, err := r.u32()
	if err != nil {
		return nil, wrapErr(CodeCorruptStore, "branch: num_refs", err)
	}
	b := &Branch{ID: id}
	b.Refs = make([]BlockRef, numRefs)
	b.Lookup = make([]HashIndexEntry, numRefs)
	hashes := make([][32]byte, numRefs)
	lookupPos := make([]uint32, numRefs)
	for i := 0; i < int(numRefs); i++ {
		fileID, e1 := r.u16()
		filePos, e2 := r.u64()
		target, e3 := r.u32()
		t, e4 := r.u32()
		hash, e5 := r.hash32()
		pos, e6 := r.u32()
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || e6 != nil {
			return nil, wrapErr(CodeCorruptStore, "branch: ref entry", firstErr(e1, e2, e3, e4, e5, e6))
		}
		b.Refs[i] = BlockRef{Ref: FileRef{FileID: fileID, FilePos: filePos}, Target: target, Time: t}
		hashes[i] = hash
		lookupPos[i] = pos
	}
	for i, pos := range lookupPos {
		if int(pos) >= len(b.Lookup) {
			return nil, newErr(CodeCorruptStore, "branch: hash_index_position out of range")
		}
		b.Lookup[pos] = HashIndexEntry{BlockHash: hashes[i], RefIndex: uint32(i)}
	}
	if numRefs > 0 {
		b.tipHash = hashes[numRefs-1]
	}

	lrt, e1 := r.u32()
	pb, e2 := r.u8()
	pbi, e3 := r.u32()
	sh, e4 := r.u32()
	lvi, e5 := r.u32()
	if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
		return nil, wrapErr(CodeCorruptStore, "branch: metadata", firstErr(e1, e2, e3, e4, e5))
	}
	b.LastRetargetTime = lrt
	b.ParentBranch = pb
	b.ParentBlockIndex = pbi
	b.StartHeight = sh
	b.LastValidatedIndex = lvi
	b.HasParent = id != 0

	numUnspent, err := r.u32()
	if err != nil {
		return nil, wrapErr(CodeCorruptStore, "branch: num_unspent", err)
	}
	b.Unspent = make([]OutputRef, numUnspent)
	for i := 0; i < int(numUnspent); i++ {
		txHash, e1 := r.hash32()
		outIdx, e2 := r.u32()
		fileID, e3 := r.u16()
		filePos, e4 := r.u64()
		height, e5 := r.u32()
		coinbase, e6 := r.u8()
		branchID, e7 := r.u8()
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || e6 != nil || e7 != nil {
			return nil, wrapErr(CodeCorruptStore, "branch: unspent entry", firstErr(e1, e2, e3, e4, e5, e6, e7))
		}
		b.Unspent[i] = OutputRef{
			TxHash: txHash, OutputIndex: outIdx,
			Ref:      FileRef{FileID: fileID, FilePos: filePos},
			Height:   height,
			Coinbase: coinbase != 0,
			BranchID: branchID,
		}
	}

	workLen, err := r.u8()
	if err != nil {
		return nil, wrapErr(CodeCorruptStore, "branch: work_len", err)
	}
	workBytes, err := r.readExact(int(workLen))
	if err != nil {
		return nil, wrapErr(CodeCorruptStore, "branch: work_bytes", err)
	}
	b.Work = new(big.Int).SetBytes(workBytes)

	return b, nil
}

func hashForRefIndex(b *Branch, refIdx uint32) [32]byte {
	for _, e := range b.Lookup {
		if e.RefIndex == refIdx {
			return e.BlockHash
		}
	}
	return [32]byte{}
}

func lookupPositionOf(b *Branch, refIdx uint32) int {
	for i, e := range b.Lookup {
		if e.RefIndex == refIdx {
			return i
		}
	}
	return 0
}

func boolToU8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// byteWriter/byteReader are small helpers for the §6.1 fixed binary layout, kept
// separate from consensus's wire codec since this layout's field set (FileRef,
// branch metadata, unspent entries) has nothing to do with block/transaction wire
// format.
type byteWriter struct{ buf []byte }

func (w *byteWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *byteWriter) u16(v uint16) { var b [2]byte; binary.LittleEndian.PutUint16(b[:], v); w.buf = append(w.buf, b[:]...) }
func (w *byteWriter) u32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); w.buf = append(w.buf, b[:]...) }
func (w *byteWriter) u64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); w.buf = append(w.buf, b[:]...) }
func (w *byteWriter) hash32(h [32]byte) { w.buf = append(w.buf, h[:]...) }
func (w *byteWriter) bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("unexpected end of data")
	}
	return nil
}

func (r *byteReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *byteReader) hash32() ([32]byte, error) {
	var h [32]byte
	if err := r.need(32); err != nil {
		return h, err
	}
	copy(h[:], r.buf[r.pos:r.pos+32])
	r.pos += 32
	return h, nil
}

func (r *byteReader) readExact(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := append([]byte(nil), r.buf[r.pos:r.pos+n]...)
	r.pos += n
	return b, nil
}

// readSelfDelimitedBlock reads one length-prefixed-free, self-delimited block from r
// by parsing it with the consensus codec and reporting how many bytes it consumed.
// Orphans in validation.dat are stored back-to-back with no length prefix, relying
// entirely on the block codec being self-delimiting.
func readSelfDelimitedBlock(r *byteReader) ([]byte, error) {
	start := r.pos
	_, n, err := consensus.ParseBlockPrefix(r.buf[start:])
	if err != nil {
		return nil, err
	}
	b := r.buf[start : start+n]
	r.pos = start + n
	return append([]byte(nil), b...), nil
}

func blockHashOf(blockBytes []byte) ([32]byte, error) {
	if len(blockBytes) < consensus.BlockHeaderSize {
		return [32]byte{}, newErr(CodeCorruptStore, "block too short for header")
	}
	return consensus.BlockHash(blockBytes[:consensus.BlockHeaderSize])
}
