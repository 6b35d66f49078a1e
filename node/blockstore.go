package node

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sys/unix"
)

// defaultMaxFileSize is used when RLIMIT_FSIZE cannot be read (e.g. unlimited, or the
// syscall is unavailable), capping each blocks<branch>-<file_id>.dat file at a sane
// size regardless.
const defaultMaxFileSize = 128 * 1024 * 1024

// handleCacheSize bounds the BlockStore's open-file-handle cache. §5 reserves three
// handles (validation data file, address file, scratch output file) below the OS
// ceiling; this is a conservative fixed size rather than probing the process's
// RLIMIT_NOFILE, since the store itself does not know how many handles its siblings
// hold open.
const handleCacheSize = 64

// BlockStore owns the append-only, length-prefixed, per-branch block files under a
// data directory, plus a bounded cache of open file handles.
type BlockStore struct {
	mu          sync.Mutex
	dataDir     string
	maxFileSize uint64
	handles     *lru.Cache[fileKey, *os.File]
	// openSizes tracks the current on-disk size of every file this store has ever
	// opened, independent of whether its handle is still cached — append needs to
	// find the lowest file_id with room without re-stat'ing on every call.
	openSizes map[fileKey]int64
	maxFileID map[uint8]uint16 // per-branch highest file_id seen
}

type fileKey struct {
	Branch uint8
	FileID uint16
}

// NewBlockStore opens (creating if needed) dataDir and returns a BlockStore whose
// per-file cap is derived from the process's RLIMIT_FSIZE at construction time.
func NewBlockStore(dataDir string) (*BlockStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, wrapErr(CodeIoError, "create data dir", err)
	}
	bs := &BlockStore{
		dataDir:     dataDir,
		maxFileSize: queryMaxFileSize(),
		openSizes:   make(map[fileKey]int64),
		maxFileID:   make(map[uint8]uint16),
	}
	cache, err := lru.NewWithEvict[fileKey, *os.File](handleCacheSize, func(_ fileKey, f *os.File) {
		f.Sync()
		f.Close()
	})
	if err != nil {
		return nil, wrapErr(CodeOutOfMemory, "allocate handle cache", err)
	}
	bs.handles = cache
	return bs, nil
}

// queryMaxFileSize reads RLIMIT_FSIZE; an unlimited or unreadable limit falls back to
// defaultMaxFileSize.
func queryMaxFileSize() uint64 {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_FSIZE, &rlim); err != nil {
		return defaultMaxFileSize
	}
	if rlim.Cur == 0 || rlim.Cur > defaultMaxFileSize {
		return defaultMaxFileSize
	}
	return rlim.Cur
}

func (bs *BlockStore) path(branch uint8, fileID uint16) string {
	return filepath.Join(bs.dataDir, fmt.Sprintf("blocks%d-%d.dat", branch, fileID))
}

func (bs *BlockStore) open(key fileKey) (*os.File, error) {
	if f, ok := bs.handles.Get(key); ok {
		return f, nil
	}
	f, err := os.OpenFile(bs.path(key.Branch, key.FileID), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, wrapErr(CodeIoError, "open block file", err)
	}
	if _, ok := bs.openSizes[key]; !ok {
		info, statErr := f.Stat()
		if statErr != nil {
			f.Close()
			return nil, wrapErr(CodeIoError, "stat block file", statErr)
		}
		bs.openSizes[key] = info.Size()
	}
	bs.handles.Add(key, f)
	return f, nil
}

// Append writes a 4-byte little-endian length prefix followed by bytes to the
// lowest-file_id file of branch with room, opening a new file when none has room.
// A short write is truncated back to the pre-append size before the error is
// returned, so no half-written record is ever observable.
func (bs *BlockStore) Append(branch uint8, data []byte) (FileRef, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	need := uint64(4 + len(data))
	fileID := bs.findFileWithRoom(branch, need)
	key := fileKey{Branch: branch, FileID: fileID}

	f, err := bs.open(key)
	if err != nil {
		return FileRef{}, err
	}
	preSize := bs.openSizes[key]

	record := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(record, uint32(len(data)))
	copy(record[4:], data)

	n, werr := f.WriteAt(record, preSize)
	if werr != nil || n != len(record) {
		if terr := f.Truncate(preSize); terr != nil {
			return FileRef{}, wrapErr(CodeIoError, "truncate after short write", terr)
		}
		if werr == nil {
			werr = io.ErrShortWrite
		}
		return FileRef{}, wrapErr(CodeIoError, "append block record", werr)
	}
	if serr := f.Sync(); serr != nil {
		if terr := f.Truncate(preSize); terr != nil {
			return FileRef{}, wrapErr(CodeIoError, "truncate after failed fsync", terr)
		}
		return FileRef{}, wrapErr(CodeIoError, "fsync block file", serr)
	}

	bs.openSizes[key] = preSize + int64(len(record))
	if fileID >= bs.maxFileID[branch] {
		bs.maxFileID[branch] = fileID
	}
	return FileRef{FileID: fileID, FilePos: uint64(preSize)}, nil
}

// findFileWithRoom returns the lowest file_id for branch whose current size plus need
// fits under the per-file cap. If no existing file (file_id 0..maxFileID[branch]) has
// room, the next file_id is returned; it is created lazily on open.
func (bs *BlockStore) findFileWithRoom(branch uint8, need uint64) uint16 {
	maxSeen := bs.maxFileID[branch]
	for fid := uint16(0); fid <= maxSeen; fid++ {
		key := fileKey{Branch: branch, FileID: fid}
		size, ok := bs.openSizes[key]
		if !ok {
			size = bs.statSizeOrZero(branch, fid)
			bs.openSizes[key] = size
		}
		if uint64(size)+need <= bs.maxFileSize {
			return fid
		}
	}
	return maxSeen + 1
}

func (bs *BlockStore) statSizeOrZero(branch uint8, fileID uint16) int64 {
	info, err := os.Stat(bs.path(branch, fileID))
	if err != nil {
		return 0
	}
	return info.Size()
}

// Read returns the block bytes at ref within branch's files.
func (bs *BlockStore) Read(branch uint8, ref FileRef) ([]byte, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	key := fileKey{Branch: branch, FileID: ref.FileID}
	f, err := bs.open(key)
	if err != nil {
		return nil, err
	}

	var lenBuf [4]byte
	if _, err := f.ReadAt(lenBuf[:], int64(ref.FilePos)); err != nil {
		return nil, wrapErr(CodeCorruptStore, "read block length", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, int64(ref.FilePos)+4); err != nil {
		return nil, wrapErr(CodeCorruptStore, "read block body: truncated", err)
	}
	return buf, nil
}

// ReadRawAt returns up to maxLen bytes starting at filePos in branch's fileID file,
// clamped to the file's actual size. Used to resolve an OutputRef's value/script
// directly from the block store without re-reading the whole containing block.
func (bs *BlockStore) ReadRawAt(branch uint8, fileID uint16, filePos uint64, maxLen int) ([]byte, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	key := fileKey{Branch: branch, FileID: fileID}
	f, err := bs.open(key)
	if err != nil {
		return nil, err
	}
	size := bs.openSizes[key]
	avail := size - int64(filePos)
	if avail <= 0 {
		return nil, newErr(CodeCorruptStore, "read past end of block file")
	}
	if int64(maxLen) > avail {
		maxLen = int(avail)
	}
	buf := make([]byte, maxLen)
	if _, err := f.ReadAt(buf, int64(filePos)); err != nil {
		return nil, wrapErr(CodeCorruptStore, "read raw block-file range", err)
	}
	return buf, nil
}

// Close flushes and releases every cached handle.
func (bs *BlockStore) Close() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	for _, key := range bs.handles.Keys() {
		if f, ok := bs.handles.Peek(key); ok {
			f.Sync()
			f.Close()
		}
	}
	bs.handles.Purge()
	return nil
}
