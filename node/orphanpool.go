package node

// OrphanPool is a bounded, FIFO-ordered cache of blocks whose parent is not yet known
// to any branch. It does not evict on overflow: once full, Add reports CodeCacheFull
// until the caller removes something, matching the literal boundary test of §8 (the
// 4th arrival must fail, not silently evict the 1st).
type OrphanPool struct {
	orphans []Orphan
}

// Len returns the number of orphans currently held.
func (p *OrphanPool) Len() int { return len(p.orphans) }

// Has reports whether hash is already present in the pool.
func (p *OrphanPool) Has(hash [32]byte) bool {
	for _, o := range p.orphans {
		if o.Hash == hash {
			return true
		}
	}
	return false
}

// Add appends a new orphan, failing with CodeCacheFull once MaxOrphans is reached.
func (p *OrphanPool) Add(hash [32]byte, bytes []byte) error {
	if len(p.orphans) >= MaxOrphans {
		return newErr(CodeCacheFull, "orphan pool full")
	}
	stored := make([]byte, len(bytes))
	copy(stored, bytes)
	p.orphans = append(p.orphans, Orphan{Bytes: stored, Hash: hash})
	return nil
}

// All returns the pool's current contents in arrival order.
func (p *OrphanPool) All() []Orphan {
	return p.orphans
}

// Remove deletes the orphan with the given hash, if present, preserving arrival order
// of the remainder.
func (p *OrphanPool) Remove(hash [32]byte) bool {
	for i, o := range p.orphans {
		if o.Hash == hash {
			p.orphans = append(p.orphans[:i], p.orphans[i+1:]...)
			return true
		}
	}
	return false
}
