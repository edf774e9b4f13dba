package backend

// TreeState summarises one subtree for BackendState (spec §4.5).
type TreeState struct {
	Checksum uint32 `json:"checksum"`
	Name     string `json:"name"`
	Len      uint32 `json:"len"`
}

// BackendState summarises the whole embedded KV for liveness/integrity
// probes (spec §4.2, §4.5).
type BackendState struct {
	Checksum  uint32      `json:"checksum"`
	Name      string      `json:"name"`
	Size      int64       `json:"size"`
	Trees     []TreeState `json:"trees"`
	Recovered bool        `json:"recovered"`
}

// Status computes BackendState: the KV name, a rolling checksum, on-disk
// size, a recovery flag, and per-subtree checksum/name/entry-count
// records.
func (b *Backend) Status() (BackendState, error) {
	checksum, err := b.db.Checksum()
	if err != nil {
		return BackendState{}, err
	}
	size, err := b.db.SizeOnDisk()
	if err != nil {
		return BackendState{}, err
	}

	names, err := b.db.ListSubtrees("")
	if err != nil {
		return BackendState{}, err
	}

	trees := make([]TreeState, 0, len(names))
	for _, name := range names {
		st, err := b.db.Subtree(name)
		if err != nil {
			return BackendState{}, err
		}
		cs, err := st.Checksum()
		if err != nil {
			return BackendState{}, err
		}
		n, err := st.Count()
		if err != nil {
			return BackendState{}, err
		}
		trees = append(trees, TreeState{Checksum: cs, Name: name, Len: uint32(n)})
	}

	return BackendState{
		Checksum: checksum,
		Name:     b.db.Path(),
		Size:     size,
		Trees:    trees,
		// goleveldb silently replays its write-ahead log on every
		// open; it does not distinguish a clean open from one that
		// needed recovery the way sled's was_recovered() does, so
		// this is always false. Documented in DESIGN.md.
		Recovered: false,
	}, nil
}
