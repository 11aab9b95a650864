package profile

import (
	"cmp"
	"fmt"
	"slices"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/target"
)

// poolMask strips the bank bits firmware sets on pool pointers.
const poolMask target.Address = 0xFFFFF

// RefKind identifies the reference collection a match came from.
type RefKind int

const (
	RefTransform RefKind = iota
	RefPool
	RefFile
)

func (k RefKind) String() string {
	switch k {
	case RefTransform:
		return "transform"
	case RefPool:
		return "pool"
	case RefFile:
		return "file"
	default:
		return fmt.Sprintf("RefKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k RefKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// TransformRef is a stream transform and the memory it owns.
type TransformRef struct {
	ID     int
	Title  string
	Struct target.Address // TRANSFORM structure
	Buffer target.Address // tCbuffer structure
	Data   target.Address // buffer base address
}

// PoolRef is the heap allocation backing one fixed-size pool.
type PoolRef struct {
	Pointer target.Address
}

// FileRef is a stored file and the memory it owns.
type FileRef struct {
	Index   int
	Struct  target.Address // DATA_FILE structure
	CBuffer target.Address // file data tCbuffer
	Data    target.Address // buffer base address
	Owner   int            // -1 when unknown
}

// Match accumulates the blocks found at one referenced payload address.
// Several references may share an address; the bytes are counted once and
// every sharer is listed as a user.
type Match struct {
	Kind      RefKind        `json:"kind"`
	Address   target.Address `json:"address"` // referenced payload address
	Block     target.Address `json:"block"`   // header address, zero until found
	Length    int            `json:"length"`
	HeapBytes int            `json:"heap_bytes"`
	PoolBytes int            `json:"pool_bytes"`
	Regions   []string       `json:"regions"`
	Users     []string       `json:"users"`
	users     mapset.Set[string]
}

// Found reports whether a block was attributed to the match.
func (m *Match) Found() bool { return m.Block != 0 }

type refKey struct {
	kind RefKind
	addr target.Address
}

// ReferenceSet holds the known structure pointers used to attribute blocks
// to transforms, pools and files. Matches are keyed by payload address and
// mutated only through Match and Reset.
type ReferenceSet struct {
	transforms []TransformRef
	pools      []PoolRef
	files      []FileRef
	index      map[refKey]*Match
	order      []refKey
}

// NewReferenceSet returns an empty set.
func NewReferenceSet() *ReferenceSet {
	return &ReferenceSet{index: make(map[refKey]*Match)}
}

func (s *ReferenceSet) register(kind RefKind, addr target.Address, user string) {
	if addr == 0 {
		return
	}
	key := refKey{kind, addr}
	m, ok := s.index[key]
	if !ok {
		m = &Match{Kind: kind, Address: addr, users: mapset.NewThreadUnsafeSet[string]()}
		s.index[key] = m
		s.order = append(s.order, key)
	}
	m.users.Add(user)
}

// AddTransform registers the structure, buffer and data of a transform.
func (s *ReferenceSet) AddTransform(t TransformRef) {
	s.transforms = append(s.transforms, t)
	title := t.Title
	if title == "" {
		title = fmt.Sprintf("transform %d", t.ID)
	}
	s.register(RefTransform, t.Struct, title+" struct")
	s.register(RefTransform, t.Buffer, title+" buffer")
	s.register(RefTransform, t.Data, title+" data")
}

// AddPool registers the allocation backing a pool.
func (s *ReferenceSet) AddPool(p PoolRef) {
	s.pools = append(s.pools, p)
	s.register(RefPool, p.Pointer&poolMask, fmt.Sprintf("pool 0x%08X", p.Pointer))
}

// AddFile registers the structure, buffer and data of a stored file.
func (s *ReferenceSet) AddFile(f FileRef) {
	s.files = append(s.files, f)
	name := fmt.Sprintf("file %d", f.Index)
	if f.Owner >= 0 {
		name = fmt.Sprintf("file %d (owner %d)", f.Index, f.Owner)
	}
	s.register(RefFile, f.Struct, name+" struct")
	s.register(RefFile, f.CBuffer, name+" buffer")
	s.register(RefFile, f.Data, name+" data")
}

// Transforms returns the registered transforms.
func (s *ReferenceSet) Transforms() []TransformRef { return slices.Clone(s.transforms) }

// Pools returns the registered pools.
func (s *ReferenceSet) Pools() []PoolRef { return slices.Clone(s.pools) }

// Files returns the registered files.
func (s *ReferenceSet) Files() []FileRef { return slices.Clone(s.files) }

// Len returns the number of distinct referenced addresses.
func (s *ReferenceSet) Len() int { return len(s.order) }

// lookup finds the reference for a payload address. Transforms win over
// pools, pools over files.
func (s *ReferenceSet) lookup(payload target.Address) *Match {
	if s == nil {
		return nil
	}
	if m, ok := s.index[refKey{RefTransform, payload}]; ok {
		return m
	}
	if m, ok := s.index[refKey{RefPool, payload & poolMask}]; ok {
		return m
	}
	if m, ok := s.index[refKey{RefFile, payload}]; ok {
		return m
	}
	return nil
}

// Match attributes a block to the reference at its payload address, if any.
// Pool blocks count as pool bytes, every other kind as heap bytes.
func (s *ReferenceSet) Match(b heap.Block) (*Match, bool) {
	m := s.lookup(b.Payload)
	if m == nil {
		return nil, false
	}
	m.Block = b.Address
	m.Length += b.Length
	if b.Kind == heap.KindPool {
		m.PoolBytes += b.Length
	} else {
		m.HeapBytes += b.Length
	}
	if !slices.Contains(m.Regions, b.Region) {
		m.Regions = append(m.Regions, b.Region)
	}
	return m, true
}

// Reset clears accumulated matches so the set can serve another pass.
func (s *ReferenceSet) Reset() {
	if s == nil {
		return
	}
	for _, m := range s.index {
		m.Block = 0
		m.Length, m.HeapBytes, m.PoolBytes = 0, 0, 0
		m.Regions = nil
	}
}

// Matches returns a snapshot of the matches of kind in address order.
func (s *ReferenceSet) Matches(kind RefKind) []Match {
	out := []Match{}
	if s == nil {
		return out
	}
	for _, key := range s.order {
		if key.kind != kind {
			continue
		}
		m := s.index[key]
		users := m.users.ToSlice()
		sort.Strings(users)
		regions := slices.Clone(m.Regions)
		sort.Strings(regions)
		out = append(out, Match{
			Kind:      m.Kind,
			Address:   m.Address,
			Block:     m.Block,
			Length:    m.Length,
			HeapBytes: m.HeapBytes,
			PoolBytes: m.PoolBytes,
			Regions:   regions,
			Users:     users,
		})
	}
	slices.SortFunc(out, func(a, b Match) int { return cmp.Compare(a.Address, b.Address) })
	return out
}
