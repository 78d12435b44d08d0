package statepath

import (
	"strconv"
	"sync"
)

// StateAddress is a scope-agnostic path paired with a list index. Addresses
// are memoized, so equal inputs share one pointer usable as a map key.
type StateAddress struct {
	Path      *PathDescriptor
	ListIndex *ListIndex
}

// ConcretePath substitutes the list index values into the wildcard segments.
func (a *StateAddress) ConcretePath() string {
	return concretePath(a.Path, a.ListIndex)
}

func (a *StateAddress) String() string {
	return a.ConcretePath()
}

// RootStateAddress is a root-scoped path paired with a list index.
type RootStateAddress struct {
	Path      *RootPathDescriptor
	ListIndex *ListIndex
}

// ConcretePath substitutes the list index values into the wildcard segments.
func (a *RootStateAddress) ConcretePath() string {
	return concretePath(a.Path.Path, a.ListIndex)
}

// Root returns the owning state root.
func (a *RootStateAddress) Root() *StateRoot {
	return a.Path.Root
}

func (a *RootStateAddress) String() string {
	return a.Path.ScopeName + ":" + a.ConcretePath()
}

// AddressTable memoizes StateAddress values. Entries for an iteration can be
// dropped with ReleaseListIndex once the iteration is discarded.
type AddressTable struct {
	mu        sync.Mutex
	addresses map[*ListIndex]map[*PathDescriptor]*StateAddress
}

// NewAddressTable returns an empty table.
func NewAddressTable() *AddressTable {
	return &AddressTable{addresses: map[*ListIndex]map[*PathDescriptor]*StateAddress{}}
}

var defaultAddresses = NewAddressTable()

// MakeAddress returns the process-wide address for (pd, li).
func MakeAddress(pd *PathDescriptor, li *ListIndex) *StateAddress {
	return defaultAddresses.MakeAddress(pd, li)
}

// ReleaseListIndex drops process-wide addresses created for li.
func ReleaseListIndex(li *ListIndex) {
	defaultAddresses.ReleaseListIndex(li)
}

// MakeAddress returns the memoized address for (pd, li).
func (t *AddressTable) MakeAddress(pd *PathDescriptor, li *ListIndex) *StateAddress {
	t.mu.Lock()
	defer t.mu.Unlock()
	byPath, ok := t.addresses[li]
	if !ok {
		byPath = map[*PathDescriptor]*StateAddress{}
		t.addresses[li] = byPath
	}
	addr, ok := byPath[pd]
	if !ok {
		addr = &StateAddress{Path: pd, ListIndex: li}
		byPath[pd] = addr
	}
	return addr
}

// ReleaseListIndex drops all addresses created for li.
func (t *AddressTable) ReleaseListIndex(li *ListIndex) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.addresses, li)
}

// rootAddressTable is the per-root memo for RootStateAddress values, indexed
// by path first so invalidation can enumerate every address of a path.
type rootAddressTable struct {
	mu        sync.Mutex
	addresses map[*RootPathDescriptor]map[*ListIndex]*RootStateAddress
}

func newRootAddressTable() *rootAddressTable {
	return &rootAddressTable{addresses: map[*RootPathDescriptor]map[*ListIndex]*RootStateAddress{}}
}

func (t *rootAddressTable) make(rpd *RootPathDescriptor, li *ListIndex) *RootStateAddress {
	t.mu.Lock()
	defer t.mu.Unlock()
	byIndex, ok := t.addresses[rpd]
	if !ok {
		byIndex = map[*ListIndex]*RootStateAddress{}
		t.addresses[rpd] = byIndex
	}
	addr, ok := byIndex[li]
	if !ok {
		addr = &RootStateAddress{Path: rpd, ListIndex: li}
		byIndex[li] = addr
	}
	return addr
}

func (t *rootAddressTable) forPath(rpd *RootPathDescriptor) []*RootStateAddress {
	t.mu.Lock()
	defer t.mu.Unlock()
	byIndex := t.addresses[rpd]
	out := make([]*RootStateAddress, 0, len(byIndex))
	for _, addr := range byIndex {
		out = append(out, addr)
	}
	return out
}

func (t *rootAddressTable) release() {
	t.mu.Lock()
	t.addresses = map[*RootPathDescriptor]map[*ListIndex]*RootStateAddress{}
	t.mu.Unlock()
}

func concretePath(pd *PathDescriptor, li *ListIndex) string {
	segments, _ := concreteSegments(pd, li)
	return JoinPath(segments...)
}

// concreteSegments replaces wildcard segments, outermost first, with the
// matching list index values. The second result is false when li covers fewer
// levels than pd has wildcards; uncovered wildcards are left in place.
func concreteSegments(pd *PathDescriptor, li *ListIndex) ([]string, bool) {
	if pd.WildcardCount == 0 {
		return pd.Segments, true
	}
	indexes := li.Indexes()
	out := make([]string, len(pd.Segments))
	level := 0
	complete := true
	for i, segment := range pd.Segments {
		if segment != WildcardToken {
			out[i] = segment
			continue
		}
		if level < len(indexes) {
			out[i] = strconv.Itoa(indexes[level])
		} else {
			out[i] = segment
			complete = false
		}
		level++
	}
	return out, complete
}
