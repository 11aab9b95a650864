package profile

import (
	"fmt"

	"github.com/joshuapare/heapkit/heap"
)

// AttributionKind says how a block's owner was decided.
type AttributionKind int

const (
	AttrTask AttributionKind = iota
	AttrTransform
	AttrPool
	AttrFile
	AttrUnknown
)

func (k AttributionKind) String() string {
	switch k {
	case AttrTask:
		return "task"
	case AttrTransform:
		return "transform"
	case AttrPool:
		return "pool"
	case AttrFile:
		return "file"
	case AttrUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("AttributionKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k AttributionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Attribution is the owner decided for one block.
type Attribution struct {
	Kind  AttributionKind
	Owner int    // owner id for AttrTask, UnknownOwner for AttrUnknown
	Match *Match // matched reference for transforms, pools and files
}

// Classifier assigns blocks to owners. References take priority over
// header tags.
type Classifier struct {
	refs   *ReferenceSet
	owners map[int]int
}

// NewClassifier returns a classifier for owners and refs. refs may be nil.
func NewClassifier(owners []Owner, refs *ReferenceSet) *Classifier {
	c := &Classifier{refs: refs, owners: make(map[int]int, len(owners))}
	for _, o := range owners {
		if _, ok := c.owners[o.ID&ownerMask]; !ok {
			c.owners[o.ID&ownerMask] = o.ID
		}
	}
	return c
}

// Classify attributes b. A reference match is recorded in the reference set.
func (c *Classifier) Classify(b heap.Block) Attribution {
	if m, ok := c.refs.Match(b); ok {
		return Attribution{Kind: refAttribution(m.Kind), Match: m}
	}
	if b.Tagged {
		if id, ok := c.owners[b.Owner&ownerMask]; ok {
			return Attribution{Kind: AttrTask, Owner: id}
		}
	}
	return Attribution{Kind: AttrUnknown, Owner: UnknownOwner}
}

func refAttribution(k RefKind) AttributionKind {
	switch k {
	case RefPool:
		return AttrPool
	case RefFile:
		return AttrFile
	default:
		return AttrTransform
	}
}
