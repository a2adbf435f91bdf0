package pda

import "github.com/dhamidi/backscan/tree"

type nodeFlags uint16

const (
	nodeArtificial nodeFlags = 1 << iota
	nodeHasInverse
	// nodeRightIgnore marks ignored text scanned in a pre-region; it
	// belongs to the token before it.
	nodeRightIgnore
	nodeLeftAttached
	nodeRightAttached
	nodeTermDup
	nodeCommitted
)

// regionRef names an entry of the region list of a parser state. idx is -1
// when no region was recorded.
type regionRef struct {
	state int
	idx   int
}

var noRegion = regionRef{idx: -1}

// node is the parser's view of a tree while it is on the stack, queued as
// input, or waiting in the ignore accumulator. Once a node is reduced its
// tree moves into the parent and tree is nil; text is kept for error
// locations.
type node struct {
	id    int
	flags nodeFlags
	tree  *tree.Tree
	text  *tree.Head

	state       int
	region      regionRef
	causeReduce int
	retryLower  int
	retryUpper  int

	next  *node
	child *node

	// Ignore nodes attached to the tree, in source order.
	leftIgnore  *node
	rightIgnore *node
}

func newNode(id int, t *tree.Tree) *node {
	nd := &node{id: id, tree: t, region: noRegion}
	if t != nil {
		nd.text = t.Text
	}
	return nd
}

// release drops every tree reachable from the node list starting at nd.
func release(store *tree.Store, nd *node) {
	work := []*node{nd}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		for ; n != nil; n = n.next {
			if n.tree != nil {
				store.Downref(n.tree)
				n.tree = nil
			}
			if n.child != nil {
				work = append(work, n.child)
			}
			if n.leftIgnore != nil {
				work = append(work, n.leftIgnore)
			}
			if n.rightIgnore != nil {
				work = append(work, n.rightIgnore)
			}
		}
	}
}
