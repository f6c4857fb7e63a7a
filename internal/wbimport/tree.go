package wbimport

// Node is one segment of the topic tree.
type Node struct {
	children map[string]*Node
	value    *string
}

// Value returns the payload stored at the node, if any.
func (n *Node) Value() (string, bool) {
	if n == nil || n.value == nil {
		return "", false
	}
	return *n.value, true
}

// Child returns the named child or nil.
func (n *Node) Child(segment string) *Node {
	if n == nil {
		return nil
	}
	return n.children[segment]
}

func (n *Node) empty() bool {
	return n.value == nil && len(n.children) == 0
}

// Tree caches the last payload seen on every observed topic, keyed by
// topic segments. Every prefix of an observed path exists as a node.
//
// Tree is not safe for concurrent use; the module goroutine owns it.
type Tree struct {
	root *Node
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{root: &Node{}}
}

// Ensure creates every node along path and returns the last one.
func (t *Tree) Ensure(path []string) *Node {
	n := t.root
	for _, seg := range path {
		if n.children == nil {
			n.children = make(map[string]*Node)
		}
		child, ok := n.children[seg]
		if !ok {
			child = &Node{}
			n.children[seg] = child
		}
		n = child
	}
	return n
}

// Set stores value at path, creating intermediate nodes.
func (t *Tree) Set(path []string, value string) {
	v := value
	t.Ensure(path).value = &v
}

// Lookup returns the node at path or nil.
func (t *Tree) Lookup(path []string) *Node {
	n := t.root
	for _, seg := range path {
		n = n.Child(seg)
		if n == nil {
			return nil
		}
	}
	return n
}

// Value returns the payload stored at path.
func (t *Tree) Value(path []string) (string, bool) {
	return t.Lookup(path).Value()
}

// Remove deletes the subtree at path and prunes parents left empty.
// It reports whether anything was removed.
func (t *Tree) Remove(path []string) bool {
	if len(path) == 0 {
		return false
	}
	trail := make([]*Node, 0, len(path))
	n := t.root
	for _, seg := range path[:len(path)-1] {
		trail = append(trail, n)
		n = n.Child(seg)
		if n == nil {
			return false
		}
	}
	last := path[len(path)-1]
	if _, ok := n.children[last]; !ok {
		return false
	}
	delete(n.children, last)

	for i := len(trail) - 1; i >= 0 && n.empty(); i-- {
		delete(trail[i].children, path[i])
		n = trail[i]
	}
	return true
}

// TreeDump is the JSON form of a tree node.
type TreeDump struct {
	Value    *string             `json:"value,omitempty"`
	Children map[string]TreeDump `json:"children,omitempty"`
}

// Dump returns a deep copy of the tree.
func (t *Tree) Dump() TreeDump {
	return dumpNode(t.root)
}

func dumpNode(n *Node) TreeDump {
	d := TreeDump{}
	if n.value != nil {
		v := *n.value
		d.Value = &v
	}
	if len(n.children) > 0 {
		d.Children = make(map[string]TreeDump, len(n.children))
		for seg, child := range n.children {
			d.Children[seg] = dumpNode(child)
		}
	}
	return d
}
