package ai

import (
	"sync"
	"sync/atomic"
)

// NodeID is the process unique key joining a shared node to per-AI state.
type NodeID int32

var nextNodeID atomic.Int32

func newNodeID() NodeID {
	return NodeID(nextNodeID.Add(1))
}

// TreeNode is one unit of behaviour: composite, decorator or leaf. Nodes are
// shared between every AI running the same tree and keep no per-AI state.
//
// Custom nodes embed *Node and implement Execute, starting with Gate and
// returning through State.
type TreeNode interface {
	ID() NodeID
	Name() string
	SetName(name string)
	Type() string
	Parameters() string

	Condition() Condition
	SetCondition(c Condition)

	Children() []TreeNode
	AddChild(child TreeNode) bool
	ReplaceChild(id NodeID, newNode TreeNode) bool
	Child(id NodeID) TreeNode
	Parent(self TreeNode, id NodeID) (TreeNode, error)

	Execute(ai *AI, dt int64) Status
	ResetState(ai *AI)
	RunningChildren(ai *AI) []bool
}

// NodeFactoryContext carries everything a node factory needs.
type NodeFactoryContext struct {
	Name       string
	Parameters string
	Condition  Condition
}

// Node is the embeddable base of every TreeNode implementation.
//
// Children are held in a copy-on-write slice: readers load it lock free while
// structural edits build a new slice under editMu and publish it atomically.
type Node struct {
	id         NodeID
	name       atomic.Pointer[string]
	typ        string
	parameters string
	condition  atomic.Pointer[conditionRef]

	editMu   sync.Mutex
	children atomic.Pointer[[]TreeNode]
}

type conditionRef struct {
	c Condition
}

// NewNode builds the base node. A nil condition defaults to True.
func NewNode(typ string, ctx NodeFactoryContext) *Node {
	n := &Node{
		id:         newNodeID(),
		typ:        typ,
		parameters: ctx.Parameters,
	}
	n.SetName(ctx.Name)
	n.SetCondition(ctx.Condition)
	empty := make([]TreeNode, 0)
	n.children.Store(&empty)
	return n
}

func (n *Node) ID() NodeID {
	return n.id
}

// Name returns the user label, falling back to the type.
func (n *Node) Name() string {
	if p := n.name.Load(); p != nil && *p != "" {
		return *p
	}
	return n.typ
}

func (n *Node) SetName(name string) {
	n.name.Store(&name)
}

func (n *Node) Type() string {
	return n.typ
}

func (n *Node) Parameters() string {
	return n.parameters
}

func (n *Node) Condition() Condition {
	return n.condition.Load().c
}

func (n *Node) SetCondition(c Condition) {
	if c == nil {
		c = trueCondition
	}
	n.condition.Store(&conditionRef{c: c})
}

// Children returns the current snapshot. The slice must not be modified.
func (n *Node) Children() []TreeNode {
	return *n.children.Load()
}

func (n *Node) AddChild(child TreeNode) bool {
	if child == nil {
		return false
	}
	n.editMu.Lock()
	defer n.editMu.Unlock()

	cur := *n.children.Load()
	next := make([]TreeNode, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, child)
	n.children.Store(&next)
	return true
}

// ReplaceChild swaps the direct child with the given id. A nil newNode deletes it.
func (n *Node) ReplaceChild(id NodeID, newNode TreeNode) bool {
	n.editMu.Lock()
	defer n.editMu.Unlock()

	cur := *n.children.Load()
	for i, c := range cur {
		if c.ID() != id {
			continue
		}
		next := make([]TreeNode, 0, len(cur))
		next = append(next, cur[:i]...)
		if newNode != nil {
			next = append(next, newNode)
		}
		next = append(next, cur[i+1:]...)
		n.children.Store(&next)
		return true
	}
	return false
}

// Child searches the subtree below this node, excluding the node itself.
func (n *Node) Child(id NodeID) TreeNode {
	for _, c := range n.Children() {
		if c.ID() == id {
			return c
		}
		if found := c.Child(id); found != nil {
			return found
		}
	}
	return nil
}

// Parent searches the subtree rooted at self for the parent of id. self must
// be the TreeNode wrapping n, since the base cannot refer to its outer type.
func (n *Node) Parent(self TreeNode, id NodeID) (TreeNode, error) {
	if n.id == id {
		return nil, ErrRootHasNoParent
	}
	if p := findParent(self, id); p != nil {
		return p, nil
	}
	return nil, ErrNodeNotFound
}

func findParent(node TreeNode, id NodeID) TreeNode {
	for _, c := range node.Children() {
		if c.ID() == id {
			return node
		}
		if p := findParent(c, id); p != nil {
			return p
		}
	}
	return nil
}

// Gate evaluates the node condition. On false it records StatusCannotExecute
// and the caller must return that status without running anything else.
func (n *Node) Gate(ai *AI) bool {
	if n.Condition().Evaluate(ai) {
		return true
	}
	ai.recordStatus(n.id, StatusCannotExecute)
	return false
}

// State records the status when debugging is active and returns it unchanged.
func (n *Node) State(ai *AI, status Status) Status {
	ai.recordStatus(n.id, status)
	return status
}

// Execute is the leaf default: finish whenever the condition allows it.
func (n *Node) Execute(ai *AI, _ int64) Status {
	if !n.Gate(ai) {
		return StatusCannotExecute
	}
	return n.State(ai, StatusFinished)
}

// ResetState drops the subtree's entries from the AI. Calling it again is a no-op.
func (n *Node) ResetState(ai *AI) {
	ai.forget(n.id)
	for _, c := range n.Children() {
		c.ResetState(ai)
	}
}

// RunningChildren reports which children are currently running for the AI.
func (n *Node) RunningChildren(_ *AI) []bool {
	return make([]bool, len(n.Children()))
}

// Walk visits node and its descendants depth first until fn returns false.
func Walk(node TreeNode, fn func(TreeNode) bool) bool {
	if !fn(node) {
		return false
	}
	for _, c := range node.Children() {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// Contains reports whether the subtree rooted at node holds id.
func Contains(node TreeNode, id NodeID) bool {
	if node.ID() == id {
		return true
	}
	return node.Child(id) != nil
}
