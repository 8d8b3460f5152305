package ai

import (
	"fmt"

	"github.com/zeusync/aitree/internal/core/events/bus"
	"github.com/zeusync/aitree/internal/core/observability/log"
)

const (
	EventNodeUpdated = "ai.node_updated"
	EventNodeAdded   = "ai.node_added"
	EventNodeDeleted = "ai.node_deleted"
)

// NodeEvent is the payload of live edit events.
type NodeEvent struct {
	Zone      string
	Character CharacterID
	Node      NodeID
}

// Edits go to the tree shared by every AI that runs it. Children slices are
// copied on write, so a tick that is in flight keeps its old snapshot; the
// edits are still expected to happen between ticks.

func (z *Zone) resolveTree(characterID CharacterID) (TreeNode, error) {
	a := z.AI(characterID)
	if a == nil {
		return nil, fmt.Errorf("%w: %d", ErrAINotFound, characterID)
	}
	root := a.Behaviour()
	if root == nil {
		return nil, ErrNoBehaviour
	}
	return root, nil
}

func (z *Zone) findNode(root TreeNode, id NodeID) (TreeNode, error) {
	if root.ID() == id {
		return root, nil
	}
	if n := root.Child(id); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
}

// UpdateNode replaces a node with a new one built from name, type and
// condition. The children of the old node move to the new one. Replacing the
// root swaps the behaviour of every AI in the zone that shares it.
func (z *Zone) UpdateNode(r *Registry, characterID CharacterID, nodeID NodeID, name, typ, condition string) (TreeNode, error) {
	root, err := z.resolveTree(characterID)
	if err != nil {
		return nil, err
	}
	old, err := z.findNode(root, nodeID)
	if err != nil {
		return nil, err
	}

	cond, err := ParseCondition(r, condition)
	if err != nil {
		return nil, err
	}
	node, err := ParseTreeNode(r, typ, name, cond)
	if err != nil {
		return nil, err
	}
	for _, c := range old.Children() {
		if !node.AddChild(c) {
			return nil, fmt.Errorf("%w: %s cannot take %d children", ErrWrongChildCount, node.Type(), len(old.Children()))
		}
	}
	if err := Validate(node); err != nil {
		return nil, err
	}

	if old == root {
		z.Visit(func(a *AI) bool {
			if a.Behaviour() == root {
				a.SetBehaviour(node)
			}
			return true
		})
	} else {
		parent, err := root.Parent(root, nodeID)
		if err != nil {
			return nil, err
		}
		parent.ReplaceChild(nodeID, node)
	}

	z.logger.Info("node updated",
		log.Int64("character_id", int64(characterID)),
		log.Int32("old_node_id", int32(nodeID)),
		log.Int32("node_id", int32(node.ID())),
		log.String("type", typ),
	)
	z.publishNode(EventNodeUpdated, characterID, node.ID())
	return node, nil
}

// AddNode appends a new node to the given parent.
func (z *Zone) AddNode(r *Registry, characterID CharacterID, parentID NodeID, name, typ, condition string) (TreeNode, error) {
	root, err := z.resolveTree(characterID)
	if err != nil {
		return nil, err
	}
	parent, err := z.findNode(root, parentID)
	if err != nil {
		return nil, err
	}

	cond, err := ParseCondition(r, condition)
	if err != nil {
		return nil, err
	}
	node, err := ParseTreeNode(r, typ, name, cond)
	if err != nil {
		return nil, err
	}
	if !parent.AddChild(node) {
		return nil, fmt.Errorf("%w: %s refuses another child", ErrWrongChildCount, parent.Type())
	}

	z.publishNode(EventNodeAdded, characterID, node.ID())
	return node, nil
}

// DeleteNode removes a node and its subtree. The root cannot be deleted.
func (z *Zone) DeleteNode(characterID CharacterID, nodeID NodeID) error {
	root, err := z.resolveTree(characterID)
	if err != nil {
		return err
	}
	parent, err := root.Parent(root, nodeID)
	if err != nil {
		return err
	}
	if !parent.ReplaceChild(nodeID, nil) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, nodeID)
	}

	z.publishNode(EventNodeDeleted, characterID, nodeID)
	return nil
}

func (z *Zone) publishNode(typ string, characterID CharacterID, nodeID NodeID) {
	if !z.listening(typ) {
		return
	}
	ev := NodeEvent{Zone: z.name, Character: characterID, Node: nodeID}
	if err := z.events.Publish(bus.NewEvent(typ, z.name, ev)); err != nil {
		z.logger.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}
