package ai

import (
	"slices"
	"sync"
)

type GroupID int

// GroupMgr tracks group membership inside a zone. The first member of a group
// is its leader. Reads are safe during parallel ticking.
type GroupMgr struct {
	mu     sync.RWMutex
	groups map[GroupID][]*AI
}

func NewGroupMgr() *GroupMgr {
	return &GroupMgr{groups: make(map[GroupID][]*AI)}
}

// Add appends the AI to the group. It returns false if it is already a member.
func (g *GroupMgr) Add(id GroupID, ai *AI) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	members := g.groups[id]
	if slices.Contains(members, ai) {
		return false
	}
	g.groups[id] = append(members, ai)
	return true
}

// Remove drops the AI from the group. Empty groups are deleted.
func (g *GroupMgr) Remove(id GroupID, ai *AI) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removeLocked(id, ai)
}

func (g *GroupMgr) removeLocked(id GroupID, ai *AI) bool {
	members := g.groups[id]
	idx := slices.Index(members, ai)
	if idx < 0 {
		return false
	}
	members = slices.Delete(slices.Clone(members), idx, idx+1)
	if len(members) == 0 {
		delete(g.groups, id)
	} else {
		g.groups[id] = members
	}
	return true
}

// RemoveFromAll drops the AI from every group it is part of.
func (g *GroupMgr) RemoveFromAll(ai *AI) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id := range g.groups {
		g.removeLocked(id, ai)
	}
}

func (g *GroupMgr) Leader(id GroupID) *AI {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members := g.groups[id]
	if len(members) == 0 {
		return nil
	}
	return members[0]
}

// Position is the average position of all members with a bound character.
func (g *GroupMgr) Position(id GroupID) (Vec3, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var sum Vec3
	n := 0
	for _, m := range g.groups[id] {
		if ch := m.Character(); ch != nil {
			sum = sum.Add(ch.Position())
			n++
		}
	}
	if n == 0 {
		return Vec3{}, false
	}
	return sum.Scale(1 / float64(n)), true
}

// Visit calls fn for every member until it returns false.
func (g *GroupMgr) Visit(id GroupID, fn func(*AI) bool) {
	g.mu.RLock()
	members := g.groups[id]
	g.mu.RUnlock()
	for _, m := range members {
		if !fn(m) {
			return
		}
	}
}

func (g *GroupMgr) Size(id GroupID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.groups[id])
}

func (g *GroupMgr) IsLeader(id GroupID, ai *AI) bool {
	return g.Leader(id) == ai && ai != nil
}

func (g *GroupMgr) IsInGroup(id GroupID, ai *AI) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Contains(g.groups[id], ai)
}

func (g *GroupMgr) IsInAnyGroup(ai *AI) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, members := range g.groups {
		if slices.Contains(members, ai) {
			return true
		}
	}
	return false
}

// Groups returns the ids of all groups the AI is in, sorted ascending.
func (g *GroupMgr) Groups(ai *AI) []GroupID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []GroupID
	for id, members := range g.groups {
		if slices.Contains(members, ai) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
