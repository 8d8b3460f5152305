package ai

import (
	"slices"
	"sync"
)

// AggroEntry is one row of the aggro table.
type AggroEntry struct {
	CharacterID CharacterID
	Aggro       float64
}

type reduceMode uint8

const (
	reduceDisabled reduceMode = iota
	reduceByRatio
	reduceByValue
)

// AggroMgr ranks the hostility of an AI towards other characters. Game code
// may add aggro from any goroutine while the tick goroutine decays it.
type AggroMgr struct {
	mu      sync.Mutex
	entries []AggroEntry
	dirty   bool

	mode     reduceMode
	amount   float64
	minAggro float64
}

func NewAggroMgr() *AggroMgr {
	return &AggroMgr{}
}

// SetReduceByRatio decays every entry by ratio per second. Entries falling
// below minAggro are dropped.
func (m *AggroMgr) SetReduceByRatio(ratio, minAggro float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = reduceByRatio
	m.amount = ratio
	m.minAggro = minAggro
}

// SetReduceByValue decays every entry by value per second. Entries reaching
// zero are dropped.
func (m *AggroMgr) SetReduceByValue(value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = reduceByValue
	m.amount = value
	m.minAggro = 0
}

// AddAggro raises (or creates) the entry for id and returns the new value.
func (m *AggroMgr) AddAggro(id CharacterID, amount float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = true
	for i := range m.entries {
		if m.entries[i].CharacterID == id {
			m.entries[i].Aggro += amount
			return m.entries[i].Aggro
		}
	}
	m.entries = append(m.entries, AggroEntry{CharacterID: id, Aggro: amount})
	return amount
}

func (m *AggroMgr) Remove(id CharacterID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].CharacterID == id {
			m.entries = slices.Delete(m.entries, i, i+1)
			return true
		}
	}
	return false
}

// Update applies the decay policy for dt milliseconds.
func (m *AggroMgr) Update(dt int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == reduceDisabled || dt <= 0 || len(m.entries) == 0 {
		return
	}
	seconds := float64(dt) / 1000
	kept := m.entries[:0]
	for _, e := range m.entries {
		switch m.mode {
		case reduceByRatio:
			e.Aggro -= e.Aggro * m.amount * seconds
			if e.Aggro < m.minAggro {
				continue
			}
		case reduceByValue:
			e.Aggro -= m.amount * seconds
			if e.Aggro <= 0 {
				continue
			}
		}
		kept = append(kept, e)
	}
	m.entries = kept
	m.dirty = true
}

func (m *AggroMgr) sortLocked() {
	if !m.dirty {
		return
	}
	slices.SortStableFunc(m.entries, func(a, b AggroEntry) int {
		switch {
		case a.Aggro > b.Aggro:
			return -1
		case a.Aggro < b.Aggro:
			return 1
		default:
			return 0
		}
	})
	m.dirty = false
}

// Highest returns the entry with the most aggro.
func (m *AggroMgr) Highest() (AggroEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return AggroEntry{}, false
	}
	m.sortLocked()
	return m.entries[0], true
}

// Entries returns a copy sorted by aggro, highest first.
func (m *AggroMgr) Entries() []AggroEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sortLocked()
	return slices.Clone(m.entries)
}

func (m *AggroMgr) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
