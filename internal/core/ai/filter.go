package ai

import (
	"fmt"
	"slices"
)

const (
	FilterSelectEmpty        = "SelectEmpty"
	FilterSelectAll          = "SelectAll"
	FilterSelectHighestAggro = "SelectHighestAggro"
	FilterSelectGroupLeader  = "SelectGroupLeader"
	FilterSelectGroupMembers = "SelectGroupMembers"
	FilterSelectZone         = "SelectZone"
	FilterUnion              = "Union"
	FilterIntersection       = "Intersection"
	FilterDifference         = "Difference"
	FilterFirst              = "First"
	FilterLast               = "Last"
	FilterRandom             = "Random"
)

// Filter refines the AI's filtered entity list in place so filters can be chained.
type Filter interface {
	Name() string
	Parameters() string
	Filter(ai *AI)
}

type FilterFactoryContext struct {
	Parameters string
	Filters    []Filter
}

type BaseFilter struct {
	name       string
	parameters string
}

func NewBaseFilter(name, parameters string) BaseFilter {
	return BaseFilter{name: name, parameters: parameters}
}

func (f BaseFilter) Name() string       { return f.name }
func (f BaseFilter) Parameters() string { return f.parameters }

// runIsolated runs every filter against its own empty list and restores the
// previous selection, which is returned as the first value.
func runIsolated(ai *AI, filters []Filter) ([]CharacterID, [][]CharacterID) {
	before := ai.filteredEntities
	results := make([][]CharacterID, 0, len(filters))
	for _, f := range filters {
		ai.filteredEntities = nil
		f.Filter(ai)
		results = append(results, ai.filteredEntities)
	}
	ai.filteredEntities = before
	return before, results
}

func sortedSet(ids []CharacterID) []CharacterID {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func union(a, b []CharacterID) []CharacterID {
	out := make([]CharacterID, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func intersection(a, b []CharacterID) []CharacterID {
	out := make([]CharacterID, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func difference(a, b []CharacterID) []CharacterID {
	out := make([]CharacterID, 0, len(a))
	i, j := 0, 0
	for i < len(a) {
		if j >= len(b) || a[i] < b[j] {
			out = append(out, a[i])
			i++
			continue
		}
		if a[i] > b[j] {
			j++
			continue
		}
		i++
		j++
	}
	return out
}

// SelectEmpty clears the selection.
type SelectEmpty struct{ BaseFilter }

func (SelectEmpty) Filter(ai *AI) { ai.ClearFilteredEntities() }

// SelectAll keeps the current selection.
type SelectAll struct{ BaseFilter }

func (SelectAll) Filter(*AI) {}

// SelectHighestAggro appends the entity with the highest aggro, if any.
type SelectHighestAggro struct{ BaseFilter }

func (SelectHighestAggro) Filter(ai *AI) {
	if e, ok := ai.AggroMgr().Highest(); ok {
		ai.AddFilteredEntity(e.CharacterID)
	}
}

// SelectGroupLeader appends the leader of the given group.
type SelectGroupLeader struct {
	BaseFilter
	group GroupID
}

func NewSelectGroupLeader(ctx FilterFactoryContext) (Filter, error) {
	g, ok, err := parseGroupParam(ctx.Parameters)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: SelectGroupLeader requires a group id", ErrInvalidParameters)
	}
	return &SelectGroupLeader{BaseFilter: NewBaseFilter(FilterSelectGroupLeader, ctx.Parameters), group: g}, nil
}

func (f *SelectGroupLeader) Filter(ai *AI) {
	z := ai.Zone()
	if z == nil {
		return
	}
	if leader := z.GroupMgr().Leader(f.group); leader != nil {
		ai.AddFilteredEntity(leader.ID())
	}
}

// SelectGroupMembers appends the members of a group. Without a group id the
// members of every group the AI belongs to are appended once each.
type SelectGroupMembers struct {
	BaseFilter
	group    GroupID
	hasGroup bool
}

func NewSelectGroupMembers(ctx FilterFactoryContext) (Filter, error) {
	g, ok, err := parseGroupParam(ctx.Parameters)
	if err != nil {
		return nil, err
	}
	return &SelectGroupMembers{
		BaseFilter: NewBaseFilter(FilterSelectGroupMembers, ctx.Parameters),
		group:      g,
		hasGroup:   ok,
	}, nil
}

func (f *SelectGroupMembers) Filter(ai *AI) {
	z := ai.Zone()
	if z == nil {
		return
	}
	groups := z.GroupMgr()
	if f.hasGroup {
		groups.Visit(f.group, func(member *AI) bool {
			ai.AddFilteredEntity(member.ID())
			return true
		})
		return
	}
	seen := make(map[CharacterID]struct{})
	for _, g := range groups.Groups(ai) {
		groups.Visit(g, func(member *AI) bool {
			id := member.ID()
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				ai.AddFilteredEntity(id)
			}
			return true
		})
	}
}

// SelectZone appends every other AI of the zone.
type SelectZone struct{ BaseFilter }

func (SelectZone) Filter(ai *AI) {
	z := ai.Zone()
	if z == nil {
		return
	}
	self := ai.ID()
	z.Visit(func(other *AI) bool {
		if id := other.ID(); id != self {
			ai.AddFilteredEntity(id)
		}
		return true
	})
}

// Union appends the sorted, duplicate free union of all sub-filter results.
type Union struct {
	BaseFilter
	filters []Filter
}

func (u *Union) Filter(ai *AI) {
	before, results := runIsolated(ai, u.filters)
	var out []CharacterID
	for _, r := range results {
		out = union(out, sortedSet(r))
	}
	ai.filteredEntities = append(before, out...)
}

// Intersection appends the intersection of all sub-filter results, applied
// left to right.
type Intersection struct {
	BaseFilter
	filters []Filter
}

func (in *Intersection) Filter(ai *AI) {
	before, results := runIsolated(ai, in.filters)
	if len(results) == 0 {
		return
	}
	out := sortedSet(results[0])
	for _, r := range results[1:] {
		out = intersection(out, sortedSet(r))
	}
	ai.filteredEntities = append(before, out...)
}

// Difference appends the result of the first sub-filter minus all others.
type Difference struct {
	BaseFilter
	filters []Filter
}

func (d *Difference) Filter(ai *AI) {
	before, results := runIsolated(ai, d.filters)
	if len(results) == 0 {
		return
	}
	out := sortedSet(results[0])
	for _, r := range results[1:] {
		out = difference(out, sortedSet(r))
	}
	ai.filteredEntities = append(before, out...)
}

// First appends the first entity selected by the sub-filters.
type First struct {
	BaseFilter
	filters []Filter
}

func (f *First) Filter(ai *AI) {
	before, results := runIsolated(ai, f.filters)
	for _, r := range results {
		if len(r) > 0 {
			ai.filteredEntities = append(before, r[0])
			return
		}
	}
}

// Last appends the last entity selected by the sub-filters.
type Last struct {
	BaseFilter
	filters []Filter
}

func (l *Last) Filter(ai *AI) {
	before, results := runIsolated(ai, l.filters)
	for i := len(results) - 1; i >= 0; i-- {
		if r := results[i]; len(r) > 0 {
			ai.filteredEntities = append(before, r[len(r)-1])
			return
		}
	}
}

// Random appends up to n entities picked at random from the sub-filter results.
type Random struct {
	BaseFilter
	filters []Filter
	n       int
}

func NewRandom(ctx FilterFactoryContext) (Filter, error) {
	if len(ctx.Filters) == 0 {
		return nil, fmt.Errorf("%w: Random expects at least 1 filter", ErrWrongOperandCount)
	}
	n, err := parseIntParam(ctx.Parameters, 1)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: Random count must not be negative", ErrInvalidParameters)
	}
	return &Random{BaseFilter: NewBaseFilter(FilterRandom, ctx.Parameters), filters: ctx.Filters, n: n}, nil
}

func (r *Random) Filter(ai *AI) {
	before, results := runIsolated(ai, r.filters)
	var pool []CharacterID
	for _, res := range results {
		pool = append(pool, res...)
	}
	ai.Rand().Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	ai.filteredEntities = append(before, pool[:min(r.n, len(pool))]...)
}

// Filters returns the operands of a combinator filter.
func (u *Union) Filters() []Filter         { return u.filters }
func (in *Intersection) Filters() []Filter { return in.filters }
func (d *Difference) Filters() []Filter    { return d.filters }
func (f *First) Filters() []Filter         { return f.filters }
func (l *Last) Filters() []Filter          { return l.filters }
func (r *Random) Filters() []Filter        { return r.filters }

func simpleFilter(name string, f func(BaseFilter) Filter) FilterFactory {
	return func(ctx FilterFactoryContext) (Filter, error) {
		return f(NewBaseFilter(name, ctx.Parameters)), nil
	}
}

func combinator(name string, build func(BaseFilter, []Filter) Filter) FilterFactory {
	return func(ctx FilterFactoryContext) (Filter, error) {
		if len(ctx.Filters) == 0 {
			return nil, fmt.Errorf("%w: %s expects at least 1 filter", ErrWrongOperandCount, name)
		}
		return build(NewBaseFilter(name, ctx.Parameters), ctx.Filters), nil
	}
}
