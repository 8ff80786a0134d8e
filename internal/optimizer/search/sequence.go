package search

import (
	"math"
	"sort"
	"strconv"

	"github.com/noah-isme/task-scheduler-api/internal/optimizer"
)

const (
	// maxLocalCombos bounds the private decisions enumerated per activity.
	maxLocalCombos = 256
	// memoLimit caps the remembered (open set, frontier) states.
	memoLimit = 1 << 18

	noValue = math.MinInt64
)

// segment is a maximal run of starts with the same best contribution.
type segment struct {
	from, to int64
	value    int64
}

type span struct {
	start, end int64
}

// activity is an interval competing for the resource, together with the
// decisions, definitions and checks private to it.
type activity struct {
	start        optimizer.Var
	size         int64
	lo, hi       int64
	presence     *optimizer.Literal
	presenceFree bool

	locals []optimizer.Var
	combos int
	defs   []int
	checks []check
	terms  []optimizer.Term

	segments []segment
	// bestFrom[j] is the best value among segments[j:].
	bestFrom []int64
	zones    []span

	absentOK    bool
	absentValue int64
	absentStart int64
}

type candidate struct {
	act   int
	start int64
	value int64
}

// sequencer places activities left to right. Any optimal schedule can be
// shifted so that every present activity starts at the earliest feasible
// point of the segment it ends up in, so only those starts are branched on.
type sequencer struct {
	st       *state
	acts     []activity
	checks   []check
	constant int64
	origin   int64

	open   []bool
	placed []int64
	memo   map[string]int64
	key    []byte
	work   int64
}

// newSequencer recognizes the single-resource shape. It reports false when the
// Program has decisions outside any interval, intervals sharing private
// constraints, or optional intervals that do not all exclude each other.
func newSequencer(s *state) (*sequencer, bool) {
	prog := s.prog
	uf := newUnionFind(len(prog.Vars))
	for _, c := range prog.Constraints {
		if c.Kind == optimizer.KindNoOverlap {
			continue
		}
		uf.unionAll(constraintVars(c))
	}
	for _, iv := range prog.Intervals {
		vars := []optimizer.Var{iv.Start, iv.End}
		if iv.Presence != nil {
			vars = append(vars, iv.Presence.Var)
		}
		uf.unionAll(vars)
	}

	q := &sequencer{st: s, memo: make(map[string]int64)}
	owner := make(map[int]int)
	actOf := make([]int, len(prog.Intervals))
	for i, iv := range prog.Intervals {
		actOf[i] = -1
		if !s.varies(iv.Start) && !s.varies(iv.End) && (iv.Presence == nil || !s.varies(iv.Presence.Var)) {
			continue
		}
		if iv.Size <= 0 || !s.varies(iv.Start) || s.defined[iv.Start] {
			return nil, false
		}
		root := uf.find(int(iv.Start))
		if _, taken := owner[root]; taken {
			return nil, false
		}
		def := prog.Vars[iv.Start]
		a := activity{start: iv.Start, size: iv.Size, lo: def.Lower, hi: def.Upper, presence: iv.Presence}
		if iv.Presence != nil && s.varies(iv.Presence.Var) && !s.defined[iv.Presence.Var] {
			a.presenceFree = true
		}
		owner[root] = len(q.acts)
		actOf[i] = len(q.acts)
		q.acts = append(q.acts, a)
	}
	if len(q.acts) == 0 {
		return nil, false
	}
	ownerOf := func(v optimizer.Var) (*activity, bool) {
		k, ok := owner[uf.find(int(v))]
		if !ok {
			return nil, false
		}
		return &q.acts[k], true
	}

	for _, v := range s.decisions {
		a, ok := ownerOf(v)
		if !ok {
			return nil, false
		}
		if v == a.start || (a.presenceFree && v == a.presence.Var) {
			continue
		}
		a.locals = append(a.locals, v)
	}
	for i := range q.acts {
		a := &q.acts[i]
		a.combos = 1
		for _, v := range a.locals {
			def := prog.Vars[v]
			size := def.Upper - def.Lower + 1
			if size > maxLocalCombos || int64(a.combos)*size > maxLocalCombos {
				return nil, false
			}
			a.combos *= int(size)
		}
	}

	for _, defs := range s.defsAt[1:] {
		for _, ci := range defs {
			a, ok := ownerOf(s.defTarget[ci])
			if !ok {
				return nil, false
			}
			a.defs = append(a.defs, ci)
		}
	}

	conflict := make([][]bool, len(q.acts))
	for i := range conflict {
		conflict[i] = make([]bool, len(q.acts))
	}
	for _, checks := range s.checksAt[1:] {
		for _, ch := range checks {
			q.checks = append(q.checks, ch)
			switch ch.kind {
			case checkPair:
				ka, kb := actOf[ch.a], actOf[ch.b]
				switch {
				case ka >= 0 && kb >= 0:
					conflict[ka][kb], conflict[kb][ka] = true, true
				case ka >= 0:
					q.block(&q.acts[ka], ch.b)
				case kb >= 0:
					q.block(&q.acts[kb], ch.a)
				}
			case checkInterval:
				k := actOf[ch.a]
				if k < 0 {
					return nil, false
				}
				q.acts[k].checks = append(q.acts[k].checks, ch)
			default:
				a, ok := ownerOf(constraintVars(prog.Constraints[ch.ci])[0])
				if !ok {
					return nil, false
				}
				a.checks = append(a.checks, ch)
			}
		}
	}
	for i := range q.acts {
		for j := i + 1; j < len(q.acts); j++ {
			if !conflict[i][j] {
				return nil, false
			}
		}
	}

	q.constant = prog.Objective.Offset
	for _, t := range prog.Objective.Terms {
		if !s.varies(t.Var) {
			q.constant += t.Coeff * s.values[t.Var]
			continue
		}
		a, ok := ownerOf(t.Var)
		if !ok {
			return nil, false
		}
		a.terms = append(a.terms, t)
	}

	q.origin = q.acts[0].lo
	for i := range q.acts {
		a := &q.acts[i]
		a.zones = mergeSpans(a.zones)
		if a.lo < q.origin {
			q.origin = a.lo
		}
	}
	q.open = make([]bool, len(q.acts))
	q.placed = make([]int64, len(q.acts))
	for i := range q.open {
		q.open[i] = true
	}
	return q, true
}

// varies reports whether v is fixed only after some decision.
func (s *state) varies(v optimizer.Var) bool {
	return s.level[v] >= 0
}

// block records a fixed interval as a forbidden zone of a.
func (q *sequencer) block(a *activity, iv optimizer.Interval) {
	s := q.st
	def := s.prog.Intervals[iv]
	if def.Size <= 0 || !s.active(def) {
		return
	}
	start := s.values[def.Start]
	a.zones = append(a.zones, span{start: start, end: start + def.Size})
}

// prepare tabulates every activity's contribution over its start domain.
func (q *sequencer) prepare() bool {
	for i := range q.acts {
		a := &q.acts[i]
		open := false
		for start := a.lo; start <= a.hi; start++ {
			if q.tick() {
				return false
			}
			value, ok := q.evaluate(a, true, start, false)
			if !ok {
				open = false
				continue
			}
			if n := len(a.segments); open && a.segments[n-1].value == value {
				a.segments[n-1].to = start
				continue
			}
			a.segments = append(a.segments, segment{from: start, to: start, value: value})
			open = true
		}

		a.bestFrom = make([]int64, len(a.segments))
		best := int64(noValue)
		for j := len(a.segments) - 1; j >= 0; j-- {
			best = max(best, a.segments[j].value)
			a.bestFrom[j] = best
		}

		if a.presence == nil || (!q.st.varies(a.presence.Var) && a.presence.Holds(q.st.values[a.presence.Var])) {
			continue
		}
		for start := a.lo; start <= a.hi; start++ {
			if q.tick() {
				return false
			}
			value, ok := q.evaluate(a, false, start, false)
			if ok && (!a.absentOK || value > a.absentValue) {
				a.absentOK, a.absentValue, a.absentStart = true, value, start
			}
		}
	}
	return true
}

func (q *sequencer) tick() bool {
	q.work++
	return q.work%ctxCheckEvery == 0 && q.st.interrupted()
}

// evaluate returns the best contribution of a placed at start, over its
// private decisions. With apply set the best assignment is left in place.
func (q *sequencer) evaluate(a *activity, present bool, start int64, apply bool) (int64, bool) {
	s := q.st
	s.values[a.start] = start
	if a.presenceFree {
		s.values[a.presence.Var] = 0
		if present != a.presence.Negated {
			s.values[a.presence.Var] = 1
		}
	}
	best, bestCombo := int64(noValue), -1
	for combo := 0; combo < a.combos; combo++ {
		q.assignLocals(a, combo)
		if value, ok := q.local(a, present); ok && value > best {
			best, bestCombo = value, combo
		}
	}
	if bestCombo < 0 {
		return 0, false
	}
	if apply {
		q.assignLocals(a, bestCombo)
		q.local(a, present)
	}
	return best, true
}

func (q *sequencer) assignLocals(a *activity, combo int) {
	for _, v := range a.locals {
		def := q.st.prog.Vars[v]
		size := int(def.Upper - def.Lower + 1)
		q.st.values[v] = def.Lower + int64(combo%size)
		combo /= size
	}
}

func (q *sequencer) local(a *activity, present bool) (int64, bool) {
	s := q.st
	for _, ci := range a.defs {
		target := s.defTarget[ci]
		value, ok := s.evalDefinition(ci)
		if !ok {
			return 0, false
		}
		if def := s.prog.Vars[target]; value < def.Lower || value > def.Upper {
			return 0, false
		}
		s.values[target] = value
	}
	if a.presence == nil {
		if !present {
			return 0, false
		}
	} else if a.presence.Holds(s.values[a.presence.Var]) != present {
		return 0, false
	}
	for _, ch := range a.checks {
		if !s.holds(ch) {
			return 0, false
		}
	}
	var total int64
	for _, t := range a.terms {
		total += t.Coeff * s.values[t.Var]
	}
	return total, true
}

// explore branches on the next activity to run after frontier. acc is the
// contribution of the activities placed so far.
func (q *sequencer) explore(frontier, acc int64) {
	s := q.st
	if s.stop != stopNone {
		return
	}
	s.nodes++
	if s.nodes%ctxCheckEvery == 0 && s.interrupted() {
		return
	}

	bound := q.constant + acc
	rest := q.constant + acc
	restOK := true
	var mandatory int64
	latest := int64(noValue)
	for i, open := range q.open {
		if !open {
			continue
		}
		a := &q.acts[i]
		b, ok := a.bound(frontier)
		if !ok {
			s.conflicts++
			return
		}
		bound += b
		if a.absentOK {
			rest += a.absentValue
			continue
		}
		restOK = false
		mandatory += a.size
		latest = max(latest, a.hi+a.size)
	}
	if s.hasBest && bound <= s.bestObjective {
		return
	}
	if !restOK && frontier+mandatory > latest {
		s.conflicts++
		return
	}
	if !q.remember(frontier, acc) {
		return
	}

	if restOK && (!s.hasBest || rest > s.bestObjective) {
		q.record()
		if s.stop != stopNone {
			return
		}
	}

	var children []candidate
	for i, open := range q.open {
		if open {
			children = q.acts[i].candidates(i, frontier, children)
		}
	}
	sort.Slice(children, func(x, y int) bool {
		cx, cy := children[x], children[y]
		if cx.value != cy.value {
			return cx.value > cy.value
		}
		if cx.start != cy.start {
			return cx.start < cy.start
		}
		return cx.act < cy.act
	})
	for _, c := range children {
		q.open[c.act] = false
		q.placed[c.act] = c.start
		q.explore(c.start+q.acts[c.act].size, acc+c.value)
		q.open[c.act] = true
		if s.stop != stopNone {
			return
		}
	}
}

// remember reports false when the same open set was already reached at the
// same frontier with at least acc.
func (q *sequencer) remember(frontier, acc int64) bool {
	q.key = q.key[:0]
	var b byte
	for i, open := range q.open {
		if open {
			b |= 1 << (i % 8)
		}
		if i%8 == 7 || i == len(q.open)-1 {
			q.key = append(q.key, b)
			b = 0
		}
	}
	q.key = strconv.AppendInt(q.key, frontier, 36)
	key := string(q.key)
	if seen, ok := q.memo[key]; ok {
		if seen >= acc {
			return false
		}
		q.memo[key] = acc
		return true
	}
	if len(q.memo) < memoLimit {
		q.memo[key] = acc
	}
	return true
}

// record materializes the current sequence and offers it as a solution.
func (q *sequencer) record() {
	s := q.st
	for i := range q.acts {
		a := &q.acts[i]
		var ok bool
		if q.open[i] {
			_, ok = q.evaluate(a, false, a.absentStart, true)
		} else {
			_, ok = q.evaluate(a, true, q.placed[i], true)
		}
		if !ok {
			s.conflicts++
			return
		}
	}
	for _, ch := range q.checks {
		if !s.holds(ch) {
			s.conflicts++
			return
		}
	}
	s.record()
}

// bound is the best contribution a can still reach when it starts no earlier
// than frontier, or is left out.
func (a *activity) bound(frontier int64) (int64, bool) {
	best, ok := a.absentValue, a.absentOK
	from := max(frontier, a.lo)
	if from > a.hi {
		return best, ok
	}
	if j := a.firstSegment(from); j < len(a.segments) && (!ok || a.bestFrom[j] > best) {
		best, ok = a.bestFrom[j], true
	}
	return best, ok
}

// candidates appends the starts worth trying when a runs next: the earliest
// feasible start of each segment, skipping segments that start later without
// paying more.
func (a *activity) candidates(act int, frontier int64, out []candidate) []candidate {
	from := max(frontier, a.lo)
	if from > a.hi {
		return out
	}
	best := int64(noValue)
	for j := a.firstSegment(from); j < len(a.segments); j++ {
		if a.bestFrom[j] <= best {
			break
		}
		seg := a.segments[j]
		if seg.value <= best {
			continue
		}
		start := a.earliestFit(max(seg.from, from))
		if start > a.hi {
			break
		}
		if start > seg.to {
			continue
		}
		out = append(out, candidate{act: act, start: start, value: seg.value})
		best = seg.value
	}
	return out
}

func (a *activity) firstSegment(from int64) int {
	return sort.Search(len(a.segments), func(j int) bool { return a.segments[j].to >= from })
}

// earliestFit is the first start at or after from that clears every zone.
func (a *activity) earliestFit(from int64) int64 {
	start := from
	for _, z := range a.zones {
		if z.end <= start {
			continue
		}
		if z.start >= start+a.size {
			break
		}
		start = z.end
	}
	return start
}

func mergeSpans(spans []span) []span {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			last.end = max(last.end, sp.end)
			continue
		}
		merged = append(merged, sp)
	}
	return merged
}

type unionFind []int

func newUnionFind(n int) unionFind {
	uf := make(unionFind, n)
	for i := range uf {
		uf[i] = i
	}
	return uf
}

func (uf unionFind) find(x int) int {
	for uf[x] != x {
		uf[x] = uf[uf[x]]
		x = uf[x]
	}
	return x
}

func (uf unionFind) unionAll(vars []optimizer.Var) {
	if len(vars) < 2 {
		return
	}
	root := uf.find(int(vars[0]))
	for _, v := range vars[1:] {
		if r := uf.find(int(v)); r != root {
			uf[r] = root
		}
	}
}
