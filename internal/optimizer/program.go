package optimizer

import "fmt"

// Interval is a handle to an interval of a Program.
type Interval int

// VarDef describes a variable domain.
type VarDef struct {
	Name  string
	Lower int64
	Upper int64
	Bool  bool
}

// IntervalDef describes a (start, size, end) triple. A nil Presence means
// the interval is always active.
type IntervalDef struct {
	Name     string
	Start    Var
	Size     int64
	End      Var
	Presence *Literal
}

// ConstraintKind enumerates the constraint families a backend must support.
type ConstraintKind int

const (
	KindLinear ConstraintKind = iota
	KindNoOverlap
	KindDivision
	KindAbs
	KindMultiplication
	KindMin
	KindMax
)

func (k ConstraintKind) String() string {
	switch k {
	case KindLinear:
		return "linear"
	case KindNoOverlap:
		return "no_overlap"
	case KindDivision:
		return "division"
	case KindAbs:
		return "abs"
	case KindMultiplication:
		return "multiplication"
	case KindMin:
		return "min"
	case KindMax:
		return "max"
	default:
		return "unknown"
	}
}

// Constraint is one recorded constraint. Fields are interpreted per Kind:
//
//	KindLinear:         Lower <= Exprs[0] <= Upper, only when all Enforcement literals hold
//	KindNoOverlap:      Intervals pairwise disjoint among the active ones
//	KindDivision:       Target == Exprs[0] / Denominator, rounded toward zero
//	KindAbs:            Target == |Exprs[0]|
//	KindMultiplication: Target == product(Exprs)
//	KindMin, KindMax:   Target == min/max(Exprs)
type Constraint struct {
	Kind        ConstraintKind
	Target      Var
	Exprs       []LinearExpr
	Lower       int64
	Upper       int64
	Denominator int64
	Intervals   []Interval
	Enforcement []Literal
}

// Program is an in-memory constraint model. It implements Model and is the
// single artefact handed to a Solver. A Program belongs to one request.
type Program struct {
	Vars         []VarDef
	Intervals    []IntervalDef
	Constraints  []Constraint
	Objective    LinearExpr
	HasObjective bool
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{}
}

var _ Model = (*Program)(nil)

// NewIntVar adds an integer variable with domain [lb, ub].
func (p *Program) NewIntVar(lb, ub int64, name string) Var {
	p.Vars = append(p.Vars, VarDef{Name: name, Lower: lb, Upper: ub})
	return Var(len(p.Vars) - 1)
}

// NewBoolVar adds a boolean variable.
func (p *Program) NewBoolVar(name string) Var {
	p.Vars = append(p.Vars, VarDef{Name: name, Lower: 0, Upper: 1, Bool: true})
	return Var(len(p.Vars) - 1)
}

// NewOptionalIntervalVar adds an interval active only when presence holds.
func (p *Program) NewOptionalIntervalVar(start Var, size int64, end Var, presence Literal, name string) Interval {
	lit := presence
	p.Intervals = append(p.Intervals, IntervalDef{Name: name, Start: start, Size: size, End: end, Presence: &lit})
	return Interval(len(p.Intervals) - 1)
}

// NewFixedIntervalVar adds an always-active interval [start, start+size).
func (p *Program) NewFixedIntervalVar(start, size int64, name string) Interval {
	s := p.NewIntVar(start, start, name+"_start")
	e := p.NewIntVar(start+size, start+size, name+"_end")
	p.Intervals = append(p.Intervals, IntervalDef{Name: name, Start: s, Size: size, End: e})
	return Interval(len(p.Intervals) - 1)
}

// AddNoOverlap forbids any two active intervals of the set from overlapping.
func (p *Program) AddNoOverlap(intervals ...Interval) {
	items := make([]Interval, len(intervals))
	copy(items, intervals)
	p.Constraints = append(p.Constraints, Constraint{Kind: KindNoOverlap, Intervals: items})
}

// AddLinearConstraint adds lb <= expr <= ub, optionally enforced by literals.
func (p *Program) AddLinearConstraint(expr LinearExpr, lb, ub int64, enforcedBy ...Literal) {
	lits := make([]Literal, len(enforcedBy))
	copy(lits, enforcedBy)
	p.Constraints = append(p.Constraints, Constraint{
		Kind:        KindLinear,
		Exprs:       []LinearExpr{expr},
		Lower:       lb,
		Upper:       ub,
		Enforcement: lits,
	})
}

// AddDivisionEquality adds target == numerator / denominator.
func (p *Program) AddDivisionEquality(target Var, numerator LinearExpr, denominator int64) {
	p.Constraints = append(p.Constraints, Constraint{
		Kind:        KindDivision,
		Target:      target,
		Exprs:       []LinearExpr{numerator},
		Denominator: denominator,
	})
}

// AddAbsEquality adds target == |expr|.
func (p *Program) AddAbsEquality(target Var, expr LinearExpr) {
	p.Constraints = append(p.Constraints, Constraint{Kind: KindAbs, Target: target, Exprs: []LinearExpr{expr}})
}

// AddMultiplicationEquality adds target == product(factors).
func (p *Program) AddMultiplicationEquality(target Var, factors ...LinearExpr) {
	p.Constraints = append(p.Constraints, Constraint{Kind: KindMultiplication, Target: target, Exprs: cloneExprs(factors)})
}

// AddMinEquality adds target == min(exprs).
func (p *Program) AddMinEquality(target Var, exprs ...LinearExpr) {
	p.Constraints = append(p.Constraints, Constraint{Kind: KindMin, Target: target, Exprs: cloneExprs(exprs)})
}

// AddMaxEquality adds target == max(exprs).
func (p *Program) AddMaxEquality(target Var, exprs ...LinearExpr) {
	p.Constraints = append(p.Constraints, Constraint{Kind: KindMax, Target: target, Exprs: cloneExprs(exprs)})
}

// Maximize sets the objective.
func (p *Program) Maximize(objective LinearExpr) {
	p.Objective = objective
	p.HasObjective = true
}

// Validate checks structural consistency: domains, handles and denominators.
func (p *Program) Validate() error {
	for i, v := range p.Vars {
		if v.Lower > v.Upper {
			return &ErrInvalidProgram{Reason: fmt.Sprintf("variable %d (%s) has empty domain [%d, %d]", i, v.Name, v.Lower, v.Upper)}
		}
	}
	for i, iv := range p.Intervals {
		if iv.Size < 0 {
			return &ErrInvalidProgram{Reason: fmt.Sprintf("interval %d (%s) has negative size", i, iv.Name)}
		}
		if !p.validVar(iv.Start) || !p.validVar(iv.End) {
			return &ErrInvalidProgram{Reason: fmt.Sprintf("interval %d (%s) references unknown variable", i, iv.Name)}
		}
		if iv.Presence != nil && !p.validVar(iv.Presence.Var) {
			return &ErrInvalidProgram{Reason: fmt.Sprintf("interval %d (%s) references unknown presence", i, iv.Name)}
		}
	}
	for i, c := range p.Constraints {
		if c.Kind != KindLinear && c.Kind != KindNoOverlap && !p.validVar(c.Target) {
			return &ErrInvalidProgram{Reason: fmt.Sprintf("constraint %d (%s) has unknown target", i, c.Kind)}
		}
		for _, e := range c.Exprs {
			for _, t := range e.Terms {
				if !p.validVar(t.Var) {
					return &ErrInvalidProgram{Reason: fmt.Sprintf("constraint %d (%s) references unknown variable", i, c.Kind)}
				}
			}
		}
		for _, l := range c.Enforcement {
			if !p.validVar(l.Var) {
				return &ErrInvalidProgram{Reason: fmt.Sprintf("constraint %d (%s) has unknown enforcement literal", i, c.Kind)}
			}
		}
		for _, iv := range c.Intervals {
			if int(iv) < 0 || int(iv) >= len(p.Intervals) {
				return &ErrInvalidProgram{Reason: fmt.Sprintf("constraint %d (%s) references unknown interval", i, c.Kind)}
			}
		}
		switch c.Kind {
		case KindDivision:
			if c.Denominator == 0 {
				return &ErrInvalidProgram{Reason: fmt.Sprintf("constraint %d divides by zero", i)}
			}
		case KindLinear:
			if len(c.Exprs) != 1 {
				return &ErrInvalidProgram{Reason: fmt.Sprintf("constraint %d is a malformed linear constraint", i)}
			}
		case KindAbs, KindMin, KindMax, KindMultiplication:
			if len(c.Exprs) == 0 {
				return &ErrInvalidProgram{Reason: fmt.Sprintf("constraint %d (%s) has no operands", i, c.Kind)}
			}
		}
	}
	for _, t := range p.Objective.Terms {
		if !p.validVar(t.Var) {
			return &ErrInvalidProgram{Reason: "objective references unknown variable"}
		}
	}
	return nil
}

func (p *Program) validVar(v Var) bool {
	return int(v) >= 0 && int(v) < len(p.Vars)
}

func cloneExprs(exprs []LinearExpr) []LinearExpr {
	out := make([]LinearExpr, len(exprs))
	copy(out, exprs)
	return out
}
