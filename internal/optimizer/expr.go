package optimizer

// Var is a handle to an integer or boolean decision variable of a Program.
type Var int

// Literal references a boolean variable, possibly negated.
type Literal struct {
	Var     Var
	Negated bool
}

// Lit returns the positive literal of v.
func (v Var) Lit() Literal {
	return Literal{Var: v}
}

// Not returns the negated literal of v.
func (v Var) Not() Literal {
	return Literal{Var: v, Negated: true}
}

// Expr returns the expression 1*v.
func (v Var) Expr() LinearExpr {
	return LinearExpr{Terms: []Term{{Var: v, Coeff: 1}}}
}

// Not flips the literal polarity.
func (l Literal) Not() Literal {
	return Literal{Var: l.Var, Negated: !l.Negated}
}

// Holds reports whether the literal is true for the given boolean value.
func (l Literal) Holds(value int64) bool {
	if l.Negated {
		return value == 0
	}
	return value != 0
}

// Term is a coefficient applied to a variable.
type Term struct {
	Var   Var
	Coeff int64
}

// LinearExpr is sum(Terms) + Offset. Values are immutable: the builder
// methods return a new expression and never alias the receiver's terms.
type LinearExpr struct {
	Terms  []Term
	Offset int64
}

// Const returns a constant expression.
func Const(value int64) LinearExpr {
	return LinearExpr{Offset: value}
}

// Plus adds coeff*v to the expression.
func (e LinearExpr) Plus(v Var, coeff int64) LinearExpr {
	terms := make([]Term, len(e.Terms), len(e.Terms)+1)
	copy(terms, e.Terms)
	return LinearExpr{Terms: append(terms, Term{Var: v, Coeff: coeff}), Offset: e.Offset}
}

// PlusConst adds a constant to the expression.
func (e LinearExpr) PlusConst(c int64) LinearExpr {
	terms := make([]Term, len(e.Terms))
	copy(terms, e.Terms)
	return LinearExpr{Terms: terms, Offset: e.Offset + c}
}

// Vars lists the variables referenced by the expression.
func (e LinearExpr) Vars() []Var {
	vars := make([]Var, 0, len(e.Terms))
	for _, t := range e.Terms {
		vars = append(vars, t.Var)
	}
	return vars
}

// Eval computes the expression with the supplied variable values.
func (e LinearExpr) Eval(value func(Var) int64) int64 {
	total := e.Offset
	for _, t := range e.Terms {
		total += t.Coeff * value(t.Var)
	}
	return total
}
