// Package goderiv provides a forward-mode automatic differentiation engine for Go.
//
// Expressions over a single free variable are built once as trees of nodes
// and evaluated on demand: one traversal yields both the value and the first
// derivative at the requested point.
//
// Design goals:
//   - One free variable, first derivative only
//   - Dual-number arithmetic with IEEE-754 propagation instead of errors
//   - Per-node memoization of the most recent evaluation point
//   - JSON and MCP-ready tool surface
//
// Memoized nodes carry a mutable cache, so a Term must not be evaluated from
// several goroutines at once. Build one tree per goroutine or synchronize
// externally.
package goderiv

import (
	"fmt"
	"math"
)

// ============================================================
// Dual — value and first derivative at one point
// ============================================================

// Dual is the first-order Taylor expansion of a function at a point:
// Value is f(p) and Deriv is f'(p).
type Dual struct {
	Value float64
	Deriv float64
}

func D(value, deriv float64) Dual { return Dual{Value: value, Deriv: deriv} }

func (a Dual) Neg() Dual       { return Dual{-a.Value, -a.Deriv} }
func (a Dual) Add(b Dual) Dual { return Dual{a.Value + b.Value, a.Deriv + b.Deriv} }
func (a Dual) Sub(b Dual) Dual { return Dual{a.Value - b.Value, a.Deriv - b.Deriv} }
func (a Dual) Mul(b Dual) Dual {
	return Dual{a.Value * b.Value, a.Deriv*b.Value + b.Deriv*a.Value}
}

// Div combines a and b with the product formula, not the quotient rule.
// Existing trees depend on this result; use Quo for a true a/b.
func (a Dual) Div(b Dual) Dual {
	return Dual{a.Value * b.Value, a.Deriv*b.Value + b.Deriv*a.Value}
}

// Quo applies the quotient rule.
func (a Dual) Quo(b Dual) Dual {
	return Dual{a.Value / b.Value, (a.Deriv*b.Value - a.Value*b.Deriv) / (b.Value * b.Value)}
}

// Pow raises a to a dual exponent: d(f^g) = f^g * (g' ln f + f' g / f).
func (a Dual) Pow(b Dual) Dual {
	r := math.Pow(a.Value, b.Value)
	return Dual{r, r * (b.Deriv*math.Log(a.Value) + a.Deriv*b.Value/a.Value)}
}

// PowConst raises a to the constant exponent k.
func (a Dual) PowConst(k float64) Dual {
	r := math.Pow(a.Value, k-1)
	return Dual{r * a.Value, k * r * a.Deriv}
}

func (a Dual) String() string { return fmt.Sprintf("%f %f", a.Value, a.Deriv) }

// ============================================================
// Core Interface
// ============================================================

// Node is one unit of an expression tree.
type Node interface {
	Eval(point float64) Dual
}

// computer is the miss handler behind a memoized node.
type computer interface {
	compute(point float64) Dual
}

// cached remembers the last point it was evaluated at. The NaN sentinel
// never compares equal, so the first call always computes. Points are
// compared with ==, so -0 and +0 share one entry.
type cached struct {
	point  float64
	result Dual
	inner  computer
}

func memo(c computer) *cached {
	nan := math.NaN()
	return &cached{point: nan, result: Dual{nan, nan}, inner: c}
}

func (c *cached) Eval(point float64) Dual {
	if point != c.point {
		c.point = point
		c.result = c.inner.compute(point)
	}
	return c.result
}

// ============================================================
// Terminals — constant and free variable
// ============================================================

type constNode struct{ value float64 }

func (c *constNode) Eval(float64) Dual { return Dual{c.value, 0} }

type varNode struct{}

func (*varNode) Eval(point float64) Dual { return Dual{point, 1} }

// variable is the single free-variable node shared by every Term.
var variable Node = &varNode{}

// ============================================================
// Combinators
// ============================================================

type negNode struct{ arg Node }

func (n *negNode) compute(point float64) Dual { return n.arg.Eval(point).Neg() }

type binaryOp uint8

const (
	opAdd binaryOp = iota
	opSub
	opMul
	opDiv
	opQuo
	opPow
)

type binaryNode struct {
	op          binaryOp
	left, right Node
}

func (b *binaryNode) compute(point float64) Dual {
	l, r := b.left.Eval(point), b.right.Eval(point)
	switch b.op {
	case opAdd:
		return l.Add(r)
	case opSub:
		return l.Sub(r)
	case opMul:
		return l.Mul(r)
	case opDiv:
		return l.Div(r)
	case opQuo:
		return l.Quo(r)
	case opPow:
		return l.Pow(r)
	}
	panic(fmt.Sprintf("goderiv: unknown binary op %d", b.op))
}

// composeNode evaluates outer at the value of inner (chain rule).
type composeNode struct{ outer, inner Node }

func (c *composeNode) compute(point float64) Dual {
	v := c.inner.Eval(point)
	w := c.outer.Eval(v.Value)
	return Dual{w.Value, w.Deriv * v.Deriv}
}

type powConstNode struct {
	base Node
	exp  float64
}

func (p *powConstNode) compute(point float64) Dual { return p.base.Eval(point).PowConst(p.exp) }

// constPowNode is base^exp for a constant base. The derivative omits the
// ln(base) factor; trees built before Quo existed rely on that value.
type constPowNode struct {
	base float64
	exp  Node
}

func (p *constPowNode) compute(point float64) Dual {
	e := p.exp.Eval(point)
	r := math.Pow(p.base, e.Value)
	return Dual{r, r * e.Deriv}
}

// ============================================================
// Func — named elementary functions of the point
// ============================================================

type funcNode struct{ name string }

func (f *funcNode) compute(point float64) Dual {
	switch f.name {
	case "exp":
		r := math.Exp(point)
		return Dual{r, r}
	case "log":
		return Dual{math.Log(point), 1 / point}
	case "sin":
		return Dual{math.Sin(point), math.Cos(point)}
	case "cos":
		return Dual{math.Cos(point), -math.Sin(point)}
	case "tan":
		r := math.Tan(point)
		return Dual{r, 1 + r*r}
	}
	panic("goderiv: unknown function " + f.name)
}

type customNode struct{ fn, der func(float64) float64 }

func (c *customNode) compute(point float64) Dual { return Dual{c.fn(point), c.der(point)} }

// ============================================================
// Term — builder handle
// ============================================================

// Term is a handle on an expression tree. Copies share the tree, and every
// operator returns a new Term wrapping its operands without evaluating or
// modifying them. The zero Term is the free variable.
type Term struct{ node Node }

func X() Term                   { return Term{node: variable} }
func Const(c float64) Term      { return Term{node: &constNode{value: c}} }
func (t Term) Node() Node       { return t.root() }
func (t Term) IsVariable() bool { return t.root() == variable }

// Wrap adopts a caller-supplied node as the root of a Term.
func Wrap(n Node) Term {
	if n == nil {
		panic("goderiv: Wrap requires a node")
	}
	return Term{node: n}
}

func (t Term) root() Node {
	if t.node == nil {
		return variable
	}
	return t.node
}

// Eval returns the value and derivative of t at point.
func (t Term) Eval(point float64) Dual { return t.root().Eval(point) }

func (t Term) Pos() Term         { return t }
func (t Term) Neg() Term         { return Term{node: memo(&negNode{arg: t.root()})} }
func (t Term) Add(o Term) Term   { return t.binary(opAdd, o) }
func (t Term) Sub(o Term) Term   { return t.binary(opSub, o) }
func (t Term) Mul(o Term) Term   { return t.binary(opMul, o) }
func (t Term) Div(o Term) Term   { return t.binary(opDiv, o) }
func (t Term) Quo(o Term) Term   { return t.binary(opQuo, o) }
func (t Term) Pow(exp Term) Term { return t.binary(opPow, exp) }

func (t Term) binary(op binaryOp, o Term) Term {
	return Term{node: memo(&binaryNode{op: op, left: t.root(), right: o.root()})}
}

// Of composes t with inner, giving t(inner(x)).
func (t Term) Of(inner Term) Term {
	return Term{node: memo(&composeNode{outer: t.root(), inner: inner.root()})}
}

func (t Term) PowConst(k float64) Term {
	return Term{node: memo(&powConstNode{base: t.root(), exp: k})}
}

// ConstPow builds base^exp for a literal base.
func ConstPow(base float64, exp Term) Term {
	return Term{node: memo(&constPowNode{base: base, exp: exp.root()})}
}

// ============================================================
// Elementary function factories
// ============================================================

// Exp, Log, Sin, Cos and Tan return the bare function of the free variable
// when called without arguments, or its composition with in[0].
func Exp(in ...Term) Term { return elementary("exp", in) }
func Log(in ...Term) Term { return elementary("log", in) }
func Sin(in ...Term) Term { return elementary("sin", in) }
func Cos(in ...Term) Term { return elementary("cos", in) }
func Tan(in ...Term) Term { return elementary("tan", in) }

func elementary(name string, in []Term) Term {
	f := Term{node: memo(&funcNode{name: name})}
	switch len(in) {
	case 0:
		return f
	case 1:
		return f.Of(in[0])
	}
	panic(fmt.Sprintf("goderiv: %s takes at most one argument, got %d", name, len(in)))
}

// Custom builds a memoized node from a function and its derivative.
func Custom(fn, der func(float64) float64) Term {
	if fn == nil || der == nil {
		panic("goderiv: Custom requires both fn and der")
	}
	return Term{node: memo(&customNode{fn: fn, der: der})}
}
