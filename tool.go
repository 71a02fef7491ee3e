package goderiv

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrUnknownNode = errors.New("unknown expression type")
	ErrUnknownFunc = errors.New("unknown function")
	ErrUnknownTool = errors.New("unknown tool")
)

var elementaries = map[string]func(...Term) Term{
	"exp": Exp,
	"log": Log,
	"sin": Sin,
	"cos": Cos,
	"tan": Tan,
}

// ============================================================
// JSON decoding
// ============================================================

// FromJSON builds a Term from a decoded JSON object such as
//
//	{"type": "mul", "left": {"type": "x"}, "right": {"type": "func", "name": "exp"}}
func FromJSON(data map[string]any) (Term, error) {
	if data == nil {
		return Term{}, fmt.Errorf("expression must be an object")
	}
	typAny, ok := data["type"]
	if !ok {
		return Term{}, fmt.Errorf("missing 'type' field")
	}
	typ, ok := typAny.(string)
	if !ok || typ == "" {
		return Term{}, fmt.Errorf("field 'type' must be a non-empty string")
	}

	sub := func(field string) (Term, error) {
		v, ok := data[field]
		if !ok {
			return Term{}, fmt.Errorf("%s: missing %q", typ, field)
		}
		m, ok := v.(map[string]any)
		if !ok {
			return Term{}, fmt.Errorf("%s: %q must be an object", typ, field)
		}
		t, err := FromJSON(m)
		if err != nil {
			return Term{}, fmt.Errorf("%s: %s: %w", typ, field, err)
		}
		return t, nil
	}
	number := func(field string) (float64, error) {
		v, ok := data[field]
		if !ok {
			return 0, fmt.Errorf("%s: missing %q", typ, field)
		}
		f, ok := toFloat(v)
		if !ok {
			return 0, fmt.Errorf("%s: %q must be a number", typ, field)
		}
		return f, nil
	}
	pair := func(a, b string) (Term, Term, error) {
		l, err := sub(a)
		if err != nil {
			return Term{}, Term{}, err
		}
		r, err := sub(b)
		if err != nil {
			return Term{}, Term{}, err
		}
		return l, r, nil
	}

	switch typ {
	case "x":
		return X(), nil
	case "const":
		c, err := number("value")
		if err != nil {
			return Term{}, err
		}
		return Const(c), nil
	case "neg", "pos":
		arg, err := sub("arg")
		if err != nil {
			return Term{}, err
		}
		if typ == "neg" {
			return arg.Neg(), nil
		}
		return arg.Pos(), nil
	case "add", "sub", "mul", "div", "quo":
		l, r, err := pair("left", "right")
		if err != nil {
			return Term{}, err
		}
		switch typ {
		case "add":
			return l.Add(r), nil
		case "sub":
			return l.Sub(r), nil
		case "mul":
			return l.Mul(r), nil
		case "div":
			return l.Div(r), nil
		}
		return l.Quo(r), nil
	case "compose":
		outer, inner, err := pair("outer", "inner")
		if err != nil {
			return Term{}, err
		}
		return outer.Of(inner), nil
	case "pow":
		base, exp, err := pair("base", "exp")
		if err != nil {
			return Term{}, err
		}
		return base.Pow(exp), nil
	case "pow_const":
		base, err := sub("base")
		if err != nil {
			return Term{}, err
		}
		k, err := number("exp")
		if err != nil {
			return Term{}, err
		}
		return base.PowConst(k), nil
	case "const_pow":
		k, err := number("base")
		if err != nil {
			return Term{}, err
		}
		exp, err := sub("exp")
		if err != nil {
			return Term{}, err
		}
		return ConstPow(k, exp), nil
	case "func":
		name, _ := data["name"].(string)
		f, ok := elementaries[name]
		if !ok {
			return Term{}, fmt.Errorf("func: %w: %q", ErrUnknownFunc, name)
		}
		if _, has := data["arg"]; !has {
			return f(), nil
		}
		arg, err := sub("arg")
		if err != nil {
			return Term{}, err
		}
		return f(arg), nil
	}
	return Term{}, fmt.Errorf("%w: %s", ErrUnknownNode, typ)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ============================================================
// MCP Tool Interface
// ============================================================

type ToolRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

type ToolResponse struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Evaluation is one evaluated point. Numbers are text so NaN and Inf
// survive JSON encoding.
type Evaluation struct {
	Point      string `json:"point"`
	Value      string `json:"value"`
	Derivative string `json:"derivative"`
}

func newEvaluation(point float64, d Dual) Evaluation {
	return Evaluation{Point: formatFloat(point), Value: formatFloat(d.Value), Derivative: formatFloat(d.Deriv)}
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// HandleToolCall runs req and folds any error into the response.
func HandleToolCall(req ToolRequest) ToolResponse {
	result, err := CallTool(req)
	if err != nil {
		return ToolResponse{Error: err.Error()}
	}
	return ToolResponse{Result: result}
}

// CallTool runs req. Results are an Evaluation for "eval", a []Evaluation
// for "eval_points" and the tool schema for "mcp_spec".
func CallTool(req ToolRequest) (any, error) {
	getExpr := func() (Term, error) {
		v, ok := req.Params["expr"]
		if !ok {
			return Term{}, fmt.Errorf("missing param: expr")
		}
		m, ok := v.(map[string]any)
		if !ok {
			return Term{}, fmt.Errorf("invalid type for param expr")
		}
		return FromJSON(m)
	}

	switch req.Tool {
	case "eval":
		t, err := getExpr()
		if err != nil {
			return nil, err
		}
		p, ok := toFloat(req.Params["point"])
		if !ok {
			return nil, fmt.Errorf("param point must be a number")
		}
		return newEvaluation(p, t.Eval(p)), nil

	case "eval_points":
		t, err := getExpr()
		if err != nil {
			return nil, err
		}
		raw, ok := req.Params["points"].([]any)
		if !ok {
			return nil, fmt.Errorf("param points must be array")
		}
		out := make([]Evaluation, len(raw))
		for i, r := range raw {
			p, ok := toFloat(r)
			if !ok {
				return nil, fmt.Errorf("param points[%d] must be number", i)
			}
			out[i] = newEvaluation(p, t.Eval(p))
		}
		return out, nil

	case "mcp_spec":
		return toolSpec(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, req.Tool)
}

// MCPToolSpec returns the tool schema as indented JSON.
func MCPToolSpec() string {
	b, _ := json.MarshalIndent(toolSpec(), "", "  ")
	return string(b)
}

func toolSpec() map[string]any {
	tools := []map[string]any{
		ts("eval", "Value and first derivative of expr at point", []string{"expr", "point"}, map[string]any{"expr": prop("object"), "point": prop("number")}),
		ts("eval_points", "Value and first derivative of expr at each point", []string{"expr", "points"}, map[string]any{"expr": prop("object"), "points": arrayOf("number")}),
		ts("mcp_spec", "Return this tool schema", []string{}, map[string]any{}),
	}
	return map[string]any{"tools": tools}
}

func prop(typ string) map[string]any    { return map[string]any{"type": typ} }
func arrayOf(typ string) map[string]any { return map[string]any{"type": "array", "items": prop(typ)} }

func ts(name, description string, required []string, properties map[string]any) map[string]any {
	return map[string]any{
		"name":        name,
		"description": description,
		"inputSchema": map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
