package ai

import (
	"fmt"
	"strings"
	"unicode"
)

// TypeExpr is a parsed type string of the form Name{parameters}(arg, arg, ...).
// Parameters may contain nested braces; arguments are type expressions.
type TypeExpr struct {
	Name       string
	Parameters string
	Args       []TypeExpr
}

func (t TypeExpr) String() string {
	var b strings.Builder
	b.WriteString(t.Name)
	if t.Parameters != "" {
		b.WriteString("{" + t.Parameters + "}")
	}
	if len(t.Args) > 0 {
		b.WriteString("(")
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(a.String())
		}
		b.WriteString(")")
	}
	return b.String()
}

type typeParser struct {
	in  string
	pos int
}

// ParseTypeExpr parses a single type expression.
func ParseTypeExpr(s string) (TypeExpr, error) {
	p := &typeParser{in: s}
	expr, err := p.expr()
	if err != nil {
		return TypeExpr{}, err
	}
	p.skipSpace()
	if p.pos != len(p.in) {
		return TypeExpr{}, p.errorf("unexpected %q", p.in[p.pos:])
	}
	return expr, nil
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at %d in %q: %s", ErrSyntax, p.pos, p.in, fmt.Sprintf(format, args...))
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.in) && unicode.IsSpace(rune(p.in[p.pos])) {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	if p.pos >= len(p.in) {
		return 0
	}
	return p.in[p.pos]
}

func isIdent(c byte) bool {
	return c == '_' || c == '.' || c == ':' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *typeParser) expr() (TypeExpr, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.in) && isIdent(p.in[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return TypeExpr{}, p.errorf("expected type name")
	}
	out := TypeExpr{Name: p.in[start:p.pos]}

	p.skipSpace()
	if p.peek() == '{' {
		params, err := p.params()
		if err != nil {
			return TypeExpr{}, err
		}
		out.Parameters = params
		p.skipSpace()
	}

	if p.peek() == '(' {
		p.pos++
		for {
			arg, err := p.expr()
			if err != nil {
				return TypeExpr{}, err
			}
			out.Args = append(out.Args, arg)
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case ')':
				p.pos++
				return out, nil
			default:
				return TypeExpr{}, p.errorf("expected ',' or ')'")
			}
		}
	}
	return out, nil
}

// params consumes a balanced {...} block and returns its trimmed content.
func (p *typeParser) params() (string, error) {
	depth := 0
	start := p.pos + 1
	for ; p.pos < len(p.in); p.pos++ {
		switch p.in[p.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				content := p.in[start:p.pos]
				p.pos++
				return strings.TrimSpace(content), nil
			}
		}
	}
	return "", p.errorf("unterminated parameters")
}

// ParseCondition builds a condition from a type string such as
// "And(Not(HasEnemies{2}),Filter(SelectHighestAggro))". An empty string
// yields True.
func ParseCondition(r *Registry, s string) (Condition, error) {
	if strings.TrimSpace(s) == "" {
		return trueCondition, nil
	}
	expr, err := ParseTypeExpr(s)
	if err != nil {
		return nil, err
	}
	return BuildCondition(r, expr)
}

// BuildCondition resolves arguments as conditions, or as filters when the
// name is only registered as a filter.
func BuildCondition(r *Registry, expr TypeExpr) (Condition, error) {
	ctx := ConditionFactoryContext{Parameters: expr.Parameters}
	for _, arg := range expr.Args {
		switch {
		case r.IsCondition(arg.Name):
			c, err := BuildCondition(r, arg)
			if err != nil {
				return nil, err
			}
			ctx.Conditions = append(ctx.Conditions, c)
		case r.IsFilter(arg.Name):
			f, err := BuildFilter(r, arg)
			if err != nil {
				return nil, err
			}
			ctx.Filters = append(ctx.Filters, f)
		default:
			return nil, fmt.Errorf("%w: condition or filter %q", ErrUnknownType, arg.Name)
		}
	}
	c, err := r.CreateCondition(expr.Name, ctx)
	if err != nil {
		return nil, fmt.Errorf("condition %s: %w", expr, err)
	}
	return c, nil
}

// ParseFilter builds a filter from a type string such as
// "Union(SelectGroupMembers{1},SelectHighestAggro)".
func ParseFilter(r *Registry, s string) (Filter, error) {
	expr, err := ParseTypeExpr(s)
	if err != nil {
		return nil, err
	}
	return BuildFilter(r, expr)
}

func BuildFilter(r *Registry, expr TypeExpr) (Filter, error) {
	ctx := FilterFactoryContext{Parameters: expr.Parameters}
	for _, arg := range expr.Args {
		f, err := BuildFilter(r, arg)
		if err != nil {
			return nil, err
		}
		ctx.Filters = append(ctx.Filters, f)
	}
	f, err := r.CreateFilter(expr.Name, ctx)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", expr, err)
	}
	return f, nil
}

func ParseSteering(r *Registry, s string) (Steering, error) {
	expr, err := ParseTypeExpr(s)
	if err != nil {
		return nil, err
	}
	return buildSteering(r, expr)
}

func buildSteering(r *Registry, expr TypeExpr) (Steering, error) {
	if len(expr.Args) > 0 {
		return nil, fmt.Errorf("%w: steering %s takes no arguments", ErrSyntax, expr.Name)
	}
	s, err := r.CreateSteering(expr.Name, SteeringFactoryContext{Parameters: expr.Parameters})
	if err != nil {
		return nil, fmt.Errorf("steering %s: %w", expr, err)
	}
	return s, nil
}

// ParseTreeNode builds a node (without children) from a type string such as
// "Idle{500}" or "Steer{0.7,0.3}(Wander,GroupSeek{1})".
func ParseTreeNode(r *Registry, typ, name string, condition Condition) (TreeNode, error) {
	expr, err := ParseTypeExpr(typ)
	if err != nil {
		return nil, err
	}
	ctx := NodeFactoryContext{Name: name, Parameters: expr.Parameters, Condition: condition}

	if r.IsSteerNode(expr.Name) {
		steerCtx := SteerNodeFactoryContext{NodeFactoryContext: ctx}
		for _, arg := range expr.Args {
			s, err := buildSteering(r, arg)
			if err != nil {
				return nil, err
			}
			steerCtx.Steerings = append(steerCtx.Steerings, s)
		}
		n, err := r.CreateSteerNode(expr.Name, steerCtx)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", expr, err)
		}
		return n, nil
	}

	if len(expr.Args) > 0 {
		return nil, fmt.Errorf("%w: node %s takes no arguments", ErrSyntax, expr.Name)
	}
	n, err := r.CreateNode(expr.Name, ctx)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", expr, err)
	}
	return n, nil
}
