package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-intake/pkg/condition"
)

// Evaluator is a small, dependency-free condition evaluator.
//
// Supported syntax:
//   - truthiness: `isBusinessOwnerSameAsRequester`
//   - equality: `contract.hasContract == "HAVE_CONTRACT"`, `flag != false`
//   - ordering: `costs.expectedIncreaseAmount > 0`
//   - composition: `a && !b`, `(a || b) && c`
//
// Identifiers are dotted paths into Context.Values; numeric segments index
// arrays (`teams.0.name`). The `extras.` prefix reads Context.Extras. Parsed
// rules are cached, so an Evaluator is cheap to share across wizards.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]node
}

// New returns an Evaluator with an empty rule cache.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]node)}
}

var _ condition.Evaluator = (*Evaluator)(nil)

// Eval parses (or reuses) rule and evaluates it against ctx.
func (e *Evaluator) Eval(rule string, ctx condition.Context) (bool, error) {
	compiled, err := e.compile(rule)
	if err != nil {
		return false, err
	}
	if compiled == nil {
		return true, nil
	}
	return compiled.eval(ctx)
}

// Check reports a syntax error in rule without evaluating it. Definition
// loaders use it to reject bad rules up front.
func (e *Evaluator) Check(rule string) error {
	_, err := e.compile(rule)
	return err
}

func (e *Evaluator) compile(rule string) (node, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return nil, nil
	}

	e.mu.RLock()
	cached, ok := e.cache[trimmed]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	parsed, err := parse(tokens)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.cache == nil {
		e.cache = make(map[string]node)
	}
	e.cache[trimmed] = parsed
	e.mu.Unlock()
	return parsed, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokBool
	tokNull
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '!', '=', '&', '|', '<', '>':
		return true
	}
	return false
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(input); {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			tokens = append(tokens, token{kind: tokLParen, raw: "("})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokRParen, raw: ")"})
			i++
		case ch == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokNeq, raw: "!="})
				i += 2
				continue
			}
			tokens = append(tokens, token{kind: tokNot, raw: "!"})
			i++
		case ch == '=':
			if i+1 >= len(input) || input[i+1] != '=' {
				return nil, errors.New("condition/expr: unexpected '='; use '=='")
			}
			tokens = append(tokens, token{kind: tokEq, raw: "=="})
			i += 2
		case ch == '<' || ch == '>':
			kind, raw := tokLt, "<"
			if ch == '>' {
				kind, raw = tokGt, ">"
			}
			if i+1 < len(input) && input[i+1] == '=' {
				kind++
				raw += "="
				i++
			}
			tokens = append(tokens, token{kind: kind, raw: raw})
			i++
		case ch == '&' || ch == '|':
			if i+1 >= len(input) || input[i+1] != ch {
				return nil, fmt.Errorf("condition/expr: unexpected %q; use %q", string(ch), string([]byte{ch, ch}))
			}
			if ch == '&' {
				tokens = append(tokens, token{kind: tokAnd, raw: "&&"})
			} else {
				tokens = append(tokens, token{kind: tokOr, raw: "||"})
			}
			i += 2
		case ch == '"' || ch == '\'':
			end := i + 1
			escaped := false
			for ; end < len(input); end++ {
				if escaped {
					escaped = false
					continue
				}
				if input[end] == '\\' {
					escaped = true
					continue
				}
				if input[end] == ch {
					break
				}
			}
			if end >= len(input) {
				return nil, errors.New("condition/expr: unterminated string literal")
			}
			body := input[i+1 : end]
			if ch == '\'' {
				body = strings.ReplaceAll(body, `"`, `\"`)
			}
			value, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return nil, fmt.Errorf("condition/expr: invalid string literal: %w", err)
			}
			tokens = append(tokens, token{kind: tokString, raw: value})
			i = end + 1
		default:
			start := i
			for i < len(input) && !isDelimiter(input[i]) {
				i++
			}
			raw := input[start:i]
			switch strings.ToLower(raw) {
			case "true", "false":
				tokens = append(tokens, token{kind: tokBool, raw: strings.ToLower(raw)})
			case "null", "nil":
				tokens = append(tokens, token{kind: tokNull, raw: "null"})
			default:
				if looksLikeNumber(raw) {
					tokens = append(tokens, token{kind: tokNumber, raw: raw})
				} else {
					tokens = append(tokens, token{kind: tokIdent, raw: raw})
				}
			}
		}
	}
	return tokens, nil
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	_, err := strconv.ParseFloat(raw, 64)
	return err == nil
}

type node interface {
	eval(ctx condition.Context) (bool, error)
}

type orNode struct{ left, right node }

func (n orNode) eval(ctx condition.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(ctx)
}

type andNode struct{ left, right node }

func (n andNode) eval(ctx condition.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil || !ok {
		return false, err
	}
	return n.right.eval(ctx)
}

type notNode struct{ inner node }

func (n notNode) eval(ctx condition.Context) (bool, error) {
	ok, err := n.inner.eval(ctx)
	return !ok && err == nil, err
}

type truthyNode struct{ path string }

func (n truthyNode) eval(ctx condition.Context) (bool, error) {
	value, _ := lookup(ctx, n.path)
	return truthy(value), nil
}

type compareNode struct {
	path    string
	op      tokenKind
	literal token
}

func (n compareNode) eval(ctx condition.Context) (bool, error) {
	value, _ := lookup(ctx, n.path)

	switch n.literal.kind {
	case tokNull:
		switch n.op {
		case tokEq:
			return isEmpty(value), nil
		case tokNeq:
			return !isEmpty(value), nil
		}
	case tokBool:
		want := n.literal.raw == "true"
		got := coerceBool(value)
		switch n.op {
		case tokEq:
			return got == want, nil
		case tokNeq:
			return got != want, nil
		}
	case tokNumber:
		want, err := strconv.ParseFloat(n.literal.raw, 64)
		if err != nil {
			return false, fmt.Errorf("condition/expr: invalid number literal %q", n.literal.raw)
		}
		got, ok := coerceNumber(value)
		if !ok {
			if n.op == tokNeq {
				return true, nil
			}
			return false, nil
		}
		return compareOrdered(n.op, got, want), nil
	case tokString, tokIdent:
		got := coerceString(value)
		return compareOrdered(n.op, got, n.literal.raw), nil
	}
	return false, fmt.Errorf("condition/expr: operator %s is not supported for %s literals", opString(n.op), kindName(n.literal.kind))
}

func compareOrdered[T float64 | string](op tokenKind, got, want T) bool {
	switch op {
	case tokEq:
		return got == want
	case tokNeq:
		return got != want
	case tokLt:
		return got < want
	case tokLte:
		return got <= want
	case tokGt:
		return got > want
	case tokGte:
		return got >= want
	}
	return false
}

func opString(op tokenKind) string {
	switch op {
	case tokEq:
		return "=="
	case tokNeq:
		return "!="
	case tokLt:
		return "<"
	case tokLte:
		return "<="
	case tokGt:
		return ">"
	case tokGte:
		return ">="
	}
	return "?"
}

func kindName(kind tokenKind) string {
	switch kind {
	case tokNull:
		return "null"
	case tokBool:
		return "bool"
	case tokNumber:
		return "number"
	}
	return "string"
}

type parser struct {
	tokens []token
	pos    int
}

func parse(tokens []token) (node, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	p := &parser{tokens: tokens}
	out, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("condition/expr: unexpected token %q", p.tokens[p.pos].raw)
	}
	return out, nil
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.match(tokOr) {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) and() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.match(tokAnd) {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.match(tokNot) {
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	if p.match(tokLParen) {
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if !p.match(tokRParen) {
			return nil, errors.New("condition/expr: missing closing ')'")
		}
		return inner, nil
	}

	if p.pos >= len(p.tokens) {
		return nil, errors.New("condition/expr: unexpected end of expression")
	}
	ident := p.tokens[p.pos]
	if ident.kind != tokIdent {
		return nil, fmt.Errorf("condition/expr: expected identifier, got %q", ident.raw)
	}
	p.pos++

	if p.pos < len(p.tokens) {
		op := p.tokens[p.pos].kind
		switch op {
		case tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte:
			p.pos++
			if p.pos >= len(p.tokens) {
				return nil, errors.New("condition/expr: missing literal")
			}
			lit := p.tokens[p.pos]
			switch lit.kind {
			case tokString, tokNumber, tokBool, tokNull, tokIdent:
			default:
				return nil, fmt.Errorf("condition/expr: expected literal, got %q", lit.raw)
			}
			p.pos++
			return compareNode{path: ident.raw, op: op, literal: lit}, nil
		}
	}
	return truthyNode{path: ident.raw}, nil
}

func (p *parser) match(kind tokenKind) bool {
	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == kind {
		p.pos++
		return true
	}
	return false
}

func lookup(ctx condition.Context, key string) (any, bool) {
	if rest, ok := strings.CutPrefix(key, "extras."); ok {
		return Lookup(ctx.Extras, rest)
	}
	return Lookup(ctx.Values, key)
}

// Lookup resolves a dotted path inside nested maps and slices. Exact dotted
// keys win over traversal.
func Lookup(values map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if len(values) == 0 || path == "" {
		return nil, false
	}
	if v, ok := values[path]; ok {
		return v, true
	}

	var current any = values
	for _, part := range strings.Split(path, ".") {
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		if parsed, err := strconv.ParseBool(trimmed); err == nil {
			return parsed
		}
		return trimmed != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func coerceBool(value any) bool {
	return truthy(value)
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(value)
	}
}
