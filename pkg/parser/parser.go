// Package parser implements a Pratt (top-down operator precedence) parser
// for JSONata expressions, producing a raw AST that pkg/rewrite later
// linearizes and annotates before evaluation.
//
// The parser consumes tokens from pkg/lexer and allocates every node from
// a types.Arena, exactly as the lexer allocates no intermediate strings
// beyond token slices of the original source.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/johanventer/jsonata-go/pkg/lexer"
	"github.com/johanventer/jsonata-go/pkg/rewrite"
	"github.com/johanventer/jsonata-go/pkg/types"
)

// CompileOption configures parsing behavior.
type CompileOption func(*CompileOptions)

// CompileOptions holds parser configuration.
type CompileOptions struct {
	// MaxDepth bounds expression nesting depth; exceeding it raises U1002
	// at parse time rather than overflowing the Go call stack.
	MaxDepth int
}

// WithMaxDepth overrides the default maximum nesting depth (100).
func WithMaxDepth(depth int) CompileOption {
	return func(o *CompileOptions) { o.MaxDepth = depth }
}

// Parser implements a Pratt parser: parseExpression(rbp) alternates a nud
// (prefix) dispatch with a led (infix) dispatch gated by a precedence table.
type Parser struct {
	lex     *lexer.Lexer
	source  string
	arena   *types.Arena
	current lexer.Token
	opts    CompileOptions
	depth   int
}

// New creates a parser for the given expression text.
func New(input string, opts ...CompileOption) *Parser {
	options := CompileOptions{MaxDepth: 100}
	for _, opt := range opts {
		opt(&options)
	}
	p := &Parser{lex: lexer.New(input), source: input, arena: types.NewArena(), opts: options}
	p.advance()
	return p
}

// Parse parses a JSONata expression and returns the compiled (pre-rewrite)
// Expression.
func Parse(query string, opts ...CompileOption) (*types.Expression, error) {
	p := New(query, opts...)
	return p.Parse()
}

// Compile parses query and runs the spec.md §4.3 rewrite pass over the
// result: path chains are linearized into Steps, filter/group-by suffixes
// become NodePredicate/NodeGroupBy, `~>` chains flatten into ordinary
// function calls, and tail-call positions are marked. This is the AST
// gosonata.Compile and the evaluator's production path operate on; Parse
// alone returns the raw pre-rewrite tree, which some lower-level tests
// exercise directly to check parsing in isolation from rewriting.
func Compile(query string, opts ...CompileOption) (*types.Expression, error) {
	expr, err := Parse(query, opts...)
	if err != nil {
		return nil, err
	}
	return rewrite.Rewrite(expr)
}

// Parse drives this parser to completion.
func (p *Parser) Parse() (*types.Expression, error) {
	if p.current.Type == lexer.TokenError {
		return nil, p.lex.Error()
	}
	if p.current.Type == lexer.TokenEOF {
		return nil, p.error(types.ErrUnexpectedToken, "empty expression")
	}

	node, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if p.current.Type != lexer.TokenEOF {
		return nil, p.error(types.ErrUnexpectedToken, fmt.Sprintf("unexpected token: %s", p.current.Value))
	}

	return types.NewExpression(node, p.source, p.arena), nil
}

// precedence implements the table from spec.md §4.2 (low to high binds
// looser to tighter).
var precedence = map[lexer.TokenType]int{
	lexer.TokenAssign:       10, // :=
	lexer.TokenCondition:    15, // ?:
	lexer.TokenOr:           20, // or
	lexer.TokenCoalesce:     22, // ?? — between or and and, per the open question decision
	lexer.TokenAnd:          25, // and
	lexer.TokenEqual:        30,
	lexer.TokenNotEqual:     30,
	lexer.TokenLess:         30,
	lexer.TokenLessEqual:    30,
	lexer.TokenGreater:      30,
	lexer.TokenGreaterEqual: 30,
	lexer.TokenIn:           30,
	lexer.TokenConcat:       40, // &
	lexer.TokenPlus:         50,
	lexer.TokenMinus:        50,
	lexer.TokenMult:         60,
	lexer.TokenDiv:          60,
	lexer.TokenMod:          60,
	lexer.TokenPercent:      60, // % in infix position is modulo
	lexer.TokenRange:        65, // ..
	lexer.TokenApply:        70, // ~>
	lexer.TokenDot:          75,
	lexer.TokenDescendent:   75,
	lexer.TokenSort:         80, // ^(...)
	lexer.TokenBracketOpen:  80,
	lexer.TokenBraceOpen:    80,
	lexer.TokenParenOpen:    80,
}

func (p *Parser) getPrecedence(tt lexer.TokenType) int {
	return precedence[tt]
}

func (p *Parser) advance() {
	p.current = p.lex.Next(p.isRegexContext())
}

// isRegexContext reports whether the *current* token position could begin
// a regex literal, based on what was consumed just before it. The parser,
// not the lexer, tracks this because it depends on grammatical position.
func (p *Parser) isRegexContext() bool {
	switch p.current.Type {
	case lexer.TokenEqual, lexer.TokenNotEqual, lexer.TokenApply,
		lexer.TokenComma, lexer.TokenParenOpen, lexer.TokenBracketOpen,
		lexer.TokenColon, lexer.TokenEOF:
		return true
	default:
		return false
	}
}

func (p *Parser) expect(tt lexer.TokenType) error {
	if p.current.Type != tt {
		return p.error(types.ErrExpectedToken, fmt.Sprintf("expected %s but got %s", tt.String(), p.current.Type.String()))
	}
	p.advance()
	return nil
}

func (p *Parser) error(code types.ErrorCode, message string) error {
	return &types.Error{Code: code, Message: message, Position: p.current.Position, Token: p.current.Value}
}

func (p *Parser) alloc(nt types.NodeType) *types.ASTNode {
	return p.arena.Alloc(nt, p.current.Position)
}

// parseExpression is the Pratt loop: parse a prefix term, then keep folding
// in infix operators whose precedence exceeds rbp.
func (p *Parser) parseExpression(rbp int) (*types.ASTNode, error) {
	p.depth++
	if p.depth > p.opts.MaxDepth {
		p.depth--
		return nil, p.error(types.ErrMaxDepth, "expression nested too deeply")
	}
	defer func() { p.depth-- }()

	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for rbp < p.getPrecedence(p.current.Type) {
		left, err = p.parseInfix(left)
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

func (p *Parser) parsePrefix() (*types.ASTNode, error) {
	tok := p.current

	switch tok.Type {
	case lexer.TokenString:
		return p.parseString()
	case lexer.TokenNumber:
		return p.parseNumber()
	case lexer.TokenBoolean:
		return p.parseBoolean()
	case lexer.TokenNull:
		return p.parseNull()
	case lexer.TokenName, lexer.TokenNameEsc:
		if tok.Value == "function" || tok.Value == "λ" {
			return p.parseLambda()
		}
		return p.parseName()
	case lexer.TokenVariable:
		return p.parseVariable()
	case lexer.TokenMinus:
		return p.parseUnaryMinus()
	case lexer.TokenPercent:
		return nil, types.NotImplemented("the parent operator (%)", tok.Position)
	case lexer.TokenParenOpen:
		return p.parseGrouping()
	case lexer.TokenBracketOpen:
		return p.parseArrayConstructor()
	case lexer.TokenBraceOpen:
		return p.parseObjectConstructor()
	case lexer.TokenDescendent:
		return p.parseDescendentPrefix()
	case lexer.TokenMult:
		return p.parseWildcard()
	case lexer.TokenRegex:
		return nil, types.NotImplemented("regex literals", tok.Position)
	case lexer.TokenPipe:
		return nil, types.NotImplemented("object transform expressions", tok.Position)
	case lexer.TokenAnd, lexer.TokenOr, lexer.TokenIn:
		return p.parseNameFromKeyword()
	default:
		return nil, p.error(types.ErrUnexpectedToken, fmt.Sprintf("unexpected token: %s", tok.Type.String()))
	}
}

func (p *Parser) parseInfix(left *types.ASTNode) (*types.ASTNode, error) {
	tok := p.current

	switch tok.Type {
	case lexer.TokenDot:
		return p.parsePath(left)
	case lexer.TokenDescendent:
		return p.parseDescendent(left)
	case lexer.TokenBracketOpen:
		return p.parseFilter(left)
	case lexer.TokenBraceOpen:
		return p.parseObjectConstructorWithLeft(left)
	case lexer.TokenParenOpen:
		return p.parseFunctionCall(left)
	case lexer.TokenCondition:
		return p.parseConditional(left)
	case lexer.TokenRange:
		return p.parseRange(left)
	case lexer.TokenApply:
		return p.parseApply(left)
	case lexer.TokenSort:
		return nil, types.NotImplemented("sort syntax ^(...)", tok.Position)
	case lexer.TokenAssign:
		return p.parseAssignment(left)
	case lexer.TokenPlus, lexer.TokenMinus, lexer.TokenMult, lexer.TokenDiv, lexer.TokenMod, lexer.TokenPercent,
		lexer.TokenEqual, lexer.TokenNotEqual, lexer.TokenLess, lexer.TokenLessEqual,
		lexer.TokenGreater, lexer.TokenGreaterEqual, lexer.TokenConcat,
		lexer.TokenAnd, lexer.TokenOr, lexer.TokenIn, lexer.TokenCoalesce:
		return p.parseBinaryOp(left)
	default:
		return nil, p.error(types.ErrUnexpectedToken, fmt.Sprintf("unexpected infix token: %s", tok.Type.String()))
	}
}

func unescapeString(s string) (string, error) {
	if !strings.Contains(s, "\\") {
		return s, nil
	}

	var out strings.Builder
	out.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			out.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("invalid escape sequence at end of string")
		}
		switch s[i] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case 'r':
			out.WriteByte('\r')
		case 'b':
			out.WriteByte('\b')
		case 'f':
			out.WriteByte('\f')
		case '\\':
			out.WriteByte('\\')
		case '"':
			out.WriteByte('"')
		case '\'':
			out.WriteByte('\'')
		case '/':
			out.WriteByte('/')
		case 'u':
			if i+4 >= len(s) {
				return "", fmt.Errorf("invalid \\u escape: not enough characters")
			}
			hex := s[i+1 : i+5]
			cp, err := strconv.ParseUint(hex, 16, 16)
			if err != nil {
				return "", fmt.Errorf("invalid \\u escape: %s", hex)
			}
			i += 4
			r := rune(cp)
			if r >= 0xD800 && r <= 0xDBFF && i+6 < len(s) && s[i+1] == '\\' && s[i+2] == 'u' {
				lowHex := s[i+3 : i+7]
				lowCp, err := strconv.ParseUint(lowHex, 16, 16)
				if err == nil {
					low := rune(lowCp)
					if low >= 0xDC00 && low <= 0xDFFF {
						decoded := utf16.Decode([]uint16{uint16(r), uint16(low)})
						if len(decoded) > 0 {
							out.WriteRune(decoded[0])
							i += 6
							continue
						}
					}
				}
			}
			out.WriteRune(r)
		default:
			return "", fmt.Errorf("invalid escape sequence: \\%c", s[i])
		}
	}

	return out.String(), nil
}

func (p *Parser) parseString() (*types.ASTNode, error) {
	unescaped, err := unescapeString(p.current.Value)
	if err != nil {
		return nil, p.error(types.ErrInvalidEscape, fmt.Sprintf("invalid string literal: %v", err))
	}
	node := p.alloc(types.NodeString)
	node.Value = unescaped
	node.StrValue = unescaped
	p.advance()
	return node, nil
}

func (p *Parser) parseNumber() (*types.ASTNode, error) {
	val, err := strconv.ParseFloat(p.current.Value, 64)
	if err != nil {
		return nil, p.error(types.ErrNumberOutOfRange, fmt.Sprintf("invalid number: %s", p.current.Value))
	}
	node := p.alloc(types.NodeNumber)
	node.NumValue = val
	node.Value = val
	p.advance()
	return node, nil
}

func (p *Parser) parseBoolean() (*types.ASTNode, error) {
	node := p.alloc(types.NodeBoolean)
	node.Value = p.current.Value == "true"
	p.advance()
	return node, nil
}

func (p *Parser) parseNull() (*types.ASTNode, error) {
	node := p.alloc(types.NodeNull)
	node.Value = types.NullValue
	p.advance()
	return node, nil
}

func (p *Parser) parseName() (*types.ASTNode, error) {
	node := p.alloc(types.NodeName)
	node.StrValue = p.current.Value
	node.Value = p.current.Value
	p.advance()
	return node, nil
}

func (p *Parser) parseNameFromKeyword() (*types.ASTNode, error) {
	node := p.alloc(types.NodeName)
	node.StrValue = p.current.Type.String()
	node.Value = node.StrValue
	p.advance()
	return node, nil
}

func (p *Parser) parseVariable() (*types.ASTNode, error) {
	node := p.alloc(types.NodeVariable)
	node.StrValue = p.current.Value
	node.Value = p.current.Value
	p.advance()
	return node, nil
}

func (p *Parser) parseUnaryMinus() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance()
	expr, err := p.parseExpression(70)
	if err != nil {
		return nil, err
	}
	node := p.arena.Alloc(types.NodeUnary, pos)
	node.StrValue = "-"
	node.LHS = expr
	return node, nil
}

// parseGrouping parses `(e1; e2; ...)`. A lone expression that is not an
// assignment returns directly (pure grouping); everything else establishes
// a block scope, since `:=` must never leak outside its parentheses even
// when there is only one statement.
func (p *Parser) parseGrouping() (*types.ASTNode, error) {
	startPos := p.current.Position
	p.advance()

	if p.current.Type == lexer.TokenParenClose {
		node := p.alloc(types.NodeNull)
		node.Value = types.NullValue
		p.advance()
		return node, nil
	}

	var exprs []*types.ASTNode
	hasSemicolon := false

	for p.current.Type != lexer.TokenParenClose {
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if p.current.Type != lexer.TokenSemicolon {
			break
		}
		hasSemicolon = true
		p.advance()
	}

	if err := p.expect(lexer.TokenParenClose); err != nil {
		return nil, err
	}

	if len(exprs) == 1 && !hasSemicolon && exprs[0].Type != types.NodeBind {
		return exprs[0], nil
	}

	block := p.arena.Alloc(types.NodeBlock, startPos)
	block.Expressions = exprs
	return block, nil
}

func (p *Parser) parseArrayConstructor() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance()

	node := p.arena.Alloc(types.NodeArray, pos)
	node.ConsArray = true

	if p.current.Type == lexer.TokenBracketClose {
		p.advance()
		return node, nil
	}

	for {
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		node.Expressions = append(node.Expressions, expr)

		if p.current.Type == lexer.TokenBracketClose {
			p.advance()
			break
		}
		if err := p.expect(lexer.TokenComma); err != nil {
			return nil, err
		}
	}

	return node, nil
}

func (p *Parser) parseObjectConstructor() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance()

	node := p.arena.Alloc(types.NodeObject, pos)

	if p.current.Type == lexer.TokenBraceClose {
		p.advance()
		return node, nil
	}

	for {
		key, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}
		val, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		node.GroupPairs = append(node.GroupPairs, types.GroupPair{Key: key, Value: val})

		if p.current.Type == lexer.TokenBraceClose {
			p.advance()
			break
		}
		if err := p.expect(lexer.TokenComma); err != nil {
			return nil, err
		}
	}

	return node, nil
}

func (p *Parser) parseObjectConstructorWithLeft(left *types.ASTNode) (*types.ASTNode, error) {
	node, err := p.parseObjectConstructor()
	if err != nil {
		return nil, err
	}
	node.LHS = left
	node.IsGrouping = true
	return node, nil
}

func (p *Parser) parsePath(left *types.ASTNode) (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance()

	right, err := p.parseExpression(precedence[lexer.TokenDot])
	if err != nil {
		return nil, err
	}

	node := p.arena.Alloc(types.NodePath, pos)
	node.LHS = left
	node.RHS = right
	if left.KeepSingleton {
		node.KeepSingleton = true
	}
	return node, nil
}

func (p *Parser) parseDescendent(left *types.ASTNode) (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance()
	if p.current.Type == lexer.TokenDot {
		p.advance()
	}

	right, err := p.parseExpression(precedence[lexer.TokenDescendent])
	if err != nil {
		return nil, err
	}

	node := p.arena.Alloc(types.NodeDescendant, pos)
	node.LHS = left
	node.RHS = right
	if left.KeepSingleton {
		node.KeepSingleton = true
	}
	return node, nil
}

func (p *Parser) parseDescendentPrefix() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance()
	if p.current.Type == lexer.TokenDot {
		p.advance()
	}

	left := p.arena.Alloc(types.NodeVariable, pos)
	left.StrValue = ""
	left.Value = ""

	var right *types.ASTNode
	var err error

	switch p.current.Type {
	case lexer.TokenEOF, lexer.TokenSemicolon, lexer.TokenParenClose,
		lexer.TokenBracketClose, lexer.TokenBracketOpen, lexer.TokenBraceClose,
		lexer.TokenComma, lexer.TokenDot:
		// no right-hand side
	default:
		right, err = p.parseExpression(precedence[lexer.TokenDescendent])
		if err != nil {
			return nil, err
		}
	}

	node := p.arena.Alloc(types.NodeDescendant, pos)
	node.LHS = left
	node.RHS = right
	return node, nil
}

func (p *Parser) parseWildcard() (*types.ASTNode, error) {
	node := p.alloc(types.NodeWildcard)
	p.advance()
	return node, nil
}

// parseFilter parses `step[pred]` (and the empty-brackets `step[]` form)
// into a raw NodeFilter; pkg/rewrite later converts it into NodePredicate.
func (p *Parser) parseFilter(left *types.ASTNode) (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance()

	if p.current.Type == lexer.TokenBracketClose {
		p.advance()
		node := p.arena.Alloc(types.NodeFilter, pos)
		node.LHS = left
		node.KeepSingleton = true
		return node, nil
	}

	filter, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.TokenBracketClose); err != nil {
		return nil, err
	}

	node := p.arena.Alloc(types.NodeFilter, pos)
	node.LHS = left
	node.RHS = filter
	return node, nil
}

func (p *Parser) parseBinaryOp(left *types.ASTNode) (*types.ASTNode, error) {
	op := p.current
	prec := p.getPrecedence(op.Type)
	p.advance()

	right, err := p.parseExpression(prec)
	if err != nil {
		return nil, err
	}

	node := p.arena.Alloc(types.NodeBinary, op.Position)
	node.StrValue = operatorString(op.Type)
	node.Value = node.StrValue
	node.LHS = left
	node.RHS = right
	return node, nil
}

// parseFunctionCall parses `name(args)`. Named calls store the name in
// StrValue for built-in dispatch; every other callable expression (a
// lambda result, a variable, `~>` target, ...) is stored in LHS instead.
// A `?` placeholder argument retypes the node as NodePartial.
func (p *Parser) parseFunctionCall(nameNode *types.ASTNode) (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance()

	node := p.arena.Alloc(types.NodeFunction, pos)
	if nameNode.Type == types.NodeName {
		node.StrValue = nameNode.StrValue
		node.Value = nameNode.StrValue
	} else {
		node.LHS = nameNode
	}

	hasPlaceholder := false

	if p.current.Type != lexer.TokenParenClose {
		for {
			if p.current.Type == lexer.TokenCondition {
				ph := p.alloc(types.NodePlaceholder)
				node.Arguments = append(node.Arguments, ph)
				hasPlaceholder = true
				p.advance()
			} else {
				arg, err := p.parseExpression(0)
				if err != nil {
					return nil, err
				}
				node.Arguments = append(node.Arguments, arg)
			}

			if p.current.Type == lexer.TokenParenClose {
				break
			}
			if err := p.expect(lexer.TokenComma); err != nil {
				return nil, err
			}
		}
	}

	if err := p.expect(lexer.TokenParenClose); err != nil {
		return nil, err
	}

	if hasPlaceholder {
		node.Type = types.NodePartial
	}

	return node, nil
}

func (p *Parser) parseConditional(condition *types.ASTNode) (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance()

	thenExpr, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}

	node := p.arena.Alloc(types.NodeCondition, pos)
	node.LHS = condition
	node.RHS = thenExpr

	if p.current.Type == lexer.TokenColon {
		p.advance()
		elseExpr, err := p.parseExpression(precedence[lexer.TokenCondition] - 1)
		if err != nil {
			return nil, err
		}
		node.Expressions = []*types.ASTNode{elseExpr}
	}

	return node, nil
}

// parseLambda parses `function($a, $b) { body }`. A `<sig>` signature block
// immediately after the parameter list is rejected with S0201
// (ErrSignatureUnsupported), per spec.md §4.2.
func (p *Parser) parseLambda() (*types.ASTNode, error) {
	pos := p.current.Position
	p.advance()

	node := p.arena.Alloc(types.NodeLambda, pos)

	if err := p.expect(lexer.TokenParenOpen); err != nil {
		return nil, err
	}

	if p.current.Type != lexer.TokenParenClose {
		for {
			if p.current.Type != lexer.TokenVariable {
				return nil, p.error(types.ErrBadLambdaParam, "expected variable in lambda parameter list")
			}
			param := p.alloc(types.NodeVariable)
			param.StrValue = p.current.Value
			param.Value = p.current.Value
			node.Arguments = append(node.Arguments, param)
			p.advance()

			if p.current.Type == lexer.TokenParenClose {
				break
			}
			if err := p.expect(lexer.TokenComma); err != nil {
				return nil, err
			}
		}
	}
	p.advance()

	if p.current.Type == lexer.TokenLess {
		return nil, p.error(types.ErrSignatureUnsupported, "function signatures are not supported")
	}

	if err := p.expect(lexer.TokenBraceOpen); err != nil {
		return nil, err
	}

	body, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	node.RHS = body

	if err := p.expect(lexer.TokenBraceClose); err != nil {
		return nil, err
	}

	return node, nil
}

func (p *Parser) parseRange(left *types.ASTNode) (*types.ASTNode, error) {
	pos := p.current.Position
	prec := p.getPrecedence(lexer.TokenRange)
	p.advance()

	right, err := p.parseExpression(prec)
	if err != nil {
		return nil, err
	}

	node := p.arena.Alloc(types.NodeBinary, pos)
	node.StrValue = ".."
	node.Value = ".."
	node.LHS = left
	node.RHS = right
	return node, nil
}

// parseApply parses `expr ~> f`, leaving the chain as nested binary nodes;
// pkg/rewrite flattens it into an ordinary left-associative call chain.
func (p *Parser) parseApply(left *types.ASTNode) (*types.ASTNode, error) {
	pos := p.current.Position
	prec := p.getPrecedence(lexer.TokenApply)
	p.advance()

	right, err := p.parseExpression(prec)
	if err != nil {
		return nil, err
	}

	node := p.arena.Alloc(types.NodeApply, pos)
	node.LHS = left
	node.RHS = right
	return node, nil
}

func (p *Parser) parseAssignment(left *types.ASTNode) (*types.ASTNode, error) {
	if left.Type != types.NodeVariable {
		return nil, p.error(types.ErrBadAssignTarget, "left-hand side of assignment must be a variable")
	}

	pos := p.current.Position
	prec := p.getPrecedence(lexer.TokenAssign)
	p.advance()

	right, err := p.parseExpression(prec - 1)
	if err != nil {
		return nil, err
	}

	node := p.arena.Alloc(types.NodeBind, pos)
	node.StrValue = left.StrValue
	node.Value = left.StrValue
	node.LHS = left
	node.RHS = right
	return node, nil
}

func operatorString(tt lexer.TokenType) string {
	switch tt {
	case lexer.TokenPlus:
		return "+"
	case lexer.TokenMinus:
		return "-"
	case lexer.TokenMult:
		return "*"
	case lexer.TokenDiv:
		return "/"
	case lexer.TokenMod:
		return "%"
	case lexer.TokenEqual:
		return "="
	case lexer.TokenNotEqual:
		return "!="
	case lexer.TokenLess:
		return "<"
	case lexer.TokenLessEqual:
		return "<="
	case lexer.TokenGreater:
		return ">"
	case lexer.TokenGreaterEqual:
		return ">="
	case lexer.TokenConcat:
		return "&"
	case lexer.TokenAnd:
		return "and"
	case lexer.TokenOr:
		return "or"
	case lexer.TokenIn:
		return "in"
	case lexer.TokenCoalesce:
		return "??"
	default:
		return tt.String()
	}
}
