package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teflow/teflow/internal/policy/eval"
)

// Compiler parses the compact type-enforcement policy text format into a
// Policy. The format covers what the analysis needs and nothing more:
//
//	bool secure_mode true;
//	attribute domain;
//	type init_t, domain;
//	typeattribute init_t domain;
//	allow init_t etc_t : file { read getattr };
//	if (secure_mode) { allow a b : file read; } else { allow b a : file write; }
//
// '#' starts a comment running to end of line. Conditional blocks may
// not nest; else-branch rules carry the negated condition.
type Compiler struct{}

func NewCompiler() *Compiler { return &Compiler{} }

func (c *Compiler) Compile(src string) (*Policy, error) {
	p := &parser{
		lex: newLexer(src),
		policy: &Policy{
			Types:      map[string]*Type{},
			Attributes: map[string][]string{},
			Booleans:   map[string]bool{},
		},
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.policy, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokPunct
)

type token struct {
	kind tokKind
	text string
	line int
}

type lexer struct {
	src  string
	pos  int
	line int
}

func newLexer(src string) *lexer { return &lexer{src: src, line: 1} }

func (l *lexer) next() token {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line}
	}
	ch := l.src[l.pos]
	if isIdentStart(ch) {
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], line: l.line}
	}
	l.pos++
	return token{kind: tokPunct, text: string(ch), line: l.line}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\n':
			l.line++
			l.pos++
		case ' ', '\t', '\r':
			l.pos++
		case '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

// rawCondition consumes source text up to the parenthesis closing the
// condition opened by the current "(" token, keeping nested parens.
func (l *lexer) rawCondition() (string, error) {
	depth := 1
	start := l.pos
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				cond := l.src[start:l.pos]
				l.pos++
				return cond, nil
			}
		case '\n':
			l.line++
		}
		l.pos++
	}
	return "", fmt.Errorf("line %d: unterminated condition", l.line)
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

type condSite struct {
	expr string
	line int
}

type membership struct {
	typeName string
	attr     string
	line     int
}

type ruleRef struct {
	name string
	line int
}

type parser struct {
	lex    *lexer
	tok    token
	policy *Policy

	memberships []membership
	refs        []ruleRef
	conds       []condSite
}

func (p *parser) run() error {
	p.advance()
	for p.tok.kind != tokEOF {
		if err := p.statement(); err != nil {
			return err
		}
	}
	return p.finish()
}

func (p *parser) advance() { p.tok = p.lex.next() }

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.tok.line, fmt.Sprintf(format, args...))
}

func (p *parser) isPunct(s string) bool {
	return p.tok.kind == tokPunct && p.tok.text == s
}

func (p *parser) expect(s string) error {
	if !p.isPunct(s) {
		return p.errorf("expected %q, found %q", s, p.tok.text)
	}
	p.advance()
	return nil
}

func (p *parser) ident() (string, error) {
	if p.tok.kind != tokIdent {
		return "", p.errorf("expected identifier, found %q", p.tok.text)
	}
	name := p.tok.text
	p.advance()
	return name, nil
}

func (p *parser) statement() error {
	if p.tok.kind != tokIdent {
		return p.errorf("unexpected %q", p.tok.text)
	}
	switch p.tok.text {
	case "bool":
		return p.boolStmt()
	case "attribute":
		return p.attributeStmt()
	case "type":
		return p.typeStmt()
	case "typeattribute":
		return p.typeattributeStmt()
	case "allow":
		return p.allowStmt("")
	case "if":
		return p.condBlock()
	default:
		return p.errorf("unknown statement %q", p.tok.text)
	}
}

func (p *parser) boolStmt() error {
	p.advance()
	name, err := p.ident()
	if err != nil {
		return err
	}
	value, err := p.ident()
	if err != nil {
		return err
	}
	var def bool
	switch value {
	case "true":
		def = true
	case "false":
		def = false
	default:
		return p.errorf("boolean %q default must be true or false, found %q", name, value)
	}
	if err := p.expect(";"); err != nil {
		return err
	}
	if _, dup := p.policy.Booleans[name]; dup {
		return fmt.Errorf("boolean %q redeclared", name)
	}
	p.policy.Booleans[name] = def
	return nil
}

func (p *parser) attributeStmt() error {
	p.advance()
	name, err := p.ident()
	if err != nil {
		return err
	}
	if err := p.expect(";"); err != nil {
		return err
	}
	if err := p.checkFreshName(name); err != nil {
		return err
	}
	p.policy.Attributes[name] = nil
	return nil
}

func (p *parser) typeStmt() error {
	p.advance()
	line := p.tok.line
	name, err := p.ident()
	if err != nil {
		return err
	}
	if err := p.checkFreshName(name); err != nil {
		return err
	}
	p.policy.Types[name] = &Type{Name: name}
	for p.isPunct(",") {
		p.advance()
		attr, err := p.ident()
		if err != nil {
			return err
		}
		p.memberships = append(p.memberships, membership{typeName: name, attr: attr, line: line})
	}
	return p.expect(";")
}

func (p *parser) typeattributeStmt() error {
	p.advance()
	line := p.tok.line
	name, err := p.ident()
	if err != nil {
		return err
	}
	if _, ok := p.policy.Types[name]; !ok {
		return fmt.Errorf("line %d: typeattribute on undeclared type %q", line, name)
	}
	count := 0
	for p.tok.kind == tokIdent {
		attr, err := p.ident()
		if err != nil {
			return err
		}
		p.memberships = append(p.memberships, membership{typeName: name, attr: attr, line: line})
		count++
	}
	if count == 0 {
		return fmt.Errorf("line %d: typeattribute %q names no attributes", line, name)
	}
	return p.expect(";")
}

func (p *parser) allowStmt(cond string) error {
	line := p.tok.line
	p.advance()
	src, err := p.ident()
	if err != nil {
		return err
	}
	tgt, err := p.ident()
	if err != nil {
		return err
	}
	if err := p.expect(":"); err != nil {
		return err
	}
	class, err := p.ident()
	if err != nil {
		return err
	}
	var perms []string
	if p.isPunct("{") {
		p.advance()
		for p.tok.kind == tokIdent {
			perms = append(perms, p.tok.text)
			p.advance()
		}
		if err := p.expect("}"); err != nil {
			return err
		}
		if len(perms) == 0 {
			return fmt.Errorf("line %d: empty permission set", line)
		}
	} else {
		perm, err := p.ident()
		if err != nil {
			return err
		}
		perms = []string{perm}
	}
	if err := p.expect(";"); err != nil {
		return err
	}
	p.policy.Rules = append(p.policy.Rules, AllowRule{
		Source:      src,
		Target:      tgt,
		Class:       class,
		Perms:       perms,
		Conditional: cond,
	})
	p.refs = append(p.refs, ruleRef{name: src, line: line}, ruleRef{name: tgt, line: line})
	return nil
}

func (p *parser) condBlock() error {
	line := p.tok.line
	p.advance()
	if !p.isPunct("(") {
		return p.errorf("expected ( after if")
	}
	cond, err := p.lex.rawCondition()
	if err != nil {
		return err
	}
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return fmt.Errorf("line %d: empty condition", line)
	}
	p.conds = append(p.conds, condSite{expr: cond, line: line})
	p.advance()
	if err := p.condBranch(cond); err != nil {
		return err
	}
	if p.tok.kind == tokIdent && p.tok.text == "else" {
		p.advance()
		if err := p.condBranch("!(" + cond + ")"); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) condBranch(cond string) error {
	if err := p.expect("{"); err != nil {
		return err
	}
	for !p.isPunct("}") {
		if p.tok.kind == tokEOF {
			return p.errorf("unterminated conditional block")
		}
		if p.tok.kind != tokIdent || p.tok.text != "allow" {
			if p.tok.kind == tokIdent && p.tok.text == "if" {
				return p.errorf("nested conditional blocks are not supported")
			}
			return p.errorf("only allow rules may appear in a conditional block, found %q", p.tok.text)
		}
		if err := p.allowStmt(cond); err != nil {
			return err
		}
	}
	p.advance()
	return nil
}

func (p *parser) checkFreshName(name string) error {
	if _, dup := p.policy.Types[name]; dup {
		return fmt.Errorf("type %q redeclared", name)
	}
	if _, dup := p.policy.Attributes[name]; dup {
		return fmt.Errorf("%q redeclared (types and attributes share a namespace)", name)
	}
	return nil
}

// finish resolves memberships and validates the cross references that
// could not be checked while statements were still arriving: attribute
// memberships, rule operands and conditional expressions.
func (p *parser) finish() error {
	for _, m := range p.memberships {
		if _, ok := p.policy.Attributes[m.attr]; !ok {
			return fmt.Errorf("line %d: unknown attribute %q", m.line, m.attr)
		}
	}

	members := map[string]map[string]struct{}{}
	for _, m := range p.memberships {
		if members[m.attr] == nil {
			members[m.attr] = map[string]struct{}{}
		}
		if _, dup := members[m.attr][m.typeName]; dup {
			continue
		}
		members[m.attr][m.typeName] = struct{}{}
		p.policy.Attributes[m.attr] = append(p.policy.Attributes[m.attr], m.typeName)
		t := p.policy.Types[m.typeName]
		t.Attributes = append(t.Attributes, m.attr)
	}
	for attr := range p.policy.Attributes {
		sort.Strings(p.policy.Attributes[attr])
	}
	for _, t := range p.policy.Types {
		sort.Strings(t.Attributes)
	}

	for _, ref := range p.refs {
		if _, ok := p.policy.Types[ref.name]; ok {
			continue
		}
		if _, ok := p.policy.Attributes[ref.name]; ok {
			continue
		}
		return fmt.Errorf("line %d: allow rule references unknown type or attribute %q", ref.line, ref.name)
	}

	for _, c := range p.conds {
		if _, err := eval.Compile(c.expr, p.policy.Booleans); err != nil {
			return fmt.Errorf("line %d: invalid condition %q: %w", c.line, c.expr, err)
		}
	}

	return nil
}
