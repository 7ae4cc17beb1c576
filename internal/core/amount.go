// Package core provides the domain types of the bulk-edit save flow.
//
// This file parses the amounts users type into grid cells. A cell may hold
// a plain number ("1500", "1,500.25", "£250") or a small arithmetic
// expression ("=1000+500", "3*(200-50)").
package core

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// EvaluateAmount converts cell text to cents.
//
// It accepts an optional leading "=", the operators + - * / and
// parentheses. Commas are digit grouping ("1,500.25") and a leading "£" on
// a number is ignored. The result is rounded half away from zero to the
// cent. The sign is kept; whether a negative amount suits the activity type
// is for the backend to decide.
//
// Examples:
//
//	EvaluateAmount("12.34")      -> 1234
//	EvaluateAmount("1,234.565")  -> 123457
//	EvaluateAmount("=100+50*2")  -> 20000
//	EvaluateAmount("(10-4)/4")   -> 150
func EvaluateAmount(s string) (Money, error) {
	src := strings.TrimSpace(s)
	src = strings.TrimPrefix(src, "=")
	if strings.TrimSpace(src) == "" {
		return Money{}, ErrEmptyValue
	}

	p := &amountParser{src: []rune(src)}
	val, err := p.expr()
	if err != nil {
		return Money{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return Money{}, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidAmount, p.src[p.pos], p.pos)
	}
	cents, ok := toCents(val)
	if !ok {
		return Money{}, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return Money{Cents: cents}, nil
}

type amountParser struct {
	src []rune
	pos int
}

func (p *amountParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *amountParser) peek() rune {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// expr := term (('+' | '-') term)*
func (p *amountParser) expr() (*big.Rat, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		if op == '+' {
			left = new(big.Rat).Add(left, right)
		} else {
			left = new(big.Rat).Sub(left, right)
		}
	}
}

// term := factor (('*' | '/') factor)*
func (p *amountParser) term() (*big.Rat, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		if op == '*' {
			left = new(big.Rat).Mul(left, right)
			continue
		}
		if right.Sign() == 0 {
			return nil, ErrDivisionByZero
		}
		left = new(big.Rat).Quo(left, right)
	}
}

// factor := ('+' | '-') factor | '(' expr ')' | number
func (p *amountParser) factor() (*big.Rat, error) {
	switch p.peek() {
	case '+':
		p.pos++
		return p.factor()
	case '-':
		p.pos++
		v, err := p.factor()
		if err != nil {
			return nil, err
		}
		return new(big.Rat).Neg(v), nil
	case '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidAmount)
		}
		p.pos++
		return v, nil
	case 0:
		return nil, fmt.Errorf("%w: unexpected end of input", ErrInvalidAmount)
	}
	return p.number()
}

func (p *amountParser) number() (*big.Rat, error) {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '£' {
		p.pos++
	}

	var b strings.Builder
	seenPoint := false
scan:
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ',':
			// digit grouping
		case r == '.':
			if seenPoint {
				return nil, fmt.Errorf("%w: more than one decimal point", ErrInvalidAmount)
			}
			seenPoint = true
			b.WriteRune('.')
		default:
			break scan
		}
		p.pos++
	}
	lit := b.String()
	if lit == "" || lit == "." {
		if p.pos < len(p.src) {
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidAmount, p.src[p.pos], p.pos)
		}
		return nil, fmt.Errorf("%w: expected a number", ErrInvalidAmount)
	}
	if strings.HasPrefix(lit, ".") {
		lit = "0" + lit
	}
	lit = strings.TrimSuffix(lit, ".")

	v, ok := new(big.Rat).SetString(lit)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, lit)
	}
	return v, nil
}

// toCents rounds an amount half away from zero to whole cents.
func toCents(v *big.Rat) (int64, bool) {
	scaled := new(big.Rat).Mul(v, big.NewRat(100, 1))
	num := new(big.Int).Abs(scaled.Num())
	q, r := new(big.Int).QuoRem(num, scaled.Denom(), new(big.Int))
	if new(big.Int).Mul(r, big.NewInt(2)).Cmp(scaled.Denom()) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if scaled.Sign() < 0 {
		q.Neg(q)
	}
	if !q.IsInt64() {
		return 0, false
	}
	return q.Int64(), true
}
