package fuzz

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// 不变量表达式求值器
// 支持的语法：变量名、数字常量、加减法、比较运算（> < >= <= == !=）、
// and/or 逻辑组合与括号。表达式中的变量取自状态存储与余额。

type exprToken struct {
	kind  string // name / number / op / lparen / rparen
	value string
}

// tokenizeExpr 把表达式切分为token序列
func tokenizeExpr(expr string) ([]exprToken, error) {
	var tokens []exprToken
	runes := []rune(expr)
	i := 0
	for i < len(runes) {
		ch := runes[i]
		switch {
		case unicode.IsSpace(ch):
			i++
		case ch == '(':
			tokens = append(tokens, exprToken{kind: "lparen"})
			i++
		case ch == ')':
			tokens = append(tokens, exprToken{kind: "rparen"})
			i++
		case ch == '+' || ch == '-':
			tokens = append(tokens, exprToken{kind: "op", value: string(ch)})
			i++
		case ch == '>' || ch == '<' || ch == '=' || ch == '!':
			op := string(ch)
			if i+1 < len(runes) && runes[i+1] == '=' {
				op += "="
				i++
			}
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("invalid operator %q in expression", op)
			}
			if op == "==" || op == "!=" || op == ">" || op == "<" || op == ">=" || op == "<=" {
				tokens = append(tokens, exprToken{kind: "op", value: op})
			}
			i++
		case unicode.IsDigit(ch):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, exprToken{kind: "number", value: string(runes[i:j])})
			i = j
		case unicode.IsLetter(ch) || ch == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			word := string(runes[i:j])
			lower := strings.ToLower(word)
			if lower == "and" || lower == "or" {
				tokens = append(tokens, exprToken{kind: "op", value: lower})
			} else {
				tokens = append(tokens, exprToken{kind: "name", value: word})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q in expression", ch)
		}
	}
	return tokens, nil
}

// exprParser 递归下降解析并直接求值
type exprParser struct {
	tokens []exprToken
	pos    int
	vars   map[string]float64
}

// EvalExpr 对表达式求布尔值
// 缺失的变量按0处理，与状态模型里未初始化的存储槽语义一致
func EvalExpr(expr string, vars map[string]float64) (bool, error) {
	tokens, err := tokenizeExpr(expr)
	if err != nil {
		return false, err
	}
	p := &exprParser{tokens: tokens, vars: vars}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos != len(p.tokens) {
		return false, fmt.Errorf("unexpected trailing tokens in expression %q", expr)
	}
	return result != 0, nil
}

func (p *exprParser) peek() (exprToken, bool) {
	if p.pos >= len(p.tokens) {
		return exprToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *exprParser) parseOr() (float64, error) {
	left, err := p.parseAnd()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != "op" || tok.value != "or" {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return 0, err
		}
		if left != 0 || right != 0 {
			left = 1
		} else {
			left = 0
		}
	}
}

func (p *exprParser) parseAnd() (float64, error) {
	left, err := p.parseComparison()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != "op" || tok.value != "and" {
			return left, nil
		}
		p.pos++
		right, err := p.parseComparison()
		if err != nil {
			return 0, err
		}
		if left != 0 && right != 0 {
			left = 1
		} else {
			left = 0
		}
	}
}

// parseComparison 支持Python风格的链式比较 a < b < c
func (p *exprParser) parseComparison() (float64, error) {
	left, err := p.parseSum()
	if err != nil {
		return 0, err
	}

	compared := false
	holds := true
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != "op" || !isComparisonOp(tok.value) {
			break
		}
		p.pos++
		right, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		compared = true
		if !compare(tok.value, left, right) {
			holds = false
		}
		left = right
	}

	if !compared {
		return left, nil
	}
	if holds {
		return 1, nil
	}
	return 0, nil
}

func (p *exprParser) parseSum() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != "op" || (tok.value != "+" && tok.value != "-") {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if tok.value == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	tok, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	switch tok.kind {
	case "number":
		p.pos++
		v, err := strconv.ParseFloat(tok.value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", tok.value)
		}
		return v, nil
	case "name":
		p.pos++
		return p.vars[tok.value], nil
	case "lparen":
		p.pos++
		v, err := p.parseOr()
		if err != nil {
			return 0, err
		}
		next, ok := p.peek()
		if !ok || next.kind != "rparen" {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected token %q", tok.value)
	}
}

func isComparisonOp(op string) bool {
	switch op {
	case ">", "<", ">=", "<=", "==", "!=":
		return true
	}
	return false
}

func compare(op string, left, right float64) bool {
	switch op {
	case ">":
		return left > right
	case "<":
		return left < right
	case ">=":
		return left >= right
	case "<=":
		return left <= right
	case "==":
		return left == right
	case "!=":
		return left != right
	}
	return false
}
