// Package score 提供基金打分表达式的解析与求值.
// 表达式是封闭指标集合上的加权和, 例如 "0.6*alpha + 0.4*info_ratio - 0.1*fee_rate",
// 解析为项列表后求值, 不执行任何动态代码.
package score

import (
	"fmt"
	"strconv"
	"strings"
)

// 可用指标集合, 表达式只能引用这里列出的名字
var knownMetrics = map[string]bool{
	"alpha":      true,
	"beta":       true,
	"fee_rate":   true,
	"track_err":  true,
	"info_ratio": true,
	"treynor":    true,
	"mdd":        true,
	"scale":      true,
}

// Term 加权和中的一项
type Term struct {
	Coef   float64
	Metric string
}

// Func 解析后的打分函数
type Func struct {
	Expr  string
	Terms []Term
}

// Parse 解析打分表达式. 语法: term (('+'|'-') term)*, term = number '*' ident | ident
func Parse(expr string) (*Func, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty score expression")
	}

	f := &Func{Expr: expr}
	sign := 1.0
	i := 0
	for i < len(toks) {
		// 可选的前导符号
		if toks[i] == "+" || toks[i] == "-" {
			if toks[i] == "-" {
				sign = -sign
			}
			i++
			continue
		}

		term := Term{Coef: sign}
		sign = 1.0
		if v, err := strconv.ParseFloat(toks[i], 64); err == nil {
			term.Coef *= v
			i++
			if i >= len(toks) || toks[i] != "*" {
				return nil, fmt.Errorf("expect '*' after coefficient in %q", expr)
			}
			i++
			if i >= len(toks) {
				return nil, fmt.Errorf("expect metric name after '*' in %q", expr)
			}
		}
		name := toks[i]
		if !knownMetrics[name] {
			return nil, fmt.Errorf("unknown metric %q in score expression %q", name, expr)
		}
		term.Metric = name
		f.Terms = append(f.Terms, term)
		i++

		if i < len(toks) {
			switch toks[i] {
			case "+":
				sign = 1.0
			case "-":
				sign = -1.0
			default:
				return nil, fmt.Errorf("unexpected token %q in score expression %q", toks[i], expr)
			}
			i++
			if i >= len(toks) {
				return nil, fmt.Errorf("dangling operator in score expression %q", expr)
			}
		}
	}
	return f, nil
}

// MustParse 解析失败时 panic, 仅用于测试与常量表达式
func MustParse(expr string) *Func {
	f, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return f
}

// Evaluate 对单只基金的指标求值. 任一引用的指标缺失时返回 ok=false (基金不可选)
func (f *Func) Evaluate(metrics map[string]float64) (float64, bool) {
	sum := 0.0
	for _, t := range f.Terms {
		v, ok := metrics[t.Metric]
		if !ok {
			return 0, false
		}
		sum += t.Coef * v
	}
	return sum, true
}

// Metrics 表达式引用到的指标名
func (f *Func) Metrics() []string {
	out := make([]string, 0, len(f.Terms))
	for _, t := range f.Terms {
		out = append(out, t.Metric)
	}
	return out
}

func tokenize(expr string) ([]string, error) {
	var toks []string
	s := strings.TrimSpace(expr)
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '+' || c == '-' || c == '*':
			toks = append(toks, string(c))
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		case c >= 'a' && c <= 'z' || c == '_':
			j := i
			for j < len(s) && (s[j] >= 'a' && s[j] <= 'z' || s[j] == '_') {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			return nil, fmt.Errorf("illegal character %q in score expression %q", c, expr)
		}
	}
	return toks, nil
}
