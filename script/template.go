package script

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Template evaluates every ${expr} segment of s and returns the resulting text.
// A backslash escapes the next character, so \${ is a literal "${".
func (r *Resolver) Template(s string) (string, error) {
	var (
		sb strings.Builder
		i  int
	)
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\':
			if i+1 >= len(s) {
				return "", fmt.Errorf("%w: trailing escape", ErrTemplate)
			}
			sb.WriteByte(s[i+1])
			i += 2
		case c == '$' && i+1 < len(s) && s[i+1] == '{':
			end, err := closingBrace(s, i+2)
			if err != nil {
				return "", err
			}
			code := strings.TrimSpace(s[i+2 : end])
			if code == "" {
				return "", fmt.Errorf("%w: empty expression at offset %d", ErrTemplate, i)
			}
			v, err := r.Eval(code)
			if err != nil {
				return "", fmt.Errorf("%w: %w", ErrTemplate, err)
			}
			sb.WriteString(Format(v))
			i = end + 1
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), nil
}

// closingBrace finds the brace closing an expression opened just before
// start. Braces inside quoted strings do not count.
func closingBrace(s string, start int) (int, error) {
	depth := 0
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i, nil
			}
			depth--
		}
	}
	return 0, fmt.Errorf("%w: unterminated expression at offset %d", ErrTemplate, start-2)
}

// Format renders an evaluated value as text. nil renders empty, maps and
// slices render as JSON.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
