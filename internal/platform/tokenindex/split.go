package tokenindex

import "strings"

// splitOptions splits a raw filter value on commas not preceded by a
// backslash. Escapes are kept so the options can be split again on '|'.
func splitOptions(raw string) []string {
	var out []string
	start := 0
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			i++
		case ',':
			out = append(out, raw[start:i])
			start = i + 1
		}
	}
	return append(out, raw[start:])
}

// splitSystem splits an option on its first unescaped '|'. ok is false when
// the option has no separator.
func splitSystem(option string) (system, value string, ok bool) {
	for i := 0; i < len(option); i++ {
		switch option[i] {
		case '\\':
			i++
		case '|':
			return unescape(option[:i]), unescape(option[i+1:]), true
		}
	}
	return "", unescape(option), false
}

// unescape removes the backslash from \, \| \$ and \\ sequences.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case ',', '|', '$', '\\':
				i++
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// escapeLike escapes the LIKE metacharacters of s using backslash, the
// PostgreSQL default escape character.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
