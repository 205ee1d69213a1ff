package flags

import "strings"

// definePrefix is the preprocessor prefix users often paste along with a flag.
const definePrefix = "-D"

// ParseCustom splits free-form flag text on runs of whitespace and strips an
// optional leading -D from each token. Empty tokens are dropped.
func ParseCustom(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimPrefix(f, definePrefix)
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Name returns the flag name of a NAME=value definition: everything before
// the first '='. A definition without '=' is its own name.
func Name(def string) string {
	if i := strings.IndexByte(def, '='); i >= 0 {
		return def[:i]
	}
	return def
}
