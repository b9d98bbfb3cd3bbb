package txwire

import (
	"sort"
	"strings"
)

// Render produces canonical wire bytes from a Document.
//
// Rendered bytes are always canonical (section order, key order, spacing and
// blank lines); Render(Parse(b)) reproduces b exactly for canonical input.
func Render(doc Document) ([]byte, error) {
	order, ok := sectionOrder[doc.Type]
	if !ok {
		return nil, newError(KindRender, "TXW-RND-001", "unknown document type")
	}
	for name := range doc.Sections {
		known := false
		for _, n := range order {
			if n == name {
				known = true
				break
			}
		}
		if !known {
			return nil, newError(KindRender, "TXW-RND-002", "unknown section "+name)
		}
	}

	var sb strings.Builder
	sb.WriteString(preambleFor(doc.Type))
	sb.WriteString("\n")

	for i, name := range order {
		sb.WriteString(name)
		sb.WriteString("\n")

		pairs := doc.Sections[name].Pairs
		keys := make([]string, 0, len(pairs))
		for k := range pairs {
			if k == "" {
				return nil, newError(KindRender, "TXW-RND-011", "empty key in section "+name)
			}
			if !isASCII(k) {
				return nil, newError(KindRender, "TXW-RND-012", "non-ASCII key in section "+name)
			}
			if strings.ContainsAny(k, ":\n\r \t") {
				return nil, newError(KindRender, "TXW-RND-013", "key contains forbidden characters")
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := pairs[k]
			if v == "" {
				return nil, newError(KindRender, "TXW-RND-021", "empty value for key "+k)
			}
			if strings.HasPrefix(v, " ") {
				return nil, newError(KindRender, "TXW-RND-022", "value must not start with a space")
			}
			if strings.ContainsAny(v, "\n\r") {
				return nil, newError(KindRender, "TXW-RND-023", "value must not contain newlines")
			}
			if strings.HasSuffix(v, " ") || strings.HasSuffix(v, "\t") {
				return nil, newError(KindRender, "TXW-RND-024", "trailing whitespace forbidden")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteString("\n")
		}

		if i != len(order)-1 {
			sb.WriteString("\n")
		}
	}

	sb.WriteString(postambleFor(doc.Type))
	return []byte(sb.String()), nil
}
