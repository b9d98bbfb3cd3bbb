package txwire

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// Parse parses a wire-text document and enforces the v1 canonical
// serialization rules. Non-canonical inputs are rejected, never repaired.
func Parse(data []byte) (*Document, error) {
	if !utf8.Valid(data) {
		return nil, newError(KindParse, "TXW-STR-001", "document must be valid UTF-8")
	}
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, newError(KindParse, "TXW-STR-002", "BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, newError(KindParse, "TXW-STR-003", "CR line endings not allowed")
	}
	if len(data) > 0 && data[len(data)-1] == '\n' {
		return nil, newError(KindCanonical, "TXW-CANON-001", "trailing newline not allowed")
	}

	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		if len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
			return nil, newError(KindCanonical, "TXW-CANON-002", "trailing whitespace forbidden")
		}
	}

	docType, err := typeFromPreamble(lines[0])
	if err != nil {
		return nil, err
	}
	order := sectionOrder[docType]
	if lines[len(lines)-1] != postambleFor(docType) {
		return nil, newError(KindParse, "TXW-STR-012", "missing or misplaced postamble")
	}

	sections := make(map[string]Section, len(order))
	i := 1
	for si, name := range order {
		if i >= len(lines)-1 || lines[i] != name {
			return nil, newError(KindCanonical, "TXW-CANON-011", "expected section "+name)
		}
		i++

		pairs := make(map[string]string)
		prevKey := ""
		for i < len(lines)-1 && lines[i] != "" {
			line := lines[i]
			idx := strings.Index(line, ": ")
			if idx <= 0 {
				return nil, newError(KindCanonical, "TXW-CANON-021", "malformed pair in section "+name)
			}
			key, value := line[:idx], line[idx+2:]
			if !isASCII(key) || strings.ContainsAny(key, " \t") {
				return nil, newError(KindCanonical, "TXW-CANON-022", "invalid key in section "+name)
			}
			if value == "" || strings.HasPrefix(value, " ") {
				return nil, newError(KindCanonical, "TXW-CANON-023", "invalid value for key "+key)
			}
			if prevKey != "" && !(prevKey < key) {
				if prevKey == key {
					return nil, newError(KindCanonical, "TXW-CANON-024", "duplicate key "+key)
				}
				return nil, newError(KindCanonical, "TXW-CANON-025", "keys not sorted lexicographically")
			}
			pairs[key] = value
			prevKey = key
			i++
		}
		sections[name] = Section{Name: name, Pairs: pairs}

		last := si == len(order)-1
		if last {
			if i != len(lines)-1 {
				return nil, newError(KindCanonical, "TXW-CANON-031", "unexpected content after last section")
			}
		} else {
			if i >= len(lines)-1 || lines[i] != "" {
				return nil, newError(KindCanonical, "TXW-CANON-032", "sections must be separated by one blank line")
			}
			i++
		}
	}

	raw := make([]byte, len(data))
	copy(raw, data)
	return &Document{Type: docType, Sections: sections, raw: raw}, nil
}

func typeFromPreamble(line string) (string, error) {
	for docType := range sectionOrder {
		if line == preambleFor(docType) {
			return docType, nil
		}
	}
	return "", newError(KindParse, "TXW-STR-011", "missing or unknown preamble")
}
