package markdown

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

const fmDelim = "---"

// splitFrontMatter separates a leading YAML block (between --- fences) from
// the Markdown body. A fence line is exactly --- plus optional trailing
// whitespace. ok is false when the source has no complete block, in which
// case body is the whole source.
func splitFrontMatter(src []byte) (raw string, body []byte, ok bool) {
	trimmed := bytes.TrimLeft(src, "\n\r")

	first, rest, found := bytes.Cut(trimmed, []byte("\n"))
	if !found || !isFence(first) {
		return "", src, false
	}

	for offset := 0; offset <= len(rest); {
		line, next, more := bytes.Cut(rest[offset:], []byte("\n"))
		if isFence(line) {
			block := bytes.TrimSuffix(rest[:offset], []byte("\n"))
			return string(block), bytes.TrimLeft(next, " \t\r\n"), true
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	return "", src, false
}

func isFence(line []byte) bool {
	return string(bytes.TrimRight(line, " \t\r")) == fmDelim
}

// DecodeFrontMatter decodes a raw YAML block into a mapping. Blocks that are
// not a YAML mapping are rejected.
func DecodeFrontMatter(raw string) (map[string]any, error) {
	var out map[string]any
	if err := yaml.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("markdown: decode front matter: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
