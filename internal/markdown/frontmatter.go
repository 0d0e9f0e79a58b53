package markdown

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

var delimiter = []byte("---")

// SplitFrontMatter separates a leading YAML block delimited by "---" lines
// from the document body. Without a well-formed block it returns nil and the
// source unchanged.
func SplitFrontMatter(source []byte) (map[string]any, []byte) {
	if !bytes.HasPrefix(source, delimiter) {
		return nil, source
	}
	first := bytes.IndexByte(source, '\n')
	if first < 0 || len(bytes.TrimSpace(source[:first])) != len(delimiter) {
		return nil, source
	}

	rest := source[first+1:]
	offset := 0
	for offset <= len(rest) {
		line := rest[offset:]
		next := bytes.IndexByte(line, '\n')
		if next >= 0 {
			line = line[:next]
		}
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), delimiter) {
			block := rest[:offset]
			body := []byte{}
			if next >= 0 {
				body = rest[offset+next+1:]
			}
			fm := map[string]any{}
			if err := yaml.Unmarshal(block, &fm); err != nil {
				return nil, source
			}
			return fm, body
		}
		if next < 0 {
			break
		}
		offset += next + 1
	}
	return nil, source
}

// IsVisible reports the "visible" and "approved" publishing flags. Missing
// flags count as true.
func IsVisible(fm map[string]any) (visible, approved bool) {
	visible, approved = true, true
	if v, ok := fm["visible"].(bool); ok {
		visible = v
	}
	if v, ok := fm["approved"].(bool); ok {
		approved = v
	}
	return visible, approved
}
