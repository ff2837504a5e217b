package pipeline

import (
	"encoding/json"
	"strings"

	"autoscapeAi/internal/design"
)

// ExtractManifest recovers the design manifest from free text accompanying a
// generated image. The generation channel was never designed to return
// structured data reliably, so this is best effort: the first balanced
// {...} block that unmarshals wins, and any failure yields nil.
func ExtractManifest(text string) *design.Manifest {
	for offset := 0; offset < len(text); {
		start := strings.Index(text[offset:], "{")
		if start < 0 {
			return nil
		}
		start += offset

		end := matchBrace(text, start)
		if end < 0 {
			return nil
		}

		var manifest design.Manifest
		if err := json.Unmarshal([]byte(text[start:end+1]), &manifest); err == nil && !manifestEmpty(manifest) {
			return &manifest
		}
		offset = start + 1
	}
	return nil
}

// matchBrace returns the index of the brace closing the block opened at
// start, or -1 when the block never closes. String literals are skipped so
// braces inside JSON values do not confuse the depth count.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func manifestEmpty(m design.Manifest) bool {
	return len(m.Plants) == 0 && len(m.Hardscape) == 0 && len(m.Features) == 0 &&
		len(m.Structures) == 0 && len(m.Furniture) == 0
}
