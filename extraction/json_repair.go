// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package extraction

import "strings"

// stripFences removes a surrounding markdown code fence, with or without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// outermostObject cuts any prose before the first '{' and after the last '}'.
// Returns s unchanged when it holds no object at all.
func outermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// repairJSON fixes two formatting slips small models make: a key that lost its opening
// quote (`, title": "x"`) and a trailing comma before a closing bracket. Text inside
// string literals is never touched.
func repairJSON(s string) string {
	return dropTrailingCommas(quoteBareKeys(s))
}

func quoteBareKeys(s string) string {
	src := []rune(s)
	fixed := make([]rune, 0, len(src)+16)

	inString := false
	for i := 0; i < len(src); {
		ch := src[i]
		if inString {
			fixed = append(fixed, ch)
			if ch == '\\' && i+1 < len(src) {
				fixed = append(fixed, src[i+1])
				i += 2
				continue
			}
			if ch == '"' {
				inString = false
			}
			i++
			continue
		}
		if ch == '"' {
			inString = true
			fixed = append(fixed, ch)
			i++
			continue
		}
		if ch != '{' && ch != ',' {
			fixed = append(fixed, ch)
			i++
			continue
		}

		fixed = append(fixed, ch)
		i++
		for i < len(src) && isSpace(src[i]) {
			fixed = append(fixed, src[i])
			i++
		}
		if i >= len(src) || !isLetter(src[i]) {
			continue
		}

		keyStart := i
		for i < len(src) && (isLetter(src[i]) || src[i] == '_' || isDigit(src[i])) {
			i++
		}
		if i+1 < len(src) && src[i] == '"' && src[i+1] == ':' {
			// The closing quote is already there; it opens no string.
			fixed = append(fixed, '"')
			fixed = append(fixed, src[keyStart:i]...)
			fixed = append(fixed, '"')
			i++
			continue
		}
		fixed = append(fixed, src[keyStart:i]...)
	}
	return string(fixed)
}

func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	pendingComma := -1
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case ',':
			pendingComma = b.Len()
			b.WriteByte(ch)
			continue
		case '}', ']':
			if pendingComma >= 0 {
				trimmed := b.String()
				b.Reset()
				b.WriteString(trimmed[:pendingComma])
				b.WriteString(trimmed[pendingComma+1:])
			}
		case ' ', '\n', '\t', '\r':
			b.WriteByte(ch)
			continue
		case '"':
			inString = true
		}
		pendingComma = -1
		b.WriteByte(ch)
	}
	return b.String()
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
