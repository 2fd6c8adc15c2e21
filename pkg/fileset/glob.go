// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package fileset

import (
	"path/filepath"
	"strings"
)

// MatchPattern reports whether the slash-separated relative path matches an
// include pattern. Matching is anchored at the source root:
//   - * : any sequence of non-separator characters
//   - ** : any sequence including separators (any depth, possibly empty)
//   - ? : a single non-separator character
//   - [abc], [a-z], [!abc], [^abc] : character classes
//
// "**/*.csv" therefore matches both "a.csv" and "x/y/a.csv", while "*.csv"
// only matches files directly under the root.
func MatchPattern(relPath, pattern string) bool {
	if pattern == "" {
		return false
	}
	return matchFrom(filepath.ToSlash(relPath), filepath.ToSlash(pattern))
}

// excluded reports whether relPath matches any exclude glob. Exclude globs
// are unanchored: "node_modules/**" also drops "a/node_modules/x.csv" and a
// literal name matches any path component.
func excluded(relPath string, globs []string) bool {
	p := filepath.ToSlash(relPath)
	for _, g := range globs {
		if g == "" {
			continue
		}
		if matchAnywhere(p, filepath.ToSlash(g)) {
			return true
		}
	}
	return false
}

func matchAnywhere(path, pattern string) bool {
	dirPrefix, isDirGlob := strings.CutSuffix(pattern, "/**")
	start := 0
	for {
		sub := path[start:]
		if isDirGlob && sub == dirPrefix {
			return true
		}
		if matchFrom(sub, pattern) {
			return true
		}
		next := strings.IndexByte(sub, '/')
		if next < 0 {
			return false
		}
		start += next + 1
	}
}

// matchFrom matches path against pattern starting at the beginning of both.
func matchFrom(path, pat string) bool {
	for len(pat) > 0 {
		switch {
		case strings.HasPrefix(pat, "**"):
			rest := pat[2:]
			segmented := strings.HasPrefix(rest, "/")
			rest = strings.TrimPrefix(rest, "/")
			if rest == "" {
				return true
			}
			for i := 0; i <= len(path); i++ {
				if segmented && i > 0 && path[i-1] != '/' {
					continue
				}
				if matchFrom(path[i:], rest) {
					return true
				}
			}
			return false

		case pat[0] == '*':
			rest := pat[1:]
			for i := 0; i <= len(path); i++ {
				if matchFrom(path[i:], rest) {
					return true
				}
				if i < len(path) && path[i] == '/' {
					return false
				}
			}
			return false

		case pat[0] == '?':
			if path == "" || path[0] == '/' {
				return false
			}
			path, pat = path[1:], pat[1:]

		case pat[0] == '[':
			end := classEnd(pat)
			if end < 0 {
				// Unterminated class: treat '[' literally.
				if path == "" || path[0] != '[' {
					return false
				}
				path, pat = path[1:], pat[1:]
				continue
			}
			if path == "" || path[0] == '/' || !matchClass(path[0], pat[1:end]) {
				return false
			}
			path, pat = path[1:], pat[end+1:]

		default:
			if path == "" || path[0] != pat[0] {
				return false
			}
			path, pat = path[1:], pat[1:]
		}
	}
	return path == ""
}

// classEnd returns the index of the ']' closing the class that opens pat, or -1.
func classEnd(pat string) int {
	i := 1
	if i < len(pat) && (pat[i] == '!' || pat[i] == '^') {
		i++
	}
	if i < len(pat) && pat[i] == ']' {
		i++
	}
	for i < len(pat) && pat[i] != ']' {
		i++
	}
	if i >= len(pat) {
		return -1
	}
	return i
}

func matchClass(c byte, class string) bool {
	if class == "" {
		return false
	}
	negated := class[0] == '!' || class[0] == '^'
	if negated {
		class = class[1:]
	}

	matched := false
	for i := 0; i < len(class); {
		if i+2 < len(class) && class[i+1] == '-' {
			if c >= class[i] && c <= class[i+2] {
				matched = true
			}
			i += 3
			continue
		}
		if c == class[i] {
			matched = true
		}
		i++
	}
	return matched != negated
}
