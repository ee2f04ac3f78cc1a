package types

import "strings"

// SanitizeText strips disallowed control bytes from title/description/diff
// text: 0x00-0x08, 0x0B, 0x0C, 0x0E-0x1F, 0x7F.
func SanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isControlByte(c) {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isControlByte(c byte) bool {
	switch {
	case c <= 0x08:
		return true
	case c == 0x0B || c == 0x0C:
		return true
	case c >= 0x0E && c <= 0x1F:
		return true
	case c == 0x7F:
		return true
	}
	return false
}

// SanitizeFilePath normalizes a single file path: backslashes become
// forward slashes, leading slashes are stripped, and ".." segments are
// erased to prevent path traversal.
func SanitizeFilePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "/") {
		p = p[1:]
	}
	parts := strings.Split(p, "/")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == ".." || part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, "/")
}

// SanitizeFiles normalizes every path and collapses duplicates while
// preserving first-seen order.
func SanitizeFiles(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		clean := SanitizeFilePath(f)
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

// Sanitized applies SanitizeText to Title/Description/Diff and
// SanitizeFiles to Files, returning a new Descriptor. The receiver is
// left untouched so validation failures never leave partially-mutated
// state behind.
func (d Descriptor) Sanitized() Descriptor {
	d.Title = SanitizeText(d.Title)
	d.Description = SanitizeText(d.Description)
	d.Diff = SanitizeText(d.Diff)
	d.Files = SanitizeFiles(d.Files)
	return d
}
