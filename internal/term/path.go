package term

import "strings"

// Separator splits the segments of a Path.
const Separator = "/"

// Path is a fully qualified, separator-delimited name such as "agent/goal".
type Path string

// PathOf joins segments into a Path, dropping empty ones.
func PathOf(segments ...string) Path {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		for _, p := range strings.Split(s, Separator) {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return Path(strings.Join(parts, Separator))
}

// Segments returns the path parts.
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), Separator)
}

// Suffix returns the last segment.
func (p Path) Suffix() string {
	s := string(p)
	if i := strings.LastIndex(s, Separator); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Prefix returns the path without its last segment.
func (p Path) Prefix() Path {
	s := string(p)
	if i := strings.LastIndex(s, Separator); i >= 0 {
		return Path(s[:i])
	}
	return ""
}

// Append returns p followed by other.
func (p Path) Append(other Path) Path {
	return PathOf(string(p), string(other))
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.Segments())
}

func (p Path) Empty() bool {
	return p == ""
}

func (p Path) String() string {
	return string(p)
}
