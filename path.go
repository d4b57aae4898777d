package cfb

import (
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

const MAX_NAME_LEN int = 31

type Ordering int

const (
	OrderLess Ordering = iota
	OrderEqual
	OrderGreater
)

// ValidateName checks that name can be stored in a directory entry.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrorInvalidName)
	}

	if n := nameLen(name); n > MAX_NAME_LEN {
		return fmt.Errorf("name %q is %v UTF-16 code units long, max is %v: %w", name, n, MAX_NAME_LEN, ErrorInvalidName)
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("name %q is not valid UTF-8: %w", name, ErrorInvalidName)
	}

	if strings.ContainsAny(name, "/\\:!") {
		return fmt.Errorf("name contains one of /\\:! characters: %q: %w", name, ErrorInvalidName)
	}

	return nil
}

func nameLen(name string) int {
	return len(utf16.Encode([]rune(name)))
}

// CompareNames orders names the way sibling trees are sorted: shorter names
// first, then code unit by code unit after upper-casing.
func CompareNames(nameLeft, nameRight string) Ordering {
	left := utf16.Encode([]rune(nameLeft))
	right := utf16.Encode([]rune(nameRight))

	if len(left) != len(right) {
		if len(left) < len(right) {
			return OrderLess
		}
		return OrderGreater
	}

	for i := range left {
		l, r := upperUnit(left[i]), upperUnit(right[i])
		if l < r {
			return OrderLess
		}
		if l > r {
			return OrderGreater
		}
	}

	return OrderEqual
}

func upperUnit(u uint16) uint16 {
	if utf16.IsSurrogate(rune(u)) {
		return u
	}
	up := unicode.ToUpper(rune(u))
	if up > 0xffff {
		return u
	}
	return uint16(up)
}

func NameChainFromPath(s string) []string {
	s = path.Clean("/" + s)
	if s == "/" {
		return []string{}
	}

	return strings.Split(s[1:], "/")
}

func PathFromNameChain(names []string) string {
	return "/" + strings.Join(names, "/")
}
