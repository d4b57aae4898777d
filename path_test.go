package cfb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameChainFromPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want []string
	}{
		{name: "empty", path: "", want: []string{}},
		{name: "root", path: "/", want: []string{}},
		{name: "valid abs", path: "/foo/bar/baz/", want: []string{"foo", "bar", "baz"}},
		{name: "valid rel", path: "foo/bar/baz", want: []string{"foo", "bar", "baz"}},
		{name: "dot", path: "./foo/./bar", want: []string{"foo", "bar"}},
		{name: "parent", path: "foo/bar/../baz", want: []string{"foo", "baz"}},
		{name: "parent past root", path: "foo/../../baz", want: []string{"baz"}},
		{name: "double slash", path: "//foo//bar", want: []string{"foo", "bar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NameChainFromPath(tt.path))
		})
	}
}

func TestPathFromNameChain(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{name: "root", names: []string{}, want: "/"},
		{name: "nil", names: nil, want: "/"},
		{name: "nested", names: []string{"foo", "bar"}, want: "/foo/bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PathFromNameChain(tt.names))
		})
	}
}

func TestCompareNames(t *testing.T) {
	tests := []struct {
		left, right string
		want        Ordering
	}{
		{"", "", OrderEqual},
		{"a", "A", OrderEqual},
		{"Foo", "fOO", OrderEqual},
		{"z", "aa", OrderLess},
		{"aa", "z", OrderGreater},
		{"abc", "abd", OrderLess},
		{"ABD", "abc", OrderGreater},
		{"é", "É", OrderEqual},
		{"\x05Summary", "Workbook", OrderLess},
		// A surrogate pair is two code units.
		{"ab", "😀", OrderLess},
	}
	for _, tt := range tests {
		t.Run(tt.left+"|"+tt.right, func(t *testing.T) {
			require.Equal(t, tt.want, CompareNames(tt.left, tt.right))
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "Workbook"},
		{name: "control prefix", input: "\x05SummaryInformation"},
		{name: "max length", input: "0123456789012345678901234567890"},
		{name: "empty", input: "", wantErr: true},
		{name: "too long", input: "01234567890123456789012345678901", wantErr: true},
		{name: "slash", input: "a/b", wantErr: true},
		{name: "backslash", input: "a\\b", wantErr: true},
		{name: "colon", input: "a:b", wantErr: true},
		{name: "bang", input: "a!b", wantErr: true},
		{name: "invalid utf-8", input: "a\xffb", wantErr: true},
		{name: "surrogate pair counts twice", input: "012345678901234567890123456789😀", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrorInvalidName)
				return
			}
			require.NoError(t, err)
		})
	}
}
