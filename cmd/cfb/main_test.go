package main

import (
	"bytes"
	"testing"
	"unicode/utf16"

	cfb "github.com/asalih/go-cfb"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand(fs)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func sampleDir(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/src/Docs/Empty", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/src/Docs/readme", []byte("hello"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/Workbook", bytes.Repeat([]byte{0xab}, 5000), 0o644))
	return fs
}

func TestPackListCat(t *testing.T) {
	fs := sampleDir(t)

	_, err := run(t, fs, "pack", "/src", "/out.cfb")
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/out.cfb")
	require.NoError(t, err)
	require.True(t, cfb.IsCFB(data))

	out, err := run(t, fs, "ls", "/out.cfb", "--strict")
	require.NoError(t, err)
	require.Contains(t, out, "/Docs/readme")
	require.Contains(t, out, "/Docs/Empty")
	require.Contains(t, out, "/Workbook")
	require.Contains(t, out, "4.9 KiB")

	out, err = run(t, fs, "cat", "/out.cfb", "/Docs/readme")
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	_, err = run(t, fs, "cat", "/out.cfb", "/Docs")
	require.ErrorIs(t, err, cfb.ErrorNotStream)

	_, err = run(t, fs, "cat", "/out.cfb", "/nope")
	require.ErrorIs(t, err, cfb.ErrorNotFound)
}

func TestPackUnpack(t *testing.T) {
	for _, args := range [][]string{{"pack", "/src", "/out.cfb"}, {"pack", "--v4", "/src", "/out.cfb"}} {
		fs := sampleDir(t)

		_, err := run(t, fs, args...)
		require.NoError(t, err)

		_, err = run(t, fs, "unpack", "/out.cfb", "/dst")
		require.NoError(t, err)

		got, err := afero.ReadFile(fs, "/dst/Docs/readme")
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), got)

		got, err = afero.ReadFile(fs, "/dst/Workbook")
		require.NoError(t, err)
		require.Len(t, got, 5000)

		isDir, err := afero.IsDir(fs, "/dst/Docs/Empty")
		require.NoError(t, err)
		require.True(t, isDir)

		src, err := packDir(fs, "/src")
		require.NoError(t, err)
		dst, err := packDir(fs, "/dst")
		require.NoError(t, err)
		require.True(t, src.Equal(dst))
	}
}

func TestPackInvalidName(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a:b", []byte("x"), 0o644))

	_, err := run(t, fs, "pack", "/src", "/out.cfb")
	require.ErrorIs(t, err, cfb.ErrorInvalidName)
}

func TestUnpackRejectsDotNames(t *testing.T) {
	root := cfb.NewStorage()
	root.Streams[".."] = []byte("escape")

	err := unpackTree(afero.NewMemMapFs(), "/dst", root)
	require.ErrorIs(t, err, cfb.ErrorInvalidName)
}

func utf16le(s string) []byte {
	var out []byte
	for _, u := range utf16.Encode([]rune(s)) {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

func TestUnpackRejectsEscapingNames(t *testing.T) {
	for _, name := range []string{"../../evil", "..\\..\\evil", "sub/../../x"} {
		t.Run(name, func(t *testing.T) {
			root := cfb.NewStorage()
			placeholder := "abcdefghijklmnopqrstuvwxyz"[:len(name)]
			require.NoError(t, root.AddStream(placeholder, []byte("payload")))
			raw, err := cfb.Encode(root)
			require.NoError(t, err)

			patched := bytes.Replace(raw, utf16le(placeholder), utf16le(name), 1)
			require.NotEqual(t, raw, patched)

			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/in.cfb", patched, 0o644))

			_, err = run(t, fs, "unpack", "/in.cfb", "/a/b/dst")
			require.ErrorIs(t, err, cfb.ErrorInvalidName)

			exists, err := afero.Exists(fs, "/a/evil")
			require.NoError(t, err)
			require.False(t, exists)
		})
	}
}

func TestSizeLimit(t *testing.T) {
	fs := sampleDir(t)
	_, err := run(t, fs, "pack", "/src", "/out.cfb")
	require.NoError(t, err)

	t.Run("flag", func(t *testing.T) {
		_, err := run(t, fs, "ls", "--max-size", "100", "/out.cfb")
		require.ErrorIs(t, err, cfb.ErrorInvalidCFB)
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("CFB_MAX_SIZE", "100")
		_, err := run(t, fs, "ls", "/out.cfb")
		require.ErrorIs(t, err, cfb.ErrorInvalidCFB)
	})

	t.Run("config", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "/cfb.yaml", []byte("max-size: 100\n"), 0o644))
		_, err := run(t, fs, "ls", "--config", "/cfb.yaml", "/out.cfb")
		require.ErrorIs(t, err, cfb.ErrorInvalidCFB)
	})
}

func TestNotACompoundFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plain.txt", []byte("just some text, not a container"), 0o644))

	_, err := run(t, fs, "ls", "/plain.txt")
	require.ErrorIs(t, err, cfb.ErrorInvalidCFB)
}

func TestLogLevel(t *testing.T) {
	_, err := run(t, afero.NewMemMapFs(), "version", "--log-level", "loud")
	require.Error(t, err)

	out, err := run(t, afero.NewMemMapFs(), "version", "--log-level", "debug")
	require.NoError(t, err)
	require.Contains(t, out, "cfb ")
}
