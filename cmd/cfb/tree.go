package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cfb "github.com/asalih/go-cfb"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newUnpackCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <file> <dir>",
		Short: "Extract every storage and stream into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.readFile(args[0])
			if err != nil {
				return err
			}

			root, err := cfb.Decode(data, a.options()...)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			return unpackTree(a.fs, args[1], root)
		},
	}
}

func newPackCommand(a *app) *cobra.Command {
	var v4 bool

	cmd := &cobra.Command{
		Use:   "pack <dir> <file>",
		Short: "Build a container from a directory tree",
		Long: `pack turns every subdirectory of <dir> into a storage and every regular
file into a stream. Names must be valid entry names.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := packDir(a.fs, args[0])
			if err != nil {
				return err
			}

			opts := a.options()
			if v4 {
				opts = append(opts, cfb.WithVersion(cfb.V4))
			}

			data, err := cfb.Encode(root, opts...)
			if err != nil {
				return err
			}

			return afero.WriteFile(a.fs, args[1], data, 0o644)
		},
	}
	cmd.Flags().BoolVar(&v4, "v4", false, "Write 4096-byte sectors (version 4)")

	return cmd
}

// unpackTree mirrors a storage tree under dir: storages become directories
// and streams become files.
func unpackTree(fs afero.Fs, dir string, root *cfb.Storage) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return root.Walk(func(names []string, storage *cfb.Storage, data []byte) error {
		for _, name := range names {
			if err := cfb.ValidateName(name); err != nil {
				return fmt.Errorf("refusing to extract %q: %w", cfb.PathFromNameChain(names), err)
			}
			if name == "." || name == ".." {
				return fmt.Errorf("refusing to extract %q: %w", cfb.PathFromNameChain(names), cfb.ErrorInvalidName)
			}
		}

		target := filepath.Join(append([]string{dir}, names...)...)
		if rel, err := filepath.Rel(dir, target); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%q resolves outside %s: %w", cfb.PathFromNameChain(names), dir, cfb.ErrorInvalidName)
		}
		if storage != nil {
			return fs.MkdirAll(target, 0o755)
		}
		return afero.WriteFile(fs, target, data, 0o644)
	})
}

// packDir builds a storage tree from the files below dir.
func packDir(fs afero.Fs, dir string) (*cfb.Storage, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}

	st := cfb.NewStorage()
	for _, info := range infos {
		path := filepath.Join(dir, info.Name())

		switch {
		case info.IsDir():
			sub, err := packDir(fs, path)
			if err != nil {
				return nil, err
			}
			if err := cfb.ValidateName(info.Name()); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			st.Storages[info.Name()] = sub
		case info.Mode()&os.ModeType == 0:
			data, err := afero.ReadFile(fs, path)
			if err != nil {
				return nil, err
			}
			if err := st.AddStream(info.Name(), data); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	return st, nil
}
