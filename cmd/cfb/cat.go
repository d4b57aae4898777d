package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newCatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <file> <stream>",
		Short: "Write the contents of a stream to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := a.open(args[0])
			if err != nil {
				return err
			}

			stream, err := file.OpenStream(args[1])
			if err != nil {
				return err
			}

			_, err = io.Copy(cmd.OutOrStdout(), stream)
			return err
		},
	}
}
