package main

import (
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "ls <file>",
		Aliases: []string{"list"},
		Short:   "List the storages and streams of a container",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := a.open(args[0])
			if err != nil {
				return err
			}

			entries, err := file.Entries()
			if err != nil {
				return err
			}

			out := tablewriter.NewWriter(cmd.OutOrStdout())
			out.SetHeader([]string{"Path", "Type", "Size", "CLSID", "Modified"})
			out.SetAutoWrapText(false)
			out.SetBorder(false)

			for _, e := range entries {
				size := ""
				if e.IsStream() {
					size = humanize.IBytes(e.StreamLen)
				}

				clsid := ""
				if e.CLSID != uuid.Nil {
					clsid = e.CLSID.String()
				}

				modified := ""
				if t := e.Modified(); !t.IsZero() {
					modified = humanize.Time(t)
				}

				out.Append([]string{e.Path, e.ObjType.String(), size, clsid, modified})
			}

			out.Render()
			return nil
		},
	}
}
