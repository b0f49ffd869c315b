package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trackcore/internal/idgen"
)

type categoryReport struct {
	Category string   `json:"category"`
	Objects  int      `json:"objects"`
	NextID   int64    `json:"next_id"`
	Holes    []string `json:"holes"`
}

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Load every record and report objects and free ids per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ws, err := openWorkspace(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := ws.Close(); err == nil {
					err = cerr
				}
			}()
			if _, err := ws.session.LoadAll(cmd.Context()); err != nil {
				return err
			}
			reports := inspect(ws)
			if opts.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			return printReports(cmd.OutOrStdout(), reports)
		},
	}
}

func inspect(ws *workspace) []categoryReport {
	objects := ws.session.Objects()
	var reports []categoryReport
	for _, cat := range objects.Categories() {
		rep := categoryReport{Category: string(cat), Objects: len(objects.Objects(cat))}
		if gen, ok := ws.session.Allocators().Lookup(cat); ok {
			holes := gen.Holes()
			if len(holes) > 0 {
				rep.NextID = holes[0].Begin
			}
			for _, h := range holes {
				rep.Holes = append(rep.Holes, formatRange(h))
			}
		}
		reports = append(reports, rep)
	}
	return reports
}

func formatRange(r idgen.Range) string {
	end := fmt.Sprint(r.End)
	if r.End == idgen.MaxID {
		end = "max"
	}
	if r.Begin == r.End {
		return fmt.Sprintf("[%d]", r.Begin)
	}
	return fmt.Sprintf("[%d,%s]", r.Begin, end)
}

func printReports(w io.Writer, reports []categoryReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tOBJECTS\tNEXT ID\tFREE")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.Category, r.Objects, r.NextID, strings.Join(r.Holes, " "))
	}
	return tw.Flush()
}
