package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"trackcore/pkg/domain"
)

// errProblems is returned when verification finds anything to report.
var errProblems = errors.New("verification found problems")

type verifyReport struct {
	Records  int      `json:"records"`
	Problems []string `json:"problems"`
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check references between records and the consistency of stored ids",
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
			rep := verify(cmd.Context(), ws)
			out := cmd.OutOrStdout()
			if opts.json {
				if err := json.NewEncoder(out).Encode(rep); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%d records checked\n", rep.Records)
				for _, p := range rep.Problems {
					fmt.Fprintln(out, "  "+p)
				}
			}
			if len(rep.Problems) > 0 {
				return fmt.Errorf("%w: %d", errProblems, len(rep.Problems))
			}
			return nil
		},
	}
}

func verify(ctx context.Context, ws *workspace) verifyReport {
	rep := verifyReport{Records: len(ws.records)}
	present := make(map[domain.Ref]bool, len(ws.records))
	for _, rec := range ws.records {
		if rec.ID <= 0 {
			rep.Problems = append(rep.Problems, fmt.Sprintf("%s: id must be positive", rec.Key()))
		}
		present[rec.Ref()] = true
	}
	var dangling []string
	for _, rec := range ws.records {
		for name, refs := range rec.Refs {
			for _, ref := range refs {
				if !present[ref] {
					dangling = append(dangling, fmt.Sprintf("%s: link %q targets missing %s", rec.Key(), name, ref))
				}
			}
		}
	}
	sort.Strings(dangling)
	rep.Problems = append(rep.Problems, dangling...)
	if _, err := ws.session.LoadAll(ctx); err != nil {
		rep.Problems = append(rep.Problems, err.Error())
	}
	return rep
}
