package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seia/seia-translator/internal/subtitle"
)

func newSRTCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "srt",
		Short:       "Subtitle file utilities",
		Annotations: map[string]string{"skipConfig": "true"},
	}
	cmd.AddCommand(newSRTCheckCommand())
	return cmd
}

func newSRTCheckCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Validate SubRip files",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		reports := make(map[string]subtitle.Report, len(args))
		rows := make([][]string, 0, len(args))
		failed := 0
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			r := subtitle.Check(string(data))
			reports[path] = r
			status := "ok"
			if len(r.Issues) > 0 {
				status = fmt.Sprintf("%d issues", len(r.Issues))
				failed++
			}
			rows = append(rows, []string{path, strconv.Itoa(r.Cues), subtitle.FormatTimestamp(r.Duration), status})
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if err := writeJSON(cmd, reports); err != nil {
				return err
			}
		} else {
			fmt.Fprint(out, renderTable([]string{"File", "Cues", "Duration", "Status"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
			for _, path := range args {
				for _, issue := range reports[path].Issues {
					fmt.Fprintf(out, "%s: %s\n", path, issue)
				}
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files have issues", failed, len(args))
		}
		return nil
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON reports")
	return cmd
}
