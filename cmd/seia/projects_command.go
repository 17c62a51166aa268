package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seia/seia-translator/internal/logging"
	"github.com/seia/seia-translator/internal/project"
)

// withProjects opens the configured store for one command. Logs go to
// stderr so table and JSON output stay clean.
func (c *commandContext) withProjects(cmd *cobra.Command, fn func(ctx context.Context, svc *project.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), "warn", "text")
	svc, closeFn, err := openService(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(cmd.Context(), svc)
}

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "Inspect and manage projects",
	}
	cmd.AddCommand(newProjectsListCommand(ctx))
	cmd.AddCommand(newProjectsShowCommand(ctx))
	cmd.AddCommand(newProjectsRenameCommand(ctx))
	cmd.AddCommand(newProjectsRemoveCommand(ctx))
	return cmd
}

func newProjectsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects, newest first",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return ctx.withProjects(cmd, func(c context.Context, svc *project.Service) error {
			all, err := svc.List(c)
			if err != nil {
				return err
			}
			all = filterByStatus(all, statuses)
			if asJSON {
				return writeJSON(cmd, all)
			}
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Status", "Languages", "Segments", "Created"},
				projectRows(all, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		})
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Only show projects in these statuses")
	return cmd
}

func newProjectsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return ctx.withProjects(cmd, func(c context.Context, svc *project.Service) error {
			p, err := findProject(c, svc, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, p)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, projectDetail(p), nil))
			return nil
		})
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newProjectsRenameCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return ctx.withProjects(cmd, func(c context.Context, svc *project.Service) error {
			p, err := findProject(c, svc, args[0])
			if err != nil {
				return err
			}
			name := args[1]
			updated, err := svc.Update(c, p.ID, project.Patch{Name: &name})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", shortID(updated.ID), updated.Name)
			return nil
		})
	}
	return cmd
}

func newProjectsRemoveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete projects and their files",
		Args:    cobra.MinimumNArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return ctx.withProjects(cmd, func(c context.Context, svc *project.Service) error {
			var errs []error
			for _, arg := range args {
				p, err := findProject(c, svc, arg)
				if err == nil {
					err = svc.Delete(c, p.ID)
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", arg, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", shortID(p.ID), p.Name)
			}
			return errors.Join(errs...)
		})
	}
	return cmd
}

// findProject resolves a full id or a unique id prefix.
func findProject(ctx context.Context, svc *project.Service, ref string) (*project.Project, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, project.ErrNotFound
	}
	if p, err := svc.Get(ctx, ref); err == nil {
		return p, nil
	} else if !errors.Is(err, project.ErrNotFound) {
		return nil, err
	}

	all, err := svc.List(ctx)
	if err != nil {
		return nil, err
	}
	var match *project.Project
	for _, p := range all {
		if !strings.HasPrefix(p.ID, ref) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("id prefix %q is ambiguous", ref)
		}
		match = p
	}
	if match == nil {
		return nil, project.ErrNotFound
	}
	return match, nil
}

func filterByStatus(all []*project.Project, statuses []string) []*project.Project {
	if len(statuses) == 0 {
		return all
	}
	want := make(map[project.Status]bool, len(statuses))
	for _, s := range statuses {
		want[project.Status(strings.ToLower(strings.TrimSpace(s)))] = true
	}
	out := make([]*project.Project, 0, len(all))
	for _, p := range all {
		if want[p.Status] {
			out = append(out, p)
		}
	}
	return out
}

func projectRows(all []*project.Project, now time.Time) [][]string {
	rows := make([][]string, 0, len(all))
	for _, p := range all {
		rows = append(rows, []string{
			shortID(p.ID),
			p.Name,
			string(p.Status),
			p.SourceLanguage + " -> " + p.TargetLanguage,
			strconv.Itoa(len(p.Segments)),
			formatAge(now.Sub(p.CreatedAt)),
		})
	}
	return rows
}

func projectDetail(p *project.Project) [][]string {
	rows := [][]string{
		{"ID", p.ID},
		{"Name", p.Name},
		{"Original name", p.OriginalName},
		{"Status", string(p.Status)},
		{"Languages", p.SourceLanguage + " -> " + p.TargetLanguage},
		{"Segments", strconv.Itoa(len(p.Segments))},
		{"Translated", strconv.Itoa(countTranslated(p.TranslatedSegments))},
		{"Video", p.VideoPath},
	}
	if p.Subtitles != "" {
		rows = append(rows, []string{"Subtitles", p.Subtitles})
	}
	if p.ExportedVideo != "" {
		rows = append(rows, []string{"Exported video", p.ExportedVideo})
	}
	rows = append(rows,
		[]string{"Created", p.CreatedAt.Local().Format(time.RFC3339)},
		[]string{"Updated", p.UpdatedAt.Local().Format(time.RFC3339)},
	)
	return rows
}

func countTranslated(segments []project.Segment) int {
	n := 0
	for _, s := range segments {
		if strings.TrimSpace(s.TranslatedText) != "" {
			n++
		}
	}
	return n
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
