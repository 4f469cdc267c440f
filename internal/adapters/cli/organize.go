package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-sorter/internal/core/domain"
	"github.com/kirillkom/document-sorter/internal/infrastructure/archive"
)

type requestFlags struct {
	guide  string
	preset string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.guide, "guide", "g", "", "category outline (.yaml, .md or .txt)")
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "cluster preset: loose, default or tight")
}

func newOrganizeCommand(deps Deps) *cobra.Command {
	var (
		flags requestFlags
		out   string
		quiet bool
		clean bool
	)
	cmd := &cobra.Command{
		Use:   "organize [files or folders...]",
		Short: "Organize documents into a ZIP or a folder tree",
		Long: `Normalizes, embeds and clusters the given documents, then writes one
folder per group with a 00_README.md description. An --out path ending in
.zip produces an archive, anything else a directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			req, err := buildRequest(args, flags.guide, flags.preset)
			if err != nil {
				return err
			}
			if !quiet {
				req.Progress = func(stage string, done, total int) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%-10s %d/%d", stage, done, total)
					if done == total {
						fmt.Fprintln(cmd.ErrOrStderr())
					}
				}
			}

			organizer, assembler, err := deps.Pipeline()
			if err != nil {
				return err
			}
			result, err := organizer.Organize(ctx, req)
			if err != nil {
				return fmt.Errorf("organize failed: %w", err)
			}
			if clean {
				if err := cleanOutput(out, args); err != nil {
					return err
				}
			}
			if err := writeOutput(ctx, assembler, result.Tree, out); err != nil {
				return err
			}

			cmd.Printf("Wrote %d documents into %d folders: %s\n", len(req.Uploads), len(result.Tree.Leaves()), out)
			printReport(cmd, result.Report)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "organized.zip", "output .zip file or directory")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide progress output")
	cmd.Flags().BoolVar(&clean, "clean", false, "remove the previous output before writing")
	return cmd
}

// cleanOutput removes a previous archive or folder tree at out. Only paths
// that look like earlier output are removed: a .zip file, or a directory whose
// entries are all group folders carrying a README.
func cleanOutput(out string, inputs []string) error {
	abs, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}

	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(abs), ".zip") {
			return fmt.Errorf("refusing to clean %s: not a .zip archive", abs)
		}
		if err := os.Remove(abs); err != nil {
			return fmt.Errorf("clean output: %w", err)
		}
		return nil
	}

	protected := append([]string(nil), inputs...)
	if cwd, err := os.Getwd(); err == nil {
		protected = append(protected, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		protected = append(protected, home)
	}
	for _, path := range protected {
		target, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if within(abs, target) {
			return fmt.Errorf("refusing to clean %s: it contains %s", abs, target)
		}
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("read output dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return fmt.Errorf("refusing to clean %s: unexpected file %s", abs, entry.Name())
		}
		if _, err := os.Stat(filepath.Join(abs, entry.Name(), archive.ReadmeName)); err != nil {
			return fmt.Errorf("refusing to clean %s: %s has no %s", abs, entry.Name(), archive.ReadmeName)
		}
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("clean output: %w", err)
	}
	return nil
}

// within reports whether target is dir itself or lies below it.
func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func writeOutput(ctx context.Context, assembler Assembler, tree *domain.Tree, out string) error {
	if !strings.EqualFold(filepath.Ext(out), ".zip") {
		if err := assembler.WriteDir(ctx, tree, out); err != nil {
			return fmt.Errorf("write folder tree: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := assembler.WriteZip(ctx, tree, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func printReport(cmd *cobra.Command, report domain.RunReport) {
	for _, stage := range report.Stages {
		line := fmt.Sprintf("  %-10s live=%d cached=%d fallback=%d", stage.Stage, stage.Live, stage.Cached, stage.Fallback)
		if stage.Failed > 0 {
			line += fmt.Sprintf(" failed=%d", stage.Failed)
		}
		cmd.Println(line)
	}
}

func newPreviewCommand(deps Deps) *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "preview [files or folders...]",
		Short: "Estimate the folder layout without naming groups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(args, flags.guide, flags.preset)
			if err != nil {
				return err
			}
			organizer, _, err := deps.Pipeline()
			if err != nil {
				return err
			}
			plan, err := organizer.Preview(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("preview failed: %w", err)
			}
			data, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal plan: %w", err)
			}
			cmd.Println(string(data))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
