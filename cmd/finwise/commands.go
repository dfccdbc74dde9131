package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/extract"
	"github.com/xxxsen/finwise/internal/model"
)

type appRunner func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error

func newIngestCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file|dir>...",
		Short: "index local files into the document store",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			paths, err := collectFiles(args)
			if err != nil {
				return err
			}
			var (
				inputs []model.IngestInput
				failed []model.IngestFailure
			)
			for _, p := range paths {
				data, err := os.ReadFile(p)
				if err != nil {
					return fmt.Errorf("read %s: %w", p, err)
				}
				name := filepath.Base(p)
				text, err := extract.Text(ctx, name, data)
				if err != nil {
					failed = append(failed, model.IngestFailure{FileName: name, Reason: err.Error()})
					continue
				}
				inputs = append(inputs, model.IngestInput{FileName: name, Text: text, Raw: data})
			}
			res, err := a.docs.Ingest(ctx, inputs, func(name string, done, total int) {
				fmt.Fprintf(os.Stderr, "%s: %d/%d chunks\n", name, done, total)
			})
			if res != nil {
				res.Failed = append(append([]model.IngestFailure{}, failed...), res.Failed...)
				if perr := printJSON(res); perr != nil {
					return perr
				}
			}
			return err
		}),
	}
}

// collectFiles expands directories into the supported files below them.
func collectFiles(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if extract.Supported(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func newReindexCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "recompute every stored embedding with the configured embedder",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			n, err := a.docs.Reembed(ctx, func(_ string, done, total int) {
				fmt.Fprintf(os.Stderr, "%d/%d entries\n", done, total)
			})
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"reembedded": n})
		}),
	}
}

func newFilesCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "list stored documents",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			docs, err := a.docs.StoredDocuments(ctx)
			if err != nil {
				return err
			}
			total, err := a.docs.Count(ctx)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"documents": docs, "total_entries": total})
		}),
	}
}

func newPurgeCmd(withApp appRunner) *cobra.Command {
	var (
		name string
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "delete stored documents by name or all of them",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if all == (name != "") {
				return fmt.Errorf("exactly one of --name or --all is required")
			}
			var (
				deleted bool
				err     error
			)
			if all {
				deleted, err = a.docs.DeleteAll(ctx)
			} else {
				deleted, err = a.docs.DeleteByName(ctx, name)
			}
			if err != nil {
				return err
			}
			logutil.GetLogger(ctx).Info("purge finished", zap.String("name", name), zap.Bool("all", all), zap.Bool("deleted", deleted))
			return printJSON(map[string]interface{}{"deleted": deleted})
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "file name to delete")
	cmd.Flags().BoolVar(&all, "all", false, "delete every stored document")
	return cmd
}

func newAskCmd(withApp appRunner) *cobra.Command {
	var (
		sessionID string
		allowWeb  bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "ask one question through the router",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if sessionID == "" {
				sess, err := a.router.NewSession(ctx)
				if err != nil {
					return err
				}
				sessionID = sess.ID
			}
			reply, err := a.router.Ask(ctx, sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if reply.AwaitingConsent && allowWeb {
				if err := printJSON(reply); err != nil {
					return err
				}
				reply, err = a.router.Consent(ctx, sessionID, true)
				if err != nil {
					return err
				}
			}
			return printJSON(reply)
		}),
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session")
	cmd.Flags().BoolVar(&allowWeb, "allow-web", false, "grant web search when the documents have no answer")
	return cmd
}

func newCleanupCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup [job]...",
		Short: "run maintenance jobs once",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if len(args) == 0 {
				args = a.scheduler.Jobs()
			}
			for _, name := range args {
				if err := a.scheduler.RunNow(ctx, name); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}
