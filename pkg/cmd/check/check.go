package check

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/util"
	"github.com/mpapenbr/regatta-scoring-go/pkg/seriesfile"
)

var (
	watch  bool
	format string
)

func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check file.yml",
		Short: "computes the standing of a series file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if !watch {
				return checkFile(cmd.OutOrStdout(), args[0])
			}
			return watchFile(ctx, cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false,
		"recompute whenever the file changes")
	cmd.Flags().StringVar(&format, "format", "table",
		"output format (table, json)")
	return cmd
}

func checkFile(w io.Writer, path string) error {
	f, err := seriesfile.Load(path)
	if err != nil {
		return err
	}
	res, err := compute(f)
	if err != nil {
		printResolutionErrors(w, err)
		return err
	}
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return renderTable(w, res, processing.ScoredRaces(f.Input.Races))
}

func compute(f *seriesfile.File) (*model.SeriesStanding, error) {
	system, parent, err := f.System()
	if err != nil {
		return nil, err
	}
	return processing.NewProcessor(
		processing.WithScoringSystem(system, parent),
		processing.WithLogger(log.Default().Named("check")),
	).Compute(f.Input)
}

func printResolutionErrors(w io.Writer, err error) {
	for _, re := range util.ResolutionErrors(err) {
		fmt.Fprintln(w, re.Error())
	}
}

// watchFile watches the directory of path since editors often replace files
// instead of writing them.
func watchFile(ctx context.Context, w io.Writer, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	run := func() {
		fmt.Fprintf(w, "--- %s %s\n", path, time.Now().Format(time.TimeOnly))
		if err := checkFile(w, path); err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
	}
	run()
	// editors emit several events per save
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name == abs &&
				(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				debounce = time.After(100 * time.Millisecond)
			}
		case <-debounce:
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", log.ErrorField(err))
		}
	}
}

