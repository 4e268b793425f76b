package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"security-content/internal/builder"
	"security-content/internal/content"
	"security-content/internal/loader"
	"security-content/internal/pipeline"
)

func runValidateCmd(args []string) {
	flags := flag.NewFlagSet("validate", flag.ExitOnError)
	verbose := flags.Bool("verbose", false, "Show details of every valid object")
	maxSize := flags.Int64("max-file-size", loader.DefaultMaxBytes, "Largest definition file accepted, in bytes")
	flags.Parse(args)

	dirs := flags.Args()
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	os.Exit(runValidate(os.Stdout, dirs, *maxSize, *verbose))
}

// runValidate builds every definition under each content directory without
// enrichment and reports one line per file.
func runValidate(w io.Writer, dirs []string, maxSize int64, verbose bool) int {
	b := builder.NewBasicBuilder(builder.WithLoader(loader.FileLoader{MaxBytes: maxSize}))

	var total, valid, invalid int
	for _, dir := range dirs {
		fmt.Fprintln(w, titleStyle.Render(dir))
		for _, kind := range content.Kinds {
			kindDir := filepath.Join(dir, kind.Dir())
			if _, err := os.Stat(kindDir); errors.Is(err, fs.ErrNotExist) {
				continue
			}
			files, err := pipeline.CollectFiles(kindDir)
			if err != nil {
				fmt.Fprintf(w, "  %s  %s: %v\n", statusLabel(false), kindDir, err)
				invalid++
				continue
			}
			for _, f := range files {
				total++
				obj, err := b.Build(f, kind)
				if err != nil {
					fmt.Fprintf(w, "  %s  %s: %v\n", statusLabel(false), f, err)
					invalid++
					continue
				}
				valid++
				fmt.Fprintf(w, "  %s  %s\n", statusLabel(true), f)
				if verbose {
					fmt.Fprintf(w, "        %s\n", mutedStyle.Render(describe(obj)))
				}
			}
		}
	}

	fmt.Fprintf(w, "\nResults: %d files checked, %d valid, %d invalid\n", total, valid, invalid)

	if invalid > 0 {
		return 1
	}
	return 0
}

func describe(obj any) string {
	switch v := obj.(type) {
	case *content.Detection:
		return fmt.Sprintf("detection [%s] %s (type=%s)", v.ID, v.Name, v.Type)
	case *content.Deployment:
		return fmt.Sprintf("deployment [%s] %s (cron=%s)", v.ID, v.Name, v.Scheduling.CronSchedule)
	case *content.Macro:
		return fmt.Sprintf("macro %s", v.Name)
	case *content.Playbook:
		return fmt.Sprintf("playbook [%s] %s", v.ID, v.Name)
	case *content.Baseline:
		return fmt.Sprintf("baseline [%s] %s", v.ID, v.Name)
	case *content.UnitTest:
		return fmt.Sprintf("unit test %s (%d case(s))", v.Name, len(v.Tests))
	default:
		return fmt.Sprintf("%T", obj)
	}
}
