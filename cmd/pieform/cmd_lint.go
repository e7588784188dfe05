package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mahara/pieform/pkg/model"
)

var lintStrict bool

var lintCmd = &cobra.Command{
	Use:   "lint [path...]",
	Short: "Check descriptor files",
	Long: `Parses and builds every descriptor in the given files or directories and
reports the forms they define. Building checks element types, rule
arguments, regular expressions and duplicate names.

With --strict a form without any submit button is also an error.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLint,
}

func init() {
	lintCmd.Flags().BoolVar(&lintStrict, "strict", false, "require a submit button on every form")
}

func runLint(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		set, err := loadForms(path)
		if err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		for _, name := range set.Names() {
			desc, _ := set.Descriptor(name)
			if problems := lintForm(desc); lintStrict && len(problems) > 0 {
				fmt.Fprintf(out, "FAIL %s: %s: %s\n", set.Source(name), name, strings.Join(problems, "; "))
				failed++
				continue
			}
			reportForm(out, set.Source(name), desc)
		}
	}
	logger.Debug("lint finished", zap.Strings("paths", args), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("lint: %d problem(s)", failed)
	}
	return nil
}

func lintForm(desc model.Descriptor) []string {
	var problems []string
	submits := false
	desc.Walk(func(el model.Element) bool {
		if el.Type.Submits() {
			submits = true
		}
		return true
	})
	if !submits {
		problems = append(problems, "no submit button")
	}
	return problems
}

func reportForm(out io.Writer, source string, desc model.Descriptor) {
	count := 0
	types := map[string]int{}
	desc.Walk(func(el model.Element) bool {
		count++
		types[string(el.Type)]++
		return true
	})
	keys := make([]string, 0, len(types))
	for key := range types {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, types[key]))
	}
	fmt.Fprintf(out, "ok   %s: %s (%d elements: %s)\n", relative(source), desc.Name, count, strings.Join(parts, " "))
}

func relative(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
