package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/phrazzld/docflow/internal/api"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

type ui struct {
	out         io.Writer
	errOut      io.Writer
	format      string
	interactive bool

	title func(a ...interface{}) string
	ok    func(a ...interface{}) string
	warn  func(a ...interface{}) string
	err   func(a ...interface{}) string
	dim   func(a ...interface{}) string
}

// newUI builds the terminal UI. Spinners, bars and colors are only used
// when errOut is a terminal.
func newUI(out, errOut io.Writer, format string) *ui {
	interactive := isTerminal(errOut)
	if !interactive {
		color.NoColor = true
	}
	return &ui{
		out:         out,
		errOut:      errOut,
		format:      format,
		interactive: interactive,
		title:       color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:          color.New(color.FgGreen, color.Bold).SprintFunc(),
		warn:        color.New(color.FgYellow).SprintFunc(),
		err:         color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:         color.New(color.FgHiBlack).SprintFunc(),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// spin runs fn behind a spinner on interactive terminals.
func (u *ui) spin(label string, fn func() error) error {
	if !u.interactive {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(u.errOut))
	s.Suffix = " " + label
	s.Start()
	defer s.Stop()
	return fn()
}

// progress reports finished items out of total. It is a no-op off a terminal.
type progress interface {
	Set(n int) error
	Finish() error
}

type noProgress struct{}

func (noProgress) Set(int) error  { return nil }
func (noProgress) Finish() error { return nil }

func (u *ui) progress(total int, label string) progress {
	if !u.interactive || total <= 0 {
		return noProgress{}
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(u.errOut),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWidth(24),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// render writes v in the structured formats, or calls text for plain output.
func (u *ui) render(v any, text func(w io.Writer)) error {
	switch u.format {
	case outputJSON:
		enc := json.NewEncoder(u.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(u.out)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(v)
	default:
		text(u.out)
		return nil
	}
}

func (u *ui) printStatus(st api.TaskStatusResponse) error {
	return u.render(st, func(w io.Writer) {
		label := u.warn(st.Status)
		switch st.Status {
		case "COMPLETED":
			label = u.ok(st.Status)
		case "FAILED":
			label = u.err(st.Status)
		}
		fmt.Fprintf(w, "%s %s %s\n", u.title("task"), st.TaskID, label)
		if st.Operation != "" {
			fmt.Fprintf(w, "  %s %s\n", u.dim("operation:"), st.Operation)
		}
		if st.Message != "" {
			fmt.Fprintf(w, "  %s %s\n", u.dim("message:"), st.Message)
		}
		for _, id := range sortedKeys(st.Results) {
			fmt.Fprintf(w, "  %s %s\n", u.dim(id+":"), st.Results[id])
		}
	})
}

// sortedKeys orders result keys numerically where possible.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseInt(keys[i], 10, 64)
		b, errB := strconv.ParseInt(keys[j], 10, 64)
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}
