// Package quickentry captures a single knowledge draft through terminal
// prompts, for people who would rather answer questions than fight shell
// quoting.
package quickentry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/supportstack/kbctl/internal/kb"
)

type Options struct {
	In  io.Reader
	Out io.Writer

	// Categories is the numbered label list offered for selection.
	Categories []string
	// Products is shown as a hint next to the product prompt.
	Products []string
}

// StdinIsTerminal reports whether stdin is an interactive terminal. The
// prompt flow refuses to run against a pipe.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Prompt walks through the entry fields and returns a draft with source
// "interactive". Required fields are re-asked until non-empty.
func Prompt(opts Options) (kb.Draft, error) {
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	categories := opts.Categories
	if len(categories) == 0 {
		categories = []string{kb.DefaultCategory}
	}

	sc := bufio.NewScanner(in)

	var d kb.Draft
	var err error

	if d.Title, err = askRequired(sc, out, "Issue title"); err != nil {
		return kb.Draft{}, err
	}
	if d.Problem, err = askRequired(sc, out, "Problem description"); err != nil {
		return kb.Draft{}, err
	}
	if d.Solution, err = askRequired(sc, out, "Solution"); err != nil {
		return kb.Draft{}, err
	}

	fmt.Fprintln(out, "\nAvailable categories:")
	for i, c := range categories {
		fmt.Fprintf(out, "%3d. %s\n", i+1, c)
	}
	raw, err := ask(sc, out, "Category numbers (space-separated, e.g. \"1 7\")")
	if err != nil {
		return kb.Draft{}, err
	}
	d.Categories = selectCategories(raw, categories)
	if strings.TrimSpace(raw) != "" && len(d.Categories) == 0 {
		fmt.Fprintln(out, "Invalid selection, using \"general\".")
	}

	productPrompt := "Product (optional)"
	if len(opts.Products) > 0 {
		productPrompt = fmt.Sprintf("Product (optional, e.g. %s)", strings.Join(opts.Products, ", "))
	}
	if d.Product, err = ask(sc, out, productPrompt); err != nil {
		return kb.Draft{}, err
	}
	if d.APIVersion, err = ask(sc, out, "API version (optional, e.g. 2025-07)"); err != nil {
		return kb.Draft{}, err
	}
	if d.CodeExamples, err = ask(sc, out, "Code examples (optional)"); err != nil {
		return kb.Draft{}, err
	}
	tagsRaw, err := ask(sc, out, "Tags (comma-separated, optional)")
	if err != nil {
		return kb.Draft{}, err
	}
	if tagsRaw != "" {
		d.Tags = strings.Split(tagsRaw, ",")
	}
	if d.Notes, err = ask(sc, out, "Notes (optional)"); err != nil {
		return kb.Draft{}, err
	}

	d.Source = "interactive"
	return d, nil
}

func ask(sc *bufio.Scanner, out io.Writer, prompt string) (string, error) {
	fmt.Fprintf(out, "%s: ", prompt)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(sc.Text()), nil
}

func askRequired(sc *bufio.Scanner, out io.Writer, prompt string) (string, error) {
	for {
		v, err := ask(sc, out, prompt)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		fmt.Fprintln(out, "This field is required.")
	}
}

// selectCategories maps a space-separated list of 1-based indexes onto the
// offered labels, dropping anything out of range or non-numeric. Empty or
// fully invalid input yields no selection (the store defaults to general).
func selectCategories(raw string, categories []string) []string {
	var out []string
	seen := make(map[int]struct{})
	for _, field := range strings.Fields(raw) {
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > len(categories) {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, categories[n-1])
	}
	return out
}
