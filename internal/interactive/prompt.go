// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/greenwave/gwupdate/internal/quarantine"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes  Response = iota // Proceed with this item
	ResponseNo                   // Skip this item
	ResponseAll                  // Approve all remaining items
	ResponseQuit                 // Abort interactive mode
)

// Prompter handles interactive prompts.
type Prompter struct {
	out        io.Writer
	scanner    *bufio.Scanner
	approveAll bool
}

// NewPrompterWithIO creates a prompter reading answers from in.
// Callers pass stderr as out so stdout stays machine-readable.
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt displays a question and reads the response.
func (p *Prompter) prompt(format string, args ...interface{}) Response {
	if p.approveAll {
		return ResponseYes
	}

	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n/a/q] ")

	if !p.scanner.Scan() {
		return ResponseQuit
	}

	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	switch input {
	case "y", "yes":
		return ResponseYes
	case "n", "no":
		return ResponseNo
	case "a", "all":
		p.approveAll = true
		return ResponseYes
	case "q", "quit":
		return ResponseQuit
	default:
		// Default to no for invalid input
		_, _ = fmt.Fprintln(p.out, "Invalid response, skipping.")
		return ResponseNo
	}
}

// Confirm asks a yes/no question. Anything but y/yes, including EOF, is no.
func (p *Prompter) Confirm(format string, args ...interface{}) bool {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/N] ")
	if !p.scanner.Scan() {
		return false
	}
	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return input == "y" || input == "yes"
}

// ConfirmInstall shows what an install will do and asks to proceed.
func (p *Prompter) ConfirmInstall(dir, fileName, replacing string) bool {
	_, _ = fmt.Fprintf(p.out, "Install %s into %s\n", fileName, dir)
	if replacing != "" {
		_, _ = fmt.Fprintf(p.out, "  %s %s will be removed after verification\n", removeSymbol, replacing)
	}
	return p.Confirm("Proceed?")
}

// SelectForDeletion prompts for each quarantined file and returns the ones approved for deletion.
// The second return value is false if the user quit or declined the final confirmation.
func (p *Prompter) SelectForDeletion(records []quarantine.Record) ([]quarantine.Record, bool) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(p.out, "Quarantine is empty.")
		return nil, false
	}

	var selected []quarantine.Record
	skipped := 0

	for _, rec := range records {
		_, _ = fmt.Fprintf(p.out, "  %s %s (%s, %d bytes)\n", removeSymbol, rec.ID, rec.FileName, rec.Size)
		switch p.prompt("    -> Delete %s?", rec.ID) {
		case ResponseYes:
			selected = append(selected, rec)
		case ResponseNo:
			_, _ = fmt.Fprintf(p.out, "    %s Skipped\n", skipSymbol)
			skipped++
		case ResponseQuit:
			_, _ = fmt.Fprintln(p.out, "\nAborted.")
			return nil, false
		}
	}

	_, _ = fmt.Fprintln(p.out, "\nSummary:")
	_, _ = fmt.Fprintf(p.out, "  Will delete: %d\n", len(selected))
	if skipped > 0 {
		_, _ = fmt.Fprintf(p.out, "  Skipped: %d\n", skipped)
	}

	if len(selected) == 0 {
		_, _ = fmt.Fprintln(p.out, "Nothing selected.")
		return nil, false
	}

	if !p.Confirm("\nProceed with deletion?") {
		_, _ = fmt.Fprintln(p.out, "Aborted.")
		return nil, false
	}

	return selected, true
}

// Symbols for output
const (
	removeSymbol = "-"
	skipSymbol   = "~"
)
