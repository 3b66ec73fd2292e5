package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Spinner reports the progress of a single step. On a terminal it animates
// until the step completes; elsewhere only the final message is written.
type Spinner struct {
	spinner *spinner.Spinner
	out     io.Writer
	msg     string
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewSpinner creates and starts a spinner with the given message on out.
func NewSpinner(out io.Writer, msg string) *Spinner {
	s := &Spinner{out: out, msg: msg}
	if IsTerminal(out) {
		s.spinner = spinner.New(
			spinner.CharSets[14],
			200*time.Millisecond,
			spinner.WithHiddenCursor(true),
			spinner.WithWriter(out),
			spinner.WithSuffix(" "+msg),
		)
		s.spinner.Start()
	}
	return s
}

// UpdateMessage updates the spinner message.
// This function is safe to call on a nil Spinner.
func (s *Spinner) UpdateMessage(msg string) {
	if s == nil {
		return
	}
	if s.spinner != nil {
		s.spinner.Suffix = " " + msg
	}
	s.msg = msg
}

func (s *Spinner) stop(mark string, msg []string) {
	if s == nil {
		return
	}
	if len(msg) == 0 {
		msg = []string{s.msg}
	}
	final := fmt.Sprintf("%s %s\n", mark, msg[0])
	if s.spinner == nil {
		_, _ = fmt.Fprint(s.out, final)
		return
	}
	s.spinner.FinalMSG = final
	s.spinner.Stop()
}

// Success stops the spinner and prints a success message.
// This function is safe to call on a nil Spinner.
func (s *Spinner) Success(msg ...string) {
	s.stop(color.HiGreenString("✓"), msg)
}

// Warn stops the spinner and prints a warning message.
// This function is safe to call on a nil Spinner.
func (s *Spinner) Warn(msg ...string) {
	s.stop(color.HiYellowString("!"), msg)
}

// Fail stops the spinner and prints a failure message.
// This function is safe to call on a nil Spinner.
func (s *Spinner) Fail(msg ...string) {
	s.stop(color.HiRedString("✗"), msg)
}
