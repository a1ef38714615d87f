package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"devon-cli/internal/lifecycle"
	"devon-cli/internal/navguard"
)

// prompter reads answers from the command's stdin. Secrets are read
// without echo when stdin is a terminal.
type prompter struct {
	in  io.Reader
	out io.Writer

	once sync.Once
	r    *bufio.Reader
}

var prompters sync.Map // *cobra.Command -> *prompter

// promptFor returns the prompter shared by everything reading cmd's stdin,
// so buffered input is never lost between questions.
func promptFor(cmd *cobra.Command) *prompter {
	p, _ := prompters.LoadOrStore(cmd, &prompter{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()})
	return p.(*prompter)
}

func (p *prompter) reader() *bufio.Reader {
	p.once.Do(func() { p.r = bufio.NewReader(p.in) })
	return p.r
}

func (p *prompter) Line(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.reader().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *prompter) Secret(question string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, question)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return p.Line(question)
}

// stdinConfirmer asks lifecycle questions on the terminal. Anything but
// y/yes declines.
func stdinConfirmer(cmd *cobra.Command) lifecycle.Confirmer {
	return lifecycle.ConfirmFunc(func(_ context.Context, pr lifecycle.Prompt) (bool, error) {
		answer, err := promptFor(cmd).Line(pr.String() + " [y/N] ")
		return affirmative(answer, err)
	})
}

// leaveConfirmer asks whether an interrupted edit may drop its changes.
// It gives up when ctx ends, leaving the read behind.
func leaveConfirmer(cmd *cobra.Command) navguard.ConfirmFunc {
	return func(ctx context.Context, _ navguard.Reason) (bool, error) {
		type answer struct {
			line string
			err  error
		}
		ch := make(chan answer, 1)
		go func() {
			line, err := promptFor(cmd).Line("\n" + navguard.Message + " [y/N] ")
			ch <- answer{line, err}
		}()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case a := <-ch:
			return affirmative(a.line, a.err)
		}
	}
}

func affirmative(answer string, err error) (bool, error) {
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
