package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter collects credentials from a human
type Prompter interface {
	Prompt(ctx context.Context) (*Credentials, error)
}

// TerminalPrompter asks for the username on In and reads the password without
// echo when In is a terminal.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// NewTerminalPrompter prompts on stdin and stdout
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stdout}
}

// IsInteractive reports whether stdin is attached to a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (p *TerminalPrompter) Prompt(ctx context.Context) (*Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}

	fmt.Fprint(p.Out, "Enter your GUC username: ")
	username, err := p.readLine()
	if err != nil {
		return nil, fmt.Errorf("failed to read username: %w", err)
	}

	fmt.Fprint(p.Out, "Enter your password: ")
	password, err := p.readPassword()
	fmt.Fprintln(p.Out)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	creds := &Credentials{Username: strings.TrimSpace(username), Password: password}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *TerminalPrompter) readPassword() (string, error) {
	if f, ok := p.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return p.readLine()
}
