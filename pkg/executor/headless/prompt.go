package headless

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Prompter reads answers from the console. Reads honour context
// cancellation; a read abandoned on cancel is picked up by the next one.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int // -1 when input is not a terminal

	mu      sync.Mutex
	pending chan readResult
}

type readResult struct {
	text string
	err  error
}

// NewPrompter creates a prompter over in and out. Secrets are read without
// echo when in is a terminal.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{
		in:  bufio.NewReader(in),
		out: out,
		fd:  -1,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

// IsTerminal reports whether secrets are read without echo.
func (p *Prompter) IsTerminal() bool {
	return p.fd >= 0
}

// ReadLine prints label and returns the next line, trimmed.
func (p *Prompter) ReadLine(ctx context.Context, label string) (string, error) {
	fmt.Fprint(p.out, label)
	text, err := p.read(ctx, p.readString)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ReadSecret prints label and reads a line without echo when possible.
func (p *Prompter) ReadSecret(ctx context.Context, label string) (string, error) {
	if !p.IsTerminal() {
		return p.ReadLine(ctx, label)
	}

	fmt.Fprint(p.out, label)
	text, err := p.read(ctx, func() (string, error) {
		b, err := term.ReadPassword(p.fd)
		return string(b), err
	})
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// PromptOTP asks for the one-time code. It satisfies login.OTPPrompter.
func (p *Prompter) PromptOTP(ctx context.Context) (string, error) {
	fmt.Fprintf(p.out, "\n%s\n", strings.Repeat("=", 50))
	fmt.Fprintln(p.out, "📱 Please check your SMS and Email for the OTP code")
	fmt.Fprintln(p.out, strings.Repeat("=", 50))
	return p.ReadLine(ctx, "\nEnter the 6-digit OTP code: ")
}

func (p *Prompter) readString() (string, error) {
	line, err := p.in.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		return line, nil
	}
	return line, err
}

func (p *Prompter) read(ctx context.Context, fn func() (string, error)) (string, error) {
	p.mu.Lock()
	ch := p.pending
	if ch == nil {
		ch = make(chan readResult, 1)
		p.pending = ch
		go func() {
			text, err := fn()
			ch <- readResult{text: text, err: err}
		}()
	}
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.text, nil
	}
}
