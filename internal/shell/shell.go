// Package shell implements the interactive Lua session in which an opened
// HDF5 file and dataset can be explored.
//
// Values passed as bindings become Lua globals. Files, groups and datasets
// are exposed as userdata with fields and methods:
//
//	f.filename, f:keys([path]), f:contains(path), f:get(path), f:tree(),
//	f:info(), f:attrs(), f:hexdump(offset[, length])
//	dset.name, dset.shape, dset.dtype, dset.size, dset:read([n]),
//	dset:slice(start, count), dset:attrs(), dset:info(), dset:stats(),
//	dset:hist([bins])
//	g.name, g:keys(), g:get(path), g:attrs(), g:info()
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/mattn/go-isatty"

	"github.com/scigolib/h5inspect/internal/logger"
)

// Bindings maps global names to the values bound in the session.
type Bindings map[string]any

// Shell is a Lua read-eval-print loop.
type Shell struct {
	state       *lua.State
	in          io.Reader
	out         io.Writer
	log         *logger.Logger
	prompt      string
	maxPrint    int
	histBins    int
	interactive bool
	exited      bool
}

// Option configures a Shell.
type Option func(*Shell)

// WithInput sets where lines are read from. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(s *Shell) { s.in = r }
}

// WithOutput sets where results and errors are written. Defaults to
// os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Shell) { s.out = w }
}

// WithPrompt sets the primary prompt.
func WithPrompt(p string) Option {
	return func(s *Shell) { s.prompt = p }
}

// WithMaxPrint caps the number of elements dset:read() returns by default.
func WithMaxPrint(n int) Option {
	return func(s *Shell) { s.maxPrint = n }
}

// WithHistBins sets the default bin count of dset:hist().
func WithHistBins(n int) Option {
	return func(s *Shell) { s.histBins = n }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Shell) { s.log = l }
}

// New creates a shell with the standard Lua libraries and the HDF5 types
// registered.
func New(opts ...Option) *Shell {
	s := &Shell{
		in:       os.Stdin,
		out:      os.Stdout,
		log:      logger.Nop(),
		prompt:   "h5> ",
		maxPrint: 1000,
		histBins: 10,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.interactive = isTerminal(s.in)

	s.state = lua.NewState()
	lua.OpenLibraries(s.state)
	s.registerBuiltins()
	s.registerTypes()
	return s
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// registerBuiltins routes print to the shell output and replaces the ways
// of leaving the process with a request to end the session.
func (s *Shell) registerBuiltins() {
	l := s.state
	l.Register("print", s.luaPrint)
	l.Register("exit", s.luaExit)
	l.Register("quit", s.luaExit)

	l.Global("os")
	if l.TypeOf(-1) == lua.TypeTable {
		l.PushGoFunction(s.luaExit)
		l.SetField(-2, "exit")
	}
	l.Pop(1)
}

func (s *Shell) luaPrint(l *lua.State) int {
	n := l.Top()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = toString(l, i)
	}
	fmt.Fprintln(s.out, strings.Join(parts, "\t"))
	return 0
}

func (s *Shell) luaExit(*lua.State) int {
	s.exited = true
	return 0
}

func (s *Shell) bind(b Bindings) {
	for name, v := range b {
		s.pushValue(v)
		s.state.SetGlobal(name)
	}
}

// Run binds b, prints header and evaluates lines until EOF, exit(), quit()
// or cancellation of ctx. Lua errors are printed and do not end the loop.
func (s *Shell) Run(ctx context.Context, b Bindings, header string) error {
	s.bind(b)
	s.exited = false
	fmt.Fprintln(s.out, header)

	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
		readErr <- sc.Err()
	}()

	var pending []string
	for !s.exited {
		if s.interactive {
			if len(pending) > 0 {
				fmt.Fprint(s.out, ">> ")
			} else {
				fmt.Fprint(s.out, s.prompt)
			}
		}

		select {
		case <-ctx.Done():
			s.log.Debug().Err(ctx.Err()).Msg("session cancelled")
			if s.interactive {
				fmt.Fprintln(s.out)
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				if s.interactive {
					fmt.Fprintln(s.out)
				}
				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				return nil
			}
			pending = append(pending, line)
			if s.eval(strings.Join(pending, "\n")) {
				continue
			}
			pending = pending[:0]
		}
	}
	return nil
}

// Exec binds b and runs code once. Returned values are printed.
func (s *Shell) Exec(ctx context.Context, b Bindings, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.bind(b)

	l := s.state
	top := l.Top()
	defer l.SetTop(top)
	if err := lua.LoadBuffer(l, code, "=exec", ""); err != nil {
		return errors.New(errorText(l, top, err))
	}
	if err := l.ProtectedCall(0, lua.MultipleReturns, 0); err != nil {
		return errors.New(errorText(l, top, err))
	}
	s.printResults(top)
	return nil
}

// eval runs one chunk, echoing the value of expressions. It reports true
// when the chunk is incomplete and more input is needed.
func (s *Shell) eval(code string) bool {
	l := s.state
	top := l.Top()
	defer l.SetTop(top)

	if strings.TrimSpace(code) == "" {
		return false
	}
	if lua.LoadBuffer(l, "return "+code, "=stdin", "") != nil {
		l.SetTop(top)
		if err := lua.LoadBuffer(l, code, "=stdin", ""); err != nil {
			msg := errorText(l, top, err)
			if strings.Contains(msg, "<eof>") {
				return true
			}
			fmt.Fprintln(s.out, msg)
			return false
		}
	}

	s.log.Debug().Str("chunk", code).Msg("eval")
	if err := l.ProtectedCall(0, lua.MultipleReturns, 0); err != nil {
		fmt.Fprintln(s.out, errorText(l, top, err))
		return false
	}
	s.printResults(top)
	return false
}

func (s *Shell) printResults(top int) {
	l := s.state
	n := l.Top() - top
	if n <= 0 {
		return
	}
	parts := make([]string, n)
	for i := range n {
		parts[i] = toString(l, top+1+i)
	}
	fmt.Fprintln(s.out, strings.Join(parts, "\t"))
}

// errorText prefers the error object left on the stack, which carries the
// message raised from Lua.
func errorText(l *lua.State, top int, err error) string {
	if l.Top() > top {
		if msg, ok := l.ToString(-1); ok && msg != "" {
			return msg
		}
	}
	return err.Error()
}
