package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
	"github.com/ojpbarbosa/rinha-interpreter/pkg/interpreter"
	"github.com/ojpbarbosa/rinha-interpreter/pkg/runtime"
)

const (
	replHistoryFile = "repl_history"
	promptMain      = "rinha> "
	promptCont      = "  ...> "
)

const replHelp = `Enter a term or program as JSON. Top-level lets stay bound between entries.
REPL commands:
  :env     List global bindings
  :help    Show this message
  :quit    Exit the REPL
`

func runRepl(args []string) int {
	if len(args) > 0 {
		fmt.Fprintf(os.Stderr, "rinha repl does not take arguments (received %s)\n", strings.Join(args, " "))
		return 1
	}
	interp := interpreter.New(interpreter.WithStdout(os.Stdout), interpreter.WithStderr(os.Stderr))
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return replStream(interp, os.Stdin, os.Stdout, os.Stderr)
	}
	return replInteractive(interp)
}

// replStream evaluates a sequence of JSON documents without echoing results.
// It keeps going after a failed entry and reports 1 if any entry failed.
func replStream(interp *interpreter.Interpreter, r io.Reader, out, errOut io.Writer) int {
	dec := json.NewDecoder(r)
	status := 0
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return status
			}
			fmt.Fprintf(errOut, "repl: %v\n", err)
			return 1
		}
		if _, ok := evalEntry(interp, raw, errOut); !ok {
			status = 1
		}
	}
}

func replInteractive(interp *interpreter.Interpreter) int {
	fmt.Fprintf(os.Stdout, "%s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :help for commands.\n", cliToolVersion)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := resolveRinhaHome(); err == nil {
		histPath = filepath.Join(home, replHistoryFile)
	}
	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if err := os.MkdirAll(filepath.Dir(histPath), 0o755); err != nil {
				return
			}
			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	for {
		src, ok := readJSONEntry(ln, promptMain, promptCont)
		if !ok {
			fmt.Fprintln(os.Stdout)
			return 0
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		if handled, exit := replCommand(interp, trimmed, os.Stdout); handled {
			if exit {
				return 0
			}
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(trimmed, "\n", " "))
		if val, ok := evalEntry(interp, []byte(trimmed), os.Stderr); ok {
			fmt.Fprintf(os.Stdout, "=> %s\n", val)
		}
	}
}

// replCommand runs a colon command. handled is false when line is not one.
func replCommand(interp *interpreter.Interpreter, line string, out io.Writer) (handled, exit bool) {
	if !strings.HasPrefix(line, ":") {
		return false, false
	}
	switch strings.ToLower(line) {
	case ":quit", ":q", ":exit":
		return true, true
	case ":help":
		io.WriteString(out, replHelp)
	case ":env":
		env := interp.GlobalEnvironment()
		values := env.Snapshot()
		for _, name := range env.Keys() {
			fmt.Fprintf(out, "%s = %s\n", name, values[name])
		}
	default:
		fmt.Fprintf(out, "unknown command %s. Type :help for commands.\n", line)
	}
	return true, false
}

func evalEntry(interp *interpreter.Interpreter, data []byte, errOut io.Writer) (runtime.Value, bool) {
	file, err := ast.DecodeEntry(data)
	if err != nil {
		fmt.Fprintf(errOut, "decode: %v\n", err)
		return nil, false
	}
	val, err := interp.Evaluate(file.Expression, interp.GlobalEnvironment())
	if err != nil {
		fmt.Fprintln(errOut, err)
		return nil, false
	}
	return val, true
}

// readJSONEntry reads lines until they form one complete JSON value, or a
// single colon command.
func readJSONEntry(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder
	for {
		var (
			line string
			err  error
		)
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			b.Reset()
			continue
		}
		if err != nil {
			return "", true
		}

		if b.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !incompleteJSON(b.String()) {
			return b.String(), true
		}
	}
}

func incompleteJSON(src string) bool {
	if strings.TrimSpace(src) == "" {
		return false
	}
	var raw json.RawMessage
	err := json.NewDecoder(bytes.NewReader([]byte(src))).Decode(&raw)
	return errors.Is(err, io.ErrUnexpectedEOF)
}
