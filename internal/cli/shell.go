package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/calvinalkan/td/internal/task"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

const shellPrompt = "td> "

var errUnterminatedQuote = errors.New("unterminated quote")

// ShellCmd returns the shell command.
func ShellCmd(sess *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Interactive session",
		Long: `Start an interactive session. All commands are available without the
"td" prefix. The tasks file stays locked until the session ends.

Type "help" for commands and "exit" to leave. "rm" asks for confirmation,
"edit <id>" without text pre-fills the current text for editing.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}

			return execShell(ctx, io, sess)
		},
	}
}

// lineReader is the input side of the shell: liner on a terminal, a plain
// line scanner otherwise.
type lineReader interface {
	Prompt(prompt string) (string, error)
	PromptWithSuggestion(prompt, text string) (string, error)
	AppendHistory(line string)
	Close() error
}

func execShell(ctx context.Context, o *IO, sess *Session) error {
	st, err := sess.openLocked(o, task.Options{Now: sess.Now, Lock: true})
	if err != nil {
		return err
	}

	sess.store = st

	defer func() {
		sess.store = nil
		_ = st.Close()
	}()

	commands := slices.DeleteFunc(allCommands(sess), func(c *Command) bool {
		return c.Name() == "shell"
	})

	r := newLineReader(sess, o.out, commands)
	defer func() { _ = r.Close() }()

	o.Println("td shell - type 'help' for commands, 'exit' to quit")
	o.Println("tasks: " + st.Path())
	o.Println(task.Summarize(st.List()).Progress())

	for ctx.Err() == nil {
		line, err := r.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.AppendHistory(line)

		words, err := splitLine(line)
		if err != nil {
			o.ErrPrintln("error:", err)

			continue
		}

		if len(words) == 0 {
			continue
		}

		name, args := strings.ToLower(words[0]), words[1:]

		switch name {
		case "exit", "quit", "q":
			o.Println("Bye!")

			return nil
		case "help", "?":
			printShellHelp(o, commands)
		case "rm", "del", "delete":
			shellDelete(ctx, o, r, st, commands, args)
		case "edit":
			shellEdit(ctx, o, r, st, commands, args)
		default:
			cmd, ok := lookupCommand(commands, name)
			if !ok {
				o.Printf("Unknown command: %s (type 'help' for commands)\n", name)

				continue
			}

			cmd.Run(ctx, o, args)
		}
	}

	o.Println("Bye!")

	return nil
}

// shellDelete asks before removing an existing task.
func shellDelete(ctx context.Context, o *IO, r lineReader, st *task.Store, commands []*Command, args []string) {
	rm, _ := lookupCommand(commands, "rm")

	id, err := parseID(args)
	if err != nil {
		rm.Run(ctx, o, args)

		return
	}

	t, err := st.Get(id)
	if err != nil {
		// Deleting a missing id is a no-op; nothing to confirm.
		rm.Run(ctx, o, args)

		return
	}

	answer, err := r.Prompt(fmt.Sprintf("Delete %d %q? (y/N): ", t.ID, t.Text))
	if err != nil || !isYes(answer) {
		o.Println("Cancelled")

		return
	}

	rm.Run(ctx, o, args)
}

// shellEdit fills in the text interactively when only an id (and maybe a
// priority) was given.
func shellEdit(ctx context.Context, o *IO, r lineReader, st *task.Store, commands []*Command, args []string) {
	edit, _ := lookupCommand(commands, "edit")

	positional := slices.DeleteFunc(slices.Clone(args), func(a string) bool {
		return strings.HasPrefix(a, "-")
	})

	if len(positional) != 1 || slices.ContainsFunc(args, isPriorityFlag) {
		edit.Run(ctx, o, args)

		return
	}

	id, err := parseID(positional)
	if err != nil {
		edit.Run(ctx, o, args)

		return
	}

	t, err := st.Get(id)
	if err != nil {
		o.ErrPrintln("error:", err)

		return
	}

	text, err := r.PromptWithSuggestion("text: ", t.Text)
	if err != nil || strings.TrimSpace(text) == "" {
		o.Println("Cancelled")

		return
	}

	edit.Run(ctx, o, append(slices.Clone(args), text))
}

func isPriorityFlag(arg string) bool {
	return arg == "-p" || strings.HasPrefix(arg, "-p=") || strings.HasPrefix(arg, "--priority")
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func printShellHelp(o *IO, commands []*Command) {
	o.Println("Commands:")

	for _, c := range commands {
		o.Println(c.HelpLine())
	}

	o.Println(fmt.Sprintf("  %-22s %s", "help", "Show this help"))
	o.Println(fmt.Sprintf("  %-22s %s", "exit", "Leave the shell"))
}

// splitLine splits a shell line into words. Single and double quotes group
// words; a backslash escapes the next character outside single quotes.
func splitLine(line string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)

			escaped = false
		case r == '\\' && quote != '\'':
			escaped, inWord = true, true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, inWord = r, true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, current.String())
				current.Reset()

				inWord = false
			}
		default:
			current.WriteRune(r)

			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, errUnterminatedQuote
	}

	if inWord {
		words = append(words, current.String())
	}

	return words, nil
}

func newLineReader(sess *Session, out io.Writer, commands []*Command) lineReader {
	if f, ok := sess.In.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return newTerminalReader(sess.Config.HistoryFile, commands)
	}

	in := sess.In
	if in == nil {
		in = strings.NewReader("")
	}

	return &scriptReader{scanner: bufio.NewScanner(in), out: out}
}

// terminalReader is liner with history persisted to historyFile.
type terminalReader struct {
	state       *liner.State
	historyFile string
}

func newTerminalReader(historyFile string, commands []*Command) *terminalReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(func(line string) []string {
		var completions []string

		lower := strings.ToLower(line)
		for _, name := range commandNames(commands) {
			if strings.HasPrefix(name, lower) {
				completions = append(completions, name)
			}
		}

		return completions
	})

	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return &terminalReader{state: state, historyFile: historyFile}
}

func (t *terminalReader) Prompt(prompt string) (string, error) {
	return t.state.Prompt(prompt)
}

func (t *terminalReader) PromptWithSuggestion(prompt, text string) (string, error) {
	return t.state.PromptWithSuggestion(prompt, text, -1)
}

func (t *terminalReader) AppendHistory(line string) {
	t.state.AppendHistory(line)
}

func (t *terminalReader) Close() error {
	if t.historyFile != "" {
		if f, err := os.Create(t.historyFile); err == nil {
			_, _ = t.state.WriteHistory(f)
			_ = f.Close()
		}
	}

	return t.state.Close()
}

// scriptReader reads one line per prompt from a non-terminal input and echoes
// the prompt so transcripts stay readable.
type scriptReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (s *scriptReader) Prompt(prompt string) (string, error) {
	_, _ = io.WriteString(s.out, prompt)

	if !s.scanner.Scan() {
		_, _ = io.WriteString(s.out, "\n")

		if err := s.scanner.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	line := s.scanner.Text()
	_, _ = io.WriteString(s.out, line+"\n")

	return line, nil
}

// PromptWithSuggestion keeps the suggestion when the line is empty.
func (s *scriptReader) PromptWithSuggestion(prompt, text string) (string, error) {
	line, err := s.Prompt(prompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(line) == "" {
		return text, nil
	}

	return line, nil
}

func (s *scriptReader) AppendHistory(string) {}

func (s *scriptReader) Close() error { return nil }

func commandNames(commands []*Command) []string {
	names := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		names = append(names, c.Name())
	}

	return append(names, "help", "exit")
}
