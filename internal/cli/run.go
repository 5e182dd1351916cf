// Package cli implements the td command line: global flag parsing, command
// dispatch, the one-shot commands and the interactive shell.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/calvinalkan/td/internal/fs"
	"github.com/calvinalkan/td/internal/task"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns exit code.
//
// sigCh may be nil. When a signal arrives the command context is cancelled;
// a second signal exits immediately with code 130.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	if len(args) < 2 {
		printUsage(out)

		return 0
	}

	globals := flag.NewFlagSet("td", flag.ContinueOnError)
	globals.SetOutput(&strings.Builder{})
	globals.SetInterspersed(false)

	help := globals.BoolP("help", "h", false, "Show help")
	cwd := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "Use specified config `file`")
	tasksFile := globals.StringP("file", "f", "", "Tasks `path` (overrides config)")

	err := globals.Parse(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printGlobalFlags(errOut, globals)

		return 1
	}

	if *help {
		printUsage(out)

		return 0
	}

	if globals.Changed("file") && *tasksFile == "" {
		fprintln(errOut, "error:", task.ErrTasksFileEmpty)
		fprintln(errOut)
		printGlobalFlags(errOut, globals)

		return 1
	}

	rest := globals.Args()
	if len(rest) == 0 {
		fprintln(errOut, "error: no command provided")
		fprintln(errOut)
		printUsage(errOut)

		return 1
	}

	cfg, err := task.LoadConfig(task.LoadConfigInput{
		WorkDirOverride:   *cwd,
		ConfigPath:        *configPath,
		TasksFileOverride: *tasksFile,
		Env:               env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	sess := &Session{
		Config: &cfg,
		FS:     fs.NewReal(),
		Now:    time.Now,
		In:     in,
		Env:    env,
	}

	commands := allCommands(sess)

	name := rest[0]
	if name == "help" {
		printUsage(out)

		return 0
	}

	cmd, ok := lookupCommand(commands, name)
	if !ok {
		fprintln(errOut, "error: unknown command:", name)
		fprintln(errOut)
		printUsage(errOut)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	if sigCh != nil {
		go watchSignals(sigCh, cancel, errOut, done)
	}

	o := NewIO(out, errOut)

	code := cmd.Run(ctx, o, rest[1:])

	return max(code, o.Finish())
}

// watchSignals cancels the command on the first signal and exits the process
// on the second.
func watchSignals(sigCh <-chan os.Signal, cancel context.CancelFunc, errOut io.Writer, done <-chan struct{}) {
	select {
	case <-sigCh:
		cancel()
	case <-done:
		return
	}

	select {
	case <-sigCh:
		fprintln(errOut, "error: interrupted")
		os.Exit(130)
	case <-done:
	}
}

// allCommands returns the commands in help order. The shell reuses the same
// set, minus itself.
func allCommands(sess *Session) []*Command {
	return []*Command{
		AddCmd(sess),
		LsCmd(sess),
		ShowCmd(sess),
		DoneCmd(sess),
		EditCmd(sess),
		RmCmd(sess),
		StatsCmd(sess),
		ShellCmd(sess),
		PrintConfigCmd(sess),
	}
}

func lookupCommand(commands []*Command, name string) (*Command, bool) {
	for _, c := range commands {
		if c.Name() == name {
			return c, true
		}
	}

	return nil, false
}

var errUnexpectedArgs = errors.New("unexpected arguments")

func noArgs(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%w: %s", errUnexpectedArgs, strings.Join(args, " "))
	}

	return nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printGlobalFlags(w io.Writer, globals *flag.FlagSet) {
	fprintln(w, "Global flags:")

	var buf strings.Builder

	globals.SetOutput(&buf)
	globals.PrintDefaults()
	globals.SetOutput(&strings.Builder{})

	_, _ = io.WriteString(w, buf.String())
}

func printUsage(w io.Writer) {
	fprintln(w, `td - minimal task manager

Usage: td [global flags] <command> [args]

Global flags:
  -C, --cwd <dir>       Run as if started in <dir>
  -c, --config <file>   Use specified config file
  -f, --file <path>     Tasks file (overrides config)
  -h, --help            Show help

Commands:`)

	for _, c := range allCommands(&Session{Config: &task.Config{}}) {
		fprintln(w, c.HelpLine())
	}

	fprintln(w)
	fprintln(w, `Run "td <command> --help" for command flags.`)
}
