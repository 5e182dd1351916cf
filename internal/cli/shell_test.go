package cli_test

import (
	"strings"
	"testing"

	"github.com/calvinalkan/td/internal/cli"
)

func Test_Shell_Runs_Commands_From_Script(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	script := strings.Join([]string{
		`add "Buy milk" -p high`,
		`add Call Alice --priority low`,
		`done 1`,
		`ls --filter pending`,
		`stats`,
		`exit`,
	}, "\n")

	stdout, stderr, code := c.RunWithInput(script, "shell")
	if code != 0 {
		t.Fatalf("exitCode=%d, stderr=%s", code, stderr)
	}

	cli.AssertContains(t, stdout, "td shell")
	cli.AssertContains(t, stdout, "tasks: "+c.TasksFile())
	cli.AssertContains(t, stdout, "Ready to be productive!")
	cli.AssertContains(t, stdout, "td> ")
	cli.AssertContains(t, stdout, "Completed 1")
	cli.AssertContains(t, stdout, "2 [ ] Low    Call Alice")
	cli.AssertContains(t, stdout, "Progress: 1/2 tasks completed (50%)")
	cli.AssertContains(t, stdout, "Bye!")

	cli.AssertContains(t, c.ReadTasksFile(), `"text": "Buy milk"`)
}

func Test_Shell_Asks_Before_Deleting(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("add", "keep")
	c.MustRun("add", "drop")

	script := strings.Join([]string{
		"rm 1",
		"n",
		"rm 2",
		"yes",
		"rm 42",
		"ls",
	}, "\n")

	stdout, stderr, code := c.RunWithInput(script, "shell")
	if code != 0 {
		t.Fatalf("exitCode=%d, stderr=%s", code, stderr)
	}

	cli.AssertContains(t, stdout, `Delete 1 "keep"? (y/N)`)
	cli.AssertContains(t, stdout, "Cancelled")
	cli.AssertContains(t, stdout, "Deleted 2")
	cli.AssertContains(t, stdout, "No task 42")

	content := c.ReadTasksFile()
	cli.AssertContains(t, content, `"text": "keep"`)
	cli.AssertNotContains(t, content, `"text": "drop"`)
}

func Test_Shell_Edit_Prefills_Current_Text(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("add", "Buy milk")

	script := strings.Join([]string{
		"edit 1",
		"Buy oat milk",
		"edit 1",
		"",
		"edit 1 -p high",
	}, "\n")

	stdout, stderr, code := c.RunWithInput(script, "shell")
	if code != 0 {
		t.Fatalf("exitCode=%d, stderr=%s", code, stderr)
	}

	cli.AssertContains(t, stdout, "text: ")
	cli.AssertContains(t, stdout, "1 [ ] High   Buy oat milk")
}

func Test_Shell_Reports_Errors_And_Keeps_Going(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	script := strings.Join([]string{
		"frobnicate",
		`add "unterminated`,
		"done 5",
		"shell",
		"add still works",
		"quit",
	}, "\n")

	stdout, stderr, code := c.RunWithInput(script, "shell")
	if code != 0 {
		t.Fatalf("exitCode=%d, stderr=%s", code, stderr)
	}

	cli.AssertContains(t, stdout, "Unknown command: frobnicate")
	cli.AssertContains(t, stdout, "Unknown command: shell")
	cli.AssertContains(t, stderr, "unterminated quote")
	cli.AssertContains(t, stderr, "task not found: 5")
	cli.AssertContains(t, c.ReadTasksFile(), "still works")
}

func Test_Shell_Releases_Lock_On_Exit(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	// No input: the shell sees EOF right away.
	c.MustRun("shell")
	c.MustRun("add", "after shell")

	cli.AssertContains(t, c.MustRun("ls"), "after shell")
}
