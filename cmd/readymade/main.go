package main

import (
	"fmt"
	"io"
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/FyraLabs/readymade/internal/errs"
	"github.com/FyraLabs/readymade/internal/helper"
	"github.com/FyraLabs/readymade/internal/install"
	"github.com/FyraLabs/readymade/internal/playbook"
	"github.com/FyraLabs/readymade/internal/supervisor"
)

// Version holds the readymade version number; usually overridden at build
// time with -ldflags.
var Version string = ""

// helper variables for unit testing
var osExit = os.Exit
var stdinRead = io.ReadAll
var captureStd = helper.CaptureStd

// Options is the top-level flag set. Exactly one of NonInteractive or the
// default (front-end) mode applies per invocation; they are mutually
// exclusive by convention, not by go-flags group structure, since
// NonInteractive is only ever set by the supervisor re-exec itself.
type Options struct {
	Version bool `long:"version" description:"Print the readymade version and exit"`
}

// InstallerOpts carries the flags specific to running an install, shared
// between the front-end and privileged paths.
type InstallerOpts struct {
	NonInteractive string `long:"non-interactive" value-name:"CHANNEL-ID" description:"Run as the privileged installer, reporting status over the named IPC channel. Set only by the supervisor re-exec; do not pass by hand." optional:"yes"`
	Debug          bool   `long:"debug" description:"Enable debug-build behaviors (dry-run disk provisioning)"`
	LogLevel       string `long:"log-level" default:"info" description:"Log level: trace, debug, info, warn, error"`
}

var stateMachineLongDesc = `readymade reads a finalized playbook as JSON from stdin and performs one
unattended install. Running it directly (without --non-interactive) spawns
a privileged copy of itself under pkexec and streams status back over a
local IPC channel; running it with --non-interactive is reserved for that
privileged copy.`

func main() {
	opts := new(Options)
	installerOpts := new(InstallerOpts)

	parser := flags.NewParser(opts, flags.Default)
	parser.LongDescription = stateMachineLongDesc
	if _, err := parser.AddGroup("Installer Options", "Options controlling one install run", installerOpts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		osExit(1)
		return
	}

	// go-flags writes help and parse-error text straight to stdout/stderr
	// as it parses; capture both so a help request can be printed cleanly
	// and any other error gets our own "Error: " prefix instead of two
	// copies of the message.
	stdout, restoreStdout, err := captureStd(&os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to capture stdout: %s\n", err)
		osExit(1)
		return
	}
	defer restoreStdout()
	stderr, restoreStderr, err := captureStd(&os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to capture stderr: %s\n", err)
		osExit(1)
		return
	}
	defer restoreStderr()

	_, parseErr := parser.Parse()
	restoreStdout()
	restoreStderr()

	if parseErr != nil {
		if e, ok := parseErr.(*flags.Error); ok && e.Type == flags.ErrHelp {
			if out, readErr := io.ReadAll(stdout); readErr == nil {
				fmt.Print(string(out))
			}
			osExit(0)
			return
		}
		if errOut, readErr := io.ReadAll(stderr); readErr == nil && len(errOut) > 0 {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(errOut))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", parseErr)
		}
		osExit(1)
		return
	}

	if opts.Version {
		if Version == "" {
			Version = "unknown"
		}
		fmt.Printf("readymade %s\n", Version)
		osExit(0)
		return
	}

	logLevel := installerOpts.LogLevel
	if env := os.Getenv("READYMADE_LOG"); env != "" {
		logLevel = env
	}
	if lvl, err := logrus.ParseLevel(logLevel); err == nil {
		logrus.SetLevel(lvl)
	}

	var runErr error
	if installerOpts.NonInteractive != "" {
		runErr = runPrivileged(installerOpts)
	} else {
		runErr = runFrontend(installerOpts)
	}
	if runErr != nil {
		reportAndExit(runErr)
	}
}

// runPrivileged is the --non-interactive entry point: it runs as the
// process the supervisor pkexec'd, reads the playbook from its own stdin,
// and streams progress back over the channel named on the command line.
func runPrivileged(opts *InstallerOpts) error {
	raw, err := stdinRead(os.Stdin)
	if err != nil {
		return errs.Wrap(errs.IO, err, "reading playbook from stdin")
	}

	pb, err := playbook.Decode(raw)
	if err != nil {
		return err
	}

	client, err := supervisor.DialChannel(opts.NonInteractive)
	if err != nil {
		return err
	}
	defer client.Close()

	runOpts := install.Options{
		InstallerVersion: Version,
		DebugBuild:       opts.Debug,
		Status: func(msg string) {
			// Status reporting is best-effort: a broken IPC pipe must not
			// abort an install that is otherwise making progress.
			_ = client.Send(msg)
		},
	}
	return install.Run(pb, runOpts)
}

// runFrontend is the unprivileged path: it reads the same playbook JSON
// from its own stdin, then re-execs itself under pkexec via the
// supervisor, printing each status line as it arrives.
func runFrontend(opts *InstallerOpts) error {
	raw, err := stdinRead(os.Stdin)
	if err != nil {
		return errs.Wrap(errs.IO, err, "reading playbook from stdin")
	}

	if _, err := playbook.Decode(raw); err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return errs.Wrap(errs.IO, err, "resolving own executable path")
	}

	sup := &supervisor.Supervisor{
		SelfPath: self,
		LogLevel: opts.LogLevel,
		StatusSink: func(msg string) {
			fmt.Println(msg)
		},
	}
	return sup.Install(raw)
}

// reportAndExit prints a structured failure report and exits with the
// tool's own exit code when known, or 1 otherwise. No attempt is made to
// undo successful destructive steps already taken.
func reportAndExit(err error) {
	if e, ok := err.(*errs.Error); ok {
		fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", e.Kind, e.Msg)
		if e.Tool != "" {
			fmt.Fprintf(os.Stderr, "  tool: %s (exit %d)\n", e.Tool, e.ExitCode)
		}
		if e.StderrTail != "" {
			fmt.Fprintf(os.Stderr, "  stderr tail:\n%s\n", e.StderrTail)
		}
		if e.ExitCode > 0 {
			osExit(e.ExitCode)
			return
		}
		osExit(1)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	osExit(1)
}
