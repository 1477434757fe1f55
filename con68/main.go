// =============================================================================
// main.go - con68 Entry Point
// =============================================================================
//
// con68 runs the SingleStepTests 68000 test vectors against a remote 68000
// emulator. The emulator executes instructions; con68 owns the memory the
// CPU sees, loads each test's initial state, ticks the CPU until it reaches
// the expected PC and compares the final registers and RAM.
//
// Usage:
//   con68 [options]
//   con68 -t m68000/v1/ABCD.json.gz -f "c100"
//   con68 -i
//
// Startup sequence:
//   1. Parse command-line arguments
//   2. Connect to the server (launching --server if nothing is listening)
//   3. Run the test vectors (batch mode) or start the console (-i)
//   4. Send BYE and exit, with status 1 if any test failed
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/inseo-oh/con68/cpuprotocol"
)

// =============================================================================
// Version Information
// =============================================================================

const (
	version   = "0.1.0"
	appName   = "con68"
	copyright = "Copyright (c) 2025, Oh Inseo (YJK)"

	// defaultTestPath is where the SingleStepTests repository keeps the
	// 68000 vectors.
	defaultTestPath = "m68000/v1/"
)

// fullTitle returns the full application title with version.
func fullTitle() string {
	return fmt.Sprintf("%s v%s", appName, version)
}

// welcomeBanner returns the banner shown when the console starts.
func welcomeBanner() string {
	return fmt.Sprintf(`%s - 68000 Test Vector Client
%s
Type '.help' for available commands.
Type '.quit' to exit.
`, fullTitle(), copyright)
}

// =============================================================================
// Command-Line Argument Parsing
// =============================================================================

// GO CONCEPT: Structs as Configuration
// -------------------------------------
// All command-line options live in one struct. The parser fills it in and
// every other part of the program takes what it needs from it. Fields that
// are not set on the command line keep the defaults assigned by
// defaultArguments.
type arguments struct {
	testPath string
	filters  []string

	host string
	port int

	// timeout is how long one command waits for its reply.
	timeout time.Duration
	// timeLimit is how long one test may run.
	timeLimit time.Duration

	trace       bool
	server      string
	interactive bool
	showHelp    bool
	showVersion bool
}

func defaultArguments() arguments {
	return arguments{
		testPath: defaultTestPath,
		host:     cpuprotocol.DefaultHost,
		port:     cpuprotocol.DefaultPort,
		timeout:  cpuprotocol.CommandTimeout,
		trace:    true,
	}
}

// addr returns the host:port to connect to.
func (a arguments) addr() string {
	return net.JoinHostPort(a.host, strconv.Itoa(a.port))
}

// parseArguments parses argv (without the program name).
//
// GO CONCEPT: Manual Argument Parsing
// ------------------------------------
// Go's flag package does not allow repeated flags or mixing short and long
// names without extra work, so the options are walked by hand: take the
// next argument, switch on it, and take one more for options that carry a
// value.
func parseArguments(argv []string) (arguments, error) {
	args := defaultArguments()

	remaining := argv
	value := func(opt string) (string, error) {
		if len(remaining) == 0 {
			return "", fmt.Errorf("expected argument after %s", opt)
		}
		v := remaining[0]
		remaining = remaining[1:]
		return v, nil
	}
	positive := func(opt, s string) (int, error) {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%s requires a positive number, got %q", opt, s)
		}
		return n, nil
	}

	for len(remaining) > 0 {
		arg := remaining[0]
		remaining = remaining[1:]

		switch arg {
		case "-t", "--tests":
			v, err := value(arg)
			if err != nil {
				return args, err
			}
			args.testPath = v

		case "-f", "--filter":
			v, err := value(arg)
			if err != nil {
				return args, err
			}
			args.filters = append(args.filters, v)

		case "--host":
			v, err := value(arg)
			if err != nil {
				return args, err
			}
			args.host = v

		case "--port":
			v, err := value(arg)
			if err != nil {
				return args, err
			}
			n, err := positive(arg, v)
			if err != nil {
				return args, err
			}
			if n > 65535 {
				return args, fmt.Errorf("%s: %d is not a valid port", arg, n)
			}
			args.port = n

		case "--timeout":
			v, err := value(arg)
			if err != nil {
				return args, err
			}
			n, err := positive(arg, v)
			if err != nil {
				return args, err
			}
			args.timeout = time.Duration(n) * time.Millisecond

		case "--time-limit":
			v, err := value(arg)
			if err != nil {
				return args, err
			}
			n, err := positive(arg, v)
			if err != nil {
				return args, err
			}
			args.timeLimit = time.Duration(n) * time.Second

		case "--no-trace":
			args.trace = false

		case "--server":
			v, err := value(arg)
			if err != nil {
				return args, err
			}
			args.server = v

		case "--interactive", "-i":
			args.interactive = true

		case "--help", "-h":
			args.showHelp = true

		case "--version", "-v":
			args.showVersion = true

		default:
			return args, fmt.Errorf("unknown argument: %s", arg)
		}
	}

	return args, nil
}

// printUsage prints the help message showing all available options.
func printUsage() {
	fmt.Print(`USAGE: con68 [options]

OPTIONS:
  -t, --tests <path>    Test vector file or directory (default: m68000/v1/)
  -f, --filter <text>   Only run tests whose name contains text (repeatable)
  --host <host>         Emulator server host (default: 127.0.0.1)
  --port <port>         Emulator server port (default: 6800)
  --timeout <ms>        Per-command reply timeout (default: 1000)
  --time-limit <s>      Per-test execution limit (default: 1)
  --no-trace            Do not enable execution and exception trace
  --server <exe>        Launch this emulator if none is listening
  -i, --interactive     Start the interactive console
  -h, --help            Show this help
  -v, --version         Show version

ENVIRONMENT:
  CON68_SERVER          Emulator executable, used when --server is not given

EXAMPLES:
  con68                                     Run every vector in m68000/v1/
  con68 -t m68000/v1/ABCD.json.gz           Run one file
  con68 -t m68000/v1 -f ADD -f SUB          Run ADD and SUB tests only
  con68 -i                                  Drive the CPU by hand

Test files are .json or .json.gz files from the SingleStepTests project.
The exit status is 1 if any test failed.
`)
}

// printVersion prints the application version.
func printVersion() {
	fmt.Println(fullTitle())
}

// printError prints an error message to stderr.
func printError(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// =============================================================================
// Server Connection
// =============================================================================

// connectOrLaunch connects to the emulator server. When a server executable
// is configured and nothing is listening yet, it is launched first and its
// PID returned so it can be stopped on exit.
func connectOrLaunch(args arguments) (*cpuprotocol.Client, int, error) {
	client := cpuprotocol.NewClient(
		cpuprotocol.WithCommandTimeout(args.timeout),
		cpuprotocol.WithLogger(log.New(os.Stderr, "[CPUClient] ", log.LstdFlags)),
	)
	addr := args.addr()

	var launchedPid int
	if name := serverName(args.server); name != "" && !isListening(addr) {
		fmt.Printf("No emulator server on %s. Launching %s...\n", addr, name)
		pid, err := launchServer(name, addr)
		if err != nil {
			terminate(pid)
			return nil, 0, fmt.Errorf("failed to start emulator server: %w", err)
		}
		launchedPid = pid
		fmt.Printf("Emulator server started (PID: %d)\n", launchedPid)
	}

	fmt.Printf("Connecting to %s...\n", addr)
	if err := client.Connect(addr); err != nil {
		terminate(launchedPid)
		return nil, 0, err
	}
	return client, launchedPid, nil
}

// terminate sends SIGTERM to a server this process launched.
func terminate(pid int) {
	if pid <= 0 {
		return
	}
	if proc, err := os.FindProcess(pid); err == nil {
		proc.Signal(syscall.SIGTERM)
	}
}

// =============================================================================
// Signal Handling
// =============================================================================

// setupSignalHandler runs cleanup and exits when SIGINT or SIGTERM arrives.
//
// GO CONCEPT: Goroutines and Channels for Signals
// ------------------------------------------------
// signal.Notify delivers signals on a channel instead of interrupting the
// program. A goroutine blocks on that channel, so the main goroutine keeps
// running tests until a signal actually arrives.
func setupSignalHandler(cleanup func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println()
		cleanup()
		os.Exit(0)
	}()
}

// =============================================================================
// Main Entry Point
// =============================================================================

func main() {
	args, err := parseArguments(os.Args[1:])
	if err != nil {
		printError(err.Error())
		printUsage()
		os.Exit(1)
	}

	if args.showHelp {
		printUsage()
		return
	}
	if args.showVersion {
		printVersion()
		return
	}

	client, launchedPid, err := connectOrLaunch(args)
	if err != nil {
		printError(err.Error())
		if errors.Is(err, syscall.ECONNREFUSED) {
			printError("Is the emulator server running? Use --server to launch one.")
		}
		os.Exit(1)
	}

	client.SetDisconnectHandler(func(err error) {
		fmt.Fprintf(os.Stderr, "\nDisconnected from emulator server: %v\n", err)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanup := func() {
		cancel()
		client.Disconnect()
		terminate(launchedPid)
	}
	setupSignalHandler(cleanup)

	ok := true
	if args.interactive {
		runConsole(ctx, client, args)
	} else {
		ok, err = runBatch(ctx, client, args, os.Stdout, os.Stderr)
		if err != nil {
			printError(err.Error())
		}
	}

	client.Bye()
	cleanup()
	if !ok {
		os.Exit(1)
	}
}

// runConsole starts the interactive console on stdin.
func runConsole(ctx context.Context, client *cpuprotocol.Client, args arguments) {
	if args.trace {
		if err := enableTraces(ctx, client); err != nil {
			printError(err.Error())
		}
	}

	editor := NewLineEditor()
	defer editor.Close()

	if editor.IsInteractive() {
		fmt.Print(welcomeBanner())
		fmt.Println()
	}
	runREPL(ctx, editor, newConsole(client, newRunner(client, args), os.Stdout, os.Stderr))
}
