// =============================================================================
// batch.go - Batch Test Runs
// =============================================================================
//
// Batch mode is the default: every vector file under the test path is run
// against the connected server, failures are printed as they happen, and a
// summary closes the report. The console's "run" command reuses the same
// code on the console's runner.
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/inseo-oh/con68/cpuprotocol"
	"github.com/inseo-oh/con68/harness"
)

// testSession is the outcome of running a set of vector files.
type testSession struct {
	summary    *harness.Summary
	fileErrors int
}

// ok reports whether every file loaded and every test passed.
func (s testSession) ok() bool {
	return s.fileErrors == 0 && s.summary.Failed == 0
}

// newRunner creates a test runner on a fresh RAM image and applies the
// per-test time limit from the command line.
func newRunner(client *cpuprotocol.Client, args arguments) *harness.Runner {
	runner := harness.NewRunner(client, cpuprotocol.NewMemory(cpuprotocol.DefaultRAMSize))
	if args.timeLimit > 0 {
		runner.TimeLimit = args.timeLimit
	}
	return runner
}

// enableTraces turns on execution and exception trace, so that failure
// reports carry a full execution log.
func enableTraces(ctx context.Context, client *cpuprotocol.Client) error {
	if err := client.SetTraceExec(ctx, true); err != nil {
		return fmt.Errorf("enable execution trace: %w", err)
	}
	if err := client.SetTraceExc(ctx, true); err != nil {
		return fmt.Errorf("enable exception trace: %w", err)
	}
	return nil
}

// runTests runs the tests under path that match filters. Failed tests are
// reported to out as soon as they finish; files that cannot be loaded are
// reported to errOut and skipped.
func runTests(ctx context.Context, runner *harness.Runner, path string, filters []string, out, errOut io.Writer) (testSession, error) {
	files, err := harness.Discover(path)
	if err != nil {
		return testSession{}, err
	}

	session := testSession{summary: harness.NewSummary()}
	for _, file := range files {
		err := runner.RunFile(ctx, file, filters, func(r harness.Result) {
			session.summary.Add(r)
			if !r.Passed() {
				harness.WriteFailure(out, r)
			}
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				session.summary.Finish()
				return session, ctxErr
			}
			fmt.Fprintf(errOut, "Error: %v\n", err)
			session.fileErrors++
		}
	}
	session.summary.Finish()
	return session, nil
}

// runBatch runs the whole test path and prints the summary. It returns
// whether every test passed.
func runBatch(ctx context.Context, client *cpuprotocol.Client, args arguments, out, errOut io.Writer) (bool, error) {
	if args.trace {
		if err := enableTraces(ctx, client); err != nil {
			return false, err
		}
	}

	fmt.Fprintln(out, "Connected to server")
	session, err := runTests(ctx, newRunner(client, args), args.testPath, args.filters, out, errOut)
	if session.summary == nil {
		return false, err
	}

	fmt.Fprintln(out, session.summary.String())
	fmt.Fprintln(out, session.summary.Duration())
	return session.ok() && err == nil, err
}
