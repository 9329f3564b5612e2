package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

var (
	verbose    = flag.Bool("v", false, "verbose output")
	short      = flag.Bool("short", false, "run only short tests")
	race       = flag.Bool("race", true, "enable the race detector (trade monitors are concurrent)")
	cover      = flag.Bool("cover", false, "report coverage per package")
	timeout    = flag.Duration("timeout", 5*time.Minute, "test timeout")
	testRegexp = flag.String("run", "", "run only tests matching the regular expression")
	pkg        = flag.String("pkg", "./...", "package pattern to test")
)

func main() {
	flag.Parse()

	// Build test command
	args := []string{"test"}

	if *verbose {
		args = append(args, "-v")
	}
	if *short {
		args = append(args, "-short")
	}
	if *race {
		args = append(args, "-race")
	}
	if *cover {
		args = append(args, "-cover")
	}

	args = append(args, fmt.Sprintf("-timeout=%s", timeout.String()))

	if *testRegexp != "" {
		args = append(args, fmt.Sprintf("-run=%s", *testRegexp))
	}

	args = append(args, *pkg)

	cmd := exec.Command("go", args...)

	// Tests must never pick up real exchange credentials from the environment.
	env := make([]string, 0, len(os.Environ())+1)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "BINANCE_API_KEY=") || strings.HasPrefix(kv, "BINANCE_API_SECRET=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "IS_TESTNET=true")
	cmd.Env = env

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("Running tests with args: %s\n", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Printf("Error running tests: %v\n", err)
		os.Exit(1)
	}
}
