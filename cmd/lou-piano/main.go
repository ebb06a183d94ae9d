// Command lou-piano compiles scores into pcode for the piano hand, replays
// pcode into hardware frames and plays them over a serial link.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: lou-piano <command> [flags]

commands:
  compile   compile a MIDI file or YAML event list to pcode
  simulate  replay a score or pcode program and print hardware frames
  play      replay and send frames to the hand in real time

run "lou-piano <command> -h" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "lou-piano:", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	}
	switch args[0] {
	case "compile":
		return runCompile(args[1:], stdout)
	case "simulate":
		return runSimulate(args[1:], stdout)
	case "play":
		return runPlay(ctx, args[1:])
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", args[0])
}
