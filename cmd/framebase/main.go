package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/framebase/framebase/pkg/framebase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := framebase.Main(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "framebase:", err)
		os.Exit(1)
	}
}
