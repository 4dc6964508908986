package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frantjc/ota/command"
	xos "github.com/frantjc/x/os"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	_ "gocloud.dev/pubsub/mempubsub"
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ota:", err)
	}

	xos.ExitFromError(err)
}

// run executes the root command until it returns or the process is
// signaled. Cancellation by a signal is a clean exit.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.NewOta().ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
