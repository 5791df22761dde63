package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/blackwell-systems/condax/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := app.Execute(ctx)
	stop()
	os.Exit(app.ExitCode(err, os.Stderr))
}
