package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cmd "github.com/jpfielding/exrht.go/cmd/exrht/cmd"
	"github.com/jpfielding/exrht.go/pkg/htj2k"
	"github.com/jpfielding/exrht.go/pkg/logging"
)

var (
	GitSHA string = "NA"
)

// exit statuses
const (
	exitFailure  = 1
	exitMismatch = 2
)

func main() {
	// register sigterm for graceful shutdown
	ctx, cnc := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cnc()
	go func() {
		defer cnc() // removes the signal so a second ctrl-c kills the process
		<-ctx.Done()
	}()
	slog.SetDefault(logging.Logger(os.Stderr, false, slog.LevelInfo))
	ctx = logging.AppendCtx(ctx,
		slog.Group("exrht",
			slog.String("name", "exrht"),
			slog.String("git", GitSHA),
		))
	if err := cmd.NewRoot(ctx, GitSHA).Execute(); err != nil {
		cnc()
		if errors.Is(err, htj2k.ErrContentMismatch) {
			os.Exit(exitMismatch)
		}
		os.Exit(exitFailure)
	}
}
