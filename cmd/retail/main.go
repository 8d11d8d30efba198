// Команда retail — CLI для товаров, покупателей, заказов и платежей.
// Хранилище выбирается через RETAIL_STORAGE_DRIVER; для memory состояние
// живёт только в пределах одного запуска.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/app"
	"github.com/vladislavdragonenkov/retail/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// run никогда не возвращает ошибку наружу: любые сбои печатаются как "Error: ...".
func run(ctx context.Context, args []string, stdout, stderr io.Writer) {
	cfg, err := app.ConfigFromEnv()
	if err != nil {
		_, _ = fmt.Fprintf(stdout, "Error: %v\n", err)
		return
	}
	if _, ok := os.LookupEnv("RETAIL_LOG_LEVEL"); !ok {
		cfg.LogLevel = "warn"
	}

	baseLogger, err := app.NewLogger(cfg, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stdout, "Error: %v\n", err)
		return
	}
	logger := log.NewEntry(baseLogger).WithField("component", "cli")

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stdout, "Error: %v\n", err)
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	deps := app.NewDependencies(store, nil, logger)
	cli.New(deps.CLIServices(), stdout, logger).Run(ctx, args)
}
