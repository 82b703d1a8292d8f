package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/niksmo/inventory/config"
	"github.com/niksmo/inventory/internal/adapter/cli"
	"github.com/niksmo/inventory/internal/app"
	"github.com/niksmo/inventory/pkg/sigctx"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	flags := pflag.NewFlagSet("inventory", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	configFile := flags.String("config", "", "config file (env INVENTORY_CONFIG_FILE)")
	printConfig := flags.Bool("print-config", false, "print the loaded config")
	flags.Usage = func() { cli.Usage(os.Stderr) }
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg := config.MustLoad(config.ResolvePath(*configFile))
	if *printConfig {
		cfg.Print()
	}

	inventory := app.New(sigCtx, cfg)
	defer inventory.Close()

	opts := []cli.Opt{cli.ServeOpt(inventory.Serve)}
	if cfg.ChangeFeedEnabled() {
		opts = append(opts, cli.WatchOpt(inventory.Watch))
	}

	c := cli.New(inventory.Store(), os.Stdout, opts...)
	if err := c.Run(sigCtx, flags.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
