package main

import (
	"strings"

	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/spf13/cobra"

	"github.com/onexay/gitgraph/internal/config"
	"github.com/onexay/gitgraph/internal/httpserver"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "gitgraph-api",
		Short:        "Serve git history graphs over REST",
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			var err error
			ctx := contem.New(contem.WithLogger(logze.DefaultPtr()), contem.Exit(&err))
			defer ctx.Shutdown()
			err = run(ctx)
			if err != nil {
				logze.DefaultPtr().Error("cannot run", "error", err)
			}
			return nil
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	_ = root.Execute()
}

func run(ctx contem.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errm.Wrap(err, "load config")
	}
	level := logze.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = logze.LevelDebug
	case "warn", "warning":
		level = logze.LevelWarn
	case "error":
		level = logze.LevelError
	}
	logze.Init(logze.C().WithConsole().WithLevel(level))

	srv, err := httpserver.NewServer(ctx, cfg)
	if err != nil {
		return errm.Wrap(err, "new server")
	}
	ctx.Add(srv.Stop)

	errs := make(chan error, 1)
	go func() { errs <- srv.Run() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return errm.Wrap(err, "run server")
	}
}
