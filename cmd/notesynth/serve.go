package main

import (
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversion and history API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newServer()
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

func newServer() *fx.App {
	return fx.New(serverOptions())
}

func serverOptions() fx.Option {
	return fx.Options(
		pipeline,
		fx.Provide(
			newRepository,
			newHistory,
			newConverter,
			newHandler,
			newHTTPServer,
		),
		fx.StopTimeout(shutdownTimeout),
		fx.Invoke(func(*http.Server) {}),
	)
}
