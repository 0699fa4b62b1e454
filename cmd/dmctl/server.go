package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/schema"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/server"
	"github.com/doodlesbykumbi/datamapper-in-go/pkg/server/endpoints"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the model browsing server",
	Long: `Run the model browsing server.

The server answers read-only JSON requests for every model in the schema.
With --watch, model definitions are reloaded when the schema changes; requests
in flight finish with the previous definitions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		host, _ := cmd.Flags().GetString("bind-address")
		if host == "" {
			host = env.cfg.BindAddress
		}
		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = strconv.Itoa(env.cfg.Port)
		}

		s := server.NewServer(env.mapper, env.log, host, port)
		endpoints.RegisterAll(s)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			go func() {
				err := schema.Watch(ctx, env.path, env.log, func(next *schema.Schema) {
					mapper, err := env.remap(next)
					if err != nil {
						env.log.Error().Err(err).Msg("schema not applied")
						return
					}
					s.SetMapper(mapper)
				})
				if err != nil {
					env.log.Error().Err(err).Msg("schema watch stopped")
				}
			}()
		}

		errs := make(chan error, 1)
		go func() {
			env.log.Info().Str("address", fmt.Sprintf("http://%s:%s", host, port)).Msg("running server")
			errs <- s.Start()
		}()

		select {
		case err := <-errs:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			env.log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("port", "p", "", "server listen port (default from configuration)")
	serverCmd.Flags().StringP("bind-address", "b", "", "server bind address (default from configuration)")
	serverCmd.Flags().Bool("watch", false, "reload model definitions when the schema changes")
}
