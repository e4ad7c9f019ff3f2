package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/iliafrenkel/unbin/src/api"
	"github.com/iliafrenkel/unbin/src/service"
)

// ServeCommand starts the API server and blocks until SIGINT or SIGTERM.
type ServeCommand struct {
	APIKey string `long:"api-key" env:"UNBIN_API_KEY" description:"use this API key instead of a random one"`
}

// Execute implements flags.Commander.
func (cmd *ServeCommand) Execute(_ []string) error {
	// Say hello
	fmt.Printf("unbin %s\n", version)

	log := setupLog(opts.Debug)
	if opts.Debug {
		log.Logf("INFO Options: %+v", opts)
	}

	db, err := newStore()
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", opts.DB.Type, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Logf("WARN failed to close storage: %v", err)
		}
	}()

	key := cmd.APIKey
	if key == "" {
		key = uuid.NewString()
	}
	log.Logf("INFO API key: %s", key)

	apiServer := api.New(log, service.New(db), api.ServerOptions{
		Addr:           fmt.Sprintf("%s:%d", opts.Web.Host, opts.Web.Port),
		ReadTimeout:    opts.Timeouts.HTTPRead,
		WriteTimeout:   opts.Timeouts.HTTPWrite,
		IdleTimeout:    opts.Timeouts.HTTPIdle,
		LogFile:        opts.Web.LogFile,
		LogMode:        opts.Web.LogMode,
		APIKey:         key,
		AllowedOrigins: opts.Web.AllowedOrigins,
		Version:        version,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	errc := make(chan error, 1)

	go func() {
		log.Logf("INFO API server listening on %s:%d with %s storage", opts.Web.Host, opts.Web.Port, opts.DB.Type)
		errc <- apiServer.ListenAndServe()
	}()

	// Wait for either one of the OS signals or for the server to fail.
	var srvErr error
	select {
	case <-quit:
		log.Logf("INFO Shutting down ...")
	case srvErr = <-errc:
		log.Logf("ERROR Startup failed, exiting: %v", srvErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeouts.Shutdown)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		log.Logf("INFO \tAPI server forced to shutdown: %v", err)
	} else {
		log.Logf("INFO \tAPI server is down")
	}
	log.Logf("INFO Sayōnara!")

	return srvErr
}
