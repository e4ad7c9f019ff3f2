// Copyright 2021 Ilia Frenkel. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE.txt file.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/iliafrenkel/unbin/src/store"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version information, comes from the build flags (see Makefile)
var (
	version = `¯\_(ツ)_/¯`
)

var opts struct {
	Timeouts struct {
		Shutdown  time.Duration `long:"shutdown" env:"SHUTDOWN" default:"10s" description:"server graceful shutdown timeout"`
		HTTPRead  time.Duration `long:"http-read" env:"HTTP_READ" default:"15s" description:"duration for reading the entire request"`
		HTTPWrite time.Duration `long:"http-write" env:"HTTP_WRITE" default:"15s" description:"duration before timing out writes of the response"`
		HTTPIdle  time.Duration `long:"http-idle" env:"HTTP_IDLE" default:"60s" description:"amount of time to wait for the next request"`
		Client    time.Duration `long:"client" env:"CLIENT" default:"10s" description:"client request timeout"`
	} `group:"timeout" namespace:"timeout" env-namespace:"UNBIN_TIMEOUT"`
	Web struct {
		Host           string   `long:"host" env:"HOST" default:"localhost" description:"hostname part of the API server address"`
		Port           uint16   `long:"port" env:"PORT" default:"3000" description:"port part of the API server address"`
		LogFile        string   `long:"log-file" env:"LOG_FILE" default:"" description:"full path to the log file, default is stdout"`
		LogMode        string   `long:"log-mode" env:"LOG_MODE" default:"production" choice:"debug" choice:"production" description:"log mode, can be 'debug' or 'production'"`
		AllowedOrigins []string `long:"allowed-origin" env:"ALLOWED_ORIGINS" env-delim:"," description:"CORS allowed origin, can be repeated, default is any"`
	} `group:"web" namespace:"web" env-namespace:"UNBIN_WEB"`
	DB struct {
		Type       string           `long:"type" env:"TYPE" default:"sqlite" choice:"memory" choice:"sqlite" choice:"postgres" choice:"disk" description:"database type to use for storage"`
		Connection string           `long:"connection" env:"CONNECTION" default:"unbin.db" description:"sqlite file or postgres connection string, ignored for memory and disk"`
		Disk       store.DiskConfig `group:"disk" namespace:"disk" env-namespace:"DISK"`
	} `group:"db" namespace:"db" env-namespace:"UNBIN_DB"`
	Client struct {
		URL    string `long:"url" env:"URL" default:"http://localhost:3000" description:"API server base URL"`
		APIKey string `long:"api-key" env:"API_KEY" default:"" description:"API key, fetched from the server when empty"`
	} `group:"client" namespace:"client" env-namespace:"UNBIN_CLIENT"`
	Debug bool `long:"debug" env:"UNBIN_DEBUG" description:"debug mode"`

	Serve  ServeCommand  `command:"serve" description:"start the API server"`
	List   ListCommand   `command:"list" description:"list pastes, newest first"`
	Show   ShowCommand   `command:"show" description:"print a paste"`
	Create CreateCommand `command:"create" description:"create new paste"`
	Update UpdateCommand `command:"update" description:"replace title and text of a paste"`
	Delete DeleteCommand `command:"delete" description:"delete a paste"`
	APIKey APIKeyCommand `command:"apikey" description:"print the API key of the server"`
}

func main() {
	// Values from .env never override the real environment. The file is
	// optional.
	_ = godotenv.Load()

	// Parse the flags and run the command
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	p.NamespaceDelimiter = "-"
	p.EnvNamespaceDelimiter = "_"
	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func setupLog(dbg bool) *lgr.Logger {
	if dbg {
		return lgr.New(lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces)
	}
	return lgr.New()
}

// newStore opens the storage backend selected with --db.type.
func newStore() (store.Interface, error) {
	switch opts.DB.Type {
	case "memory":
		return store.NewMemDB(), nil
	case "sqlite":
		return store.NewSQLite(opts.DB.Connection, true)
	case "postgres":
		return store.NewPostgres(opts.DB.Connection, true)
	case "disk":
		return store.NewDiskStorage(&opts.DB.Disk)
	default:
		return nil, fmt.Errorf("unknown database type: %s", opts.DB.Type)
	}
}
