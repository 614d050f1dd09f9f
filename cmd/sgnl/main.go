// Command sgnl is a CLI for managing Signal group conversations.
//
// Usage:
//
//	sgnl init <number>                    Create the local account database
//	sgnl group-create <member>...         Create a group and announce it
//	sgnl group-update <group> <member>... Replace a group's state and announce it
//	sgnl groups                           List known groups
//	sgnl media                            List stored media
//	sgnl outbox <group>                   Show control messages sent for a group
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	client "github.com/gwillem/signal-groups"
)

type globalOpts struct {
	DB          string `long:"db" env:"SGNL_DB" description:"Path to database file"`
	Account     string `short:"a" long:"account" description:"Phone number of account to use (e.g. +1234567890)"`
	DispatchURL string `long:"dispatch-url" env:"SGNL_DISPATCH_URL" description:"WebSocket URL group updates are pushed to"`
	Verbose     bool   `short:"v" long:"verbose" env:"SGNL_VERBOSE" description:"Enable verbose logging"`

	Init        initCommand        `command:"init" description:"Create the local account database"`
	GroupCreate groupCreateCommand `command:"group-create" description:"Create a group and announce it to its members"`
	GroupUpdate groupUpdateCommand `command:"group-update" description:"Replace members, admins, title and avatar of a group"`
	Groups      groupsCommand      `command:"groups" description:"List known groups"`
	Media       mediaCommand       `command:"media" description:"List stored media, globally or for one conversation"`
	Outbox      outboxCommand      `command:"outbox" description:"Show control messages recorded for a group"`
}

var opts globalOpts

func main() {
	// Values from .env never override the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
		os.Exit(1)
	}

	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = false

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func clientOpts() []client.Option {
	var copts []client.Option

	// Resolve database path from --db or --account
	dbPath := opts.DB
	if dbPath == "" && opts.Account != "" {
		var err error
		dbPath, err = client.DiscoverDBByNumber(opts.Account)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if dbPath != "" {
		copts = append(copts, client.WithDBPath(dbPath))
	}

	if opts.DispatchURL != "" {
		copts = append(copts, client.WithDispatchURL(opts.DispatchURL))
	}
	if opts.Verbose {
		copts = append(copts, client.WithLogger(log.New(os.Stderr, "", log.LstdFlags)))
	}
	return copts
}

// loadClient creates and loads a client, exiting on failure.
func loadClient(ctx context.Context) *client.Client {
	c := client.NewClient(clientOpts()...)
	if err := c.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return c
}
