package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	client "github.com/gwillem/signal-groups"
)

type initCommand struct {
	Args struct {
		Number string `positional-arg-name:"number" required:"true" description:"Phone number in E.164 format (+31612345678)"`
	} `positional-args:"true" required:"true"`
}

func (cmd *initCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c := client.NewClient(clientOpts()...)
	if err := c.Init(ctx, cmd.Args.Number); err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("Account %s ready.\n", c.Number())
	return nil
}
