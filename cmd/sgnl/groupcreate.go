package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

type groupCreateCommand struct {
	Title  optionalString `short:"t" long:"title" description:"Group title"`
	Avatar string         `long:"avatar" description:"Path to an avatar image"`
	MMS    bool           `long:"mms" description:"Create a legacy MMS group (never announced)"`
	Args   struct {
		Members []string `positional-arg-name:"member" description:"Phone numbers or ACI UUIDs of the other members"`
	} `positional-args:"true"`
}

func (cmd *groupCreateCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	avatar, err := readAvatar(cmd.Avatar)
	if err != nil {
		return err
	}

	c := loadClient(ctx)
	defer c.Close()

	res, err := c.CreateGroup(ctx, cmd.Args.Members, avatar, cmd.Title.value, cmd.MMS)
	if err != nil {
		return err
	}

	fmt.Printf("Group created: %s\n", res.Group)
	fmt.Printf("  Thread: %d\n", res.ThreadID)
	return nil
}
