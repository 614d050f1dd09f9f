package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	client "github.com/gwillem/signal-groups"
)

type groupUpdateCommand struct {
	Title  optionalString `short:"t" long:"title" description:"New group title (omit to clear)"`
	Avatar string         `long:"avatar" description:"Path to a new avatar image (omit to clear)"`
	Admins []string       `long:"admin" description:"Admin phone number or ACI UUID (repeatable)"`
	Args   struct {
		Group   string   `positional-arg-name:"group" required:"true" description:"Group identifier"`
		Members []string `positional-arg-name:"member" description:"Complete new member list, excluding yourself"`
	} `positional-args:"true" required:"true"`
}

func (cmd *groupUpdateCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	avatar, err := readAvatar(cmd.Avatar)
	if err != nil {
		return err
	}

	c := loadClient(ctx)
	defer c.Close()

	res, err := c.UpdateGroup(ctx, cmd.Args.Group, cmd.Args.Members, cmd.Admins, avatar, cmd.Title.value)
	var dispatchErr *client.DispatchError
	if errors.As(err, &dispatchErr) {
		fmt.Fprintf(os.Stderr, "Warning: group saved but not delivered: %v\n", dispatchErr.Err)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Group updated: %s\n", res.Group)
	fmt.Printf("  Thread: %d\n", res.ThreadID)
	return nil
}
