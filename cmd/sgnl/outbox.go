package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gwillem/signal-groups/internal/address"
	"github.com/gwillem/signal-groups/internal/proto"
)

type outboxCommand struct {
	Args struct {
		Group string `positional-arg-name:"group" required:"true" description:"Group identifier"`
	} `positional-args:"true" required:"true"`
}

func (cmd *outboxCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c := loadClient(ctx)
	defer c.Close()

	msgs, err := c.Outbox(cmd.Args.Group)
	if err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	if len(msgs) == 0 {
		fmt.Println("No messages recorded.")
		return nil
	}

	for _, m := range msgs {
		gc, err := proto.UnmarshalGroupContext(m.Body)
		if err != nil {
			return fmt.Errorf("decode message %d: %w", m.ID, err)
		}
		fmt.Printf("[%s] %s %q\n", m.SentAt.Format(time.DateTime), gc.GetType(), gc.GetName())
		fmt.Printf("  Members:    %s\n", strings.Join(gc.Members, ", "))
		if len(gc.Admins) > 0 {
			fmt.Printf("  Admins:     %s\n", strings.Join(gc.Admins, ", "))
		}
		if m.Recipients != nil {
			fmt.Printf("  Recipients: %s\n", strings.Join(address.Strings(m.Recipients), ", "))
		} else {
			fmt.Printf("  Recipients: (all members)\n")
		}
	}
	return nil
}
