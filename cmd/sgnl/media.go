package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	client "github.com/gwillem/signal-groups"
	"github.com/gwillem/signal-groups/internal/address"
)

type mediaCommand struct {
	Type    int    `long:"type" default:"-1" description:"Global filter: 0 = images, 1 = videos; negative lists one conversation"`
	Address string `long:"address" description:"Conversation address (phone number, ACI UUID or group id)"`
	Gallery bool   `long:"gallery" description:"List gallery media instead of documents"`
}

func (cmd *mediaCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	q := client.MediaQuery{TypeID: cmd.Type, Gallery: cmd.Gallery}
	if cmd.Address != "" {
		addr, err := address.Parse(cmd.Address)
		if err != nil {
			return err
		}
		q.Address = addr
	}

	c := loadClient(ctx)
	defer c.Close()

	seq, err := c.Media(q)
	if err != nil {
		return err
	}

	n := 0
	for rec, err := range seq {
		if err != nil {
			return fmt.Errorf("list media: %w", err)
		}
		fmt.Printf("  %-6d thread=%-4d %-24s %8d bytes  %s\n",
			rec.ID, rec.ThreadID, rec.ContentType, rec.Size, rec.CreatedAt.Format(time.DateTime))
		n++
	}
	if n == 0 {
		fmt.Println("No media found.")
	}
	return nil
}
