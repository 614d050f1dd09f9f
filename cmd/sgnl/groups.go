package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/gwillem/signal-groups/internal/address"
)

type groupsCommand struct {
	Verbose bool `short:"l" long:"long" description:"Show members and admins"`
}

func (cmd *groupsCommand) Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c := loadClient(ctx)
	defer c.Close()

	groups, err := c.Groups()
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	if len(groups) == 0 {
		fmt.Println("No groups found.")
		fmt.Println("Create one with 'sgnl group-create'.")
		return nil
	}

	fmt.Printf("Found %d group(s):\n\n", len(groups))
	for _, g := range groups {
		fmt.Printf("  %s\n", valueOr(g.Title, "(unnamed)"))
		fmt.Printf("    ID:       %s\n", g.GroupID)
		fmt.Printf("    Owner:    %s\n", g.Owner)
		fmt.Printf("    Members:  %d\n", len(g.Members))
		if g.MMS {
			fmt.Printf("    Kind:     mms\n")
		}
		if len(g.Avatar) > 0 {
			fmt.Printf("    Avatar:   %d bytes\n", len(g.Avatar))
		}
		if cmd.Verbose {
			fmt.Printf("    Members:  %s\n", strings.Join(address.Strings(g.Members), ", "))
			fmt.Printf("    Admins:   %s\n", strings.Join(address.Strings(g.Admins), ", "))
		}
		fmt.Println()
	}

	return nil
}
