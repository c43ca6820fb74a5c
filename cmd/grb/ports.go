package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/drunlade/go-ymodem/serialport"
)

func portsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "List serial ports",
		Action: func(c *cli.Context) error {
			ports, err := serialport.List()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if len(ports) == 0 {
				fmt.Fprintln(c.App.ErrWriter, "no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(c.App.Writer, p)
			}
			return nil
		},
	}
}
