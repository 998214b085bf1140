package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskline/internal/app"
	"taskline/internal/inbound"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).PaddingLeft(2)
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message...]",
		Short: "Talk to the plan agent as if texting it",
		Long: `Sends a message through the same pipeline as SMS and Telegram and prints the reply.
With no arguments, reads one message per line from stdin (interactive when stdin is a terminal).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), true, func(ctx context.Context, svc *app.Services) error {
				if p := viper.GetInt64("plan"); p != 0 {
					svc.Inbound.DefaultPlanID = p
				}
				if len(args) > 0 {
					return chatOnce(ctx, svc.Inbound, strings.Join(args, " "), os.Stdout)
				}
				return chatLoop(ctx, svc.Inbound, os.Stdin, os.Stdout, isatty.IsTerminal(os.Stdin.Fd()))
			})
		},
	}
}

func chatOnce(ctx context.Context, p inbound.Processor, text string, out io.Writer) error {
	res, err := p.Handle(ctx, inbound.Message{
		Body:       text,
		From:       "local",
		DeliveryID: "cli-" + uuid.NewString(),
		Channel:    "cli",
	})
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(res)
	}
	if interactive() {
		fmt.Fprintln(out, replyStyle.Render(res.Reply))
		return nil
	}
	fmt.Fprintln(out, res.Reply)
	return nil
}

func chatLoop(ctx context.Context, p inbound.Processor, in io.Reader, out io.Writer, tty bool) error {
	sc := bufio.NewScanner(in)
	for {
		if tty {
			fmt.Fprint(out, promptStyle.Render("you> "))
		}
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := chatOnce(ctx, p, line, out); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
