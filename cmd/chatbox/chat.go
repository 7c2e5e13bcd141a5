package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OctoberEnd/chatbox/internal/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session with the configured bot.

Inside the session:
  /attach <path>   queue a file for the next message
  /image <path>    queue an image for the next message
  /exit            leave the session

Ctrl-C cancels the reply in flight; the session stays open.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func runChat() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.API.BotID == "" {
		return fmt.Errorf("no bot configured: run `chatbox config set api.bot_id <id>`")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	sess := chat.NewSession()
	var pending []*chat.Attachment

	fmt.Fprintf(os.Stderr, "chatbox %s  (/exit to quit)\n", version)
	scanner := bufio.NewScanner(os.Stdin)
	prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/exit" || line == "/quit":
			return nil
		case strings.HasPrefix(line, "/attach "):
			pending = append(pending, queueAttachment(line[len("/attach "):], chat.AttachmentFile))
		case strings.HasPrefix(line, "/image "):
			pending = append(pending, queueAttachment(line[len("/image "):], chat.AttachmentImage))
		case strings.HasPrefix(line, "/"):
			printWarning("unknown command %q", line)
		default:
			sendTurn(a, sess, line, pending, sigCh)
			pending = nil
		}
		prompt()
	}
	return scanner.Err()
}

func prompt() {
	fmt.Fprint(os.Stderr, colorize(colorBold, "> "))
}

func queueAttachment(path, kind string) *chat.Attachment {
	path = strings.TrimSpace(path)
	att := chat.NewAttachment(filepath.Base(path), path, kind)
	printStep("queued %s %s", kind, path)
	return att
}

// sendTurn drives one turn to completion, printing reply text as it
// arrives. An interrupt cancels the turn only; partial text stays on
// screen and the session remains usable.
func sendTurn(a *app, sess *chat.Session, text string, pending []*chat.Attachment, sigCh chan os.Signal) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCh:
			cancel()
			fmt.Fprintln(os.Stderr)
			printWarning("reply cancelled")
		case <-done:
		}
	}()

	if len(pending) > 0 {
		a.uploader.UploadAll(ctx, pending)
		for _, att := range pending {
			if att.Status == chat.StatusFailed {
				printError("upload %s: %s", att.Name, att.Err)
			}
		}
	}

	printed := 0
	reply := a.orch.SubmitTurn(ctx, sess, &chat.Turn{Text: text, Attachments: pending}, func(r chat.Reply) {
		if len(r.Text) > printed {
			fmt.Print(r.Text[printed:])
			printed = len(r.Text)
		}
	})
	if printed > 0 {
		fmt.Println()
	}
	if reply.Err != "" {
		printError("%s", reply.Err)
	}
	for _, s := range reply.Suggestions {
		fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorCyan, "?"), s)
	}
}
