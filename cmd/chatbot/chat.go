package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"bedrock-chatbot/internal/domain"
	"bedrock-chatbot/internal/infra/logging"
	"bedrock-chatbot/internal/usecase"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal (/reset, /memory, /quit)",
		RunE:  runChatCmd,
	})
}

func runChatCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// logs go to stderr so they do not interleave with the conversation
	logger := logging.NewWithWriter(cfg.Log, cfg.Runtime.Dev, cmd.ErrOrStderr())

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(cmd.OutOrStdout(), cfg.HTTP.Title)
	return runChat(cmd.Context(), a.chat, cmd.InOrStdin(), cmd.OutOrStdout())
}

// runChat reads one message per line until EOF or /quit. A session that
// expired while the terminal sat idle is replaced on the next message.
func runChat(ctx context.Context, chat usecase.ChatUseCase, in io.Reader, out io.Writer) error {
	s, err := chat.StartSession(ctx)
	if err != nil {
		return err
	}
	id := s.ID
	defer func() { _ = chat.EndSession(context.WithoutCancel(ctx), id) }()

	send := func(text string) (string, error) {
		reply, err := chat.SendMessage(ctx, id, text)
		if !errors.Is(err, domain.ErrNotFound) {
			return reply, err
		}
		s, err := chat.StartSession(ctx)
		if err != nil {
			return "", err
		}
		id = s.ID
		fmt.Fprintln(out, "(session expired, starting a new conversation)")
		return chat.SendMessage(ctx, id, text)
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	fmt.Fprint(out, "> ")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return nil
		case "/reset":
			_ = chat.EndSession(ctx, id)
			s, err := chat.StartSession(ctx)
			if err != nil {
				return err
			}
			id = s.ID
			fmt.Fprintln(out, "(conversation cleared)")
		case "/memory":
			mem, err := chat.Memory(ctx, id)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				break
			}
			fmt.Fprintf(out, "summary: %s\ntail: %d messages\n", mem.Summary, len(mem.Tail))
		default:
			reply, err := send(line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintf(out, "AI: %s\n", reply)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return sc.Err()
}
