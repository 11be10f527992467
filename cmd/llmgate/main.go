// llmgate 命令行入口：列出模型目录、配置凭据、发起一元或流式补全。
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

const usageText = `llmgate is a multi-provider chat-completion gateway.

Usage:
  llmgate models                      List providers and models
  llmgate set-key <provider> <key>    Store a provider credential
  llmgate chat [flags] <prompt>       Run a completion

Flags:
  -h, --help  Show this help message`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Println(strings.TrimSpace(usageText))
		return nil
	}

	switch args[0] {
	case "models":
		return runModels(args[1:])
	case "set-key":
		return runSetKey(args[1:])
	case "chat":
		return runChat(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Println(strings.TrimSpace(usageText))
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usageText)
	}
}
