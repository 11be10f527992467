package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/llmgate/config"
	"github.com/BaSui01/llmgate/credentials"
	"github.com/BaSui01/llmgate/gateway"
	"github.com/BaSui01/llmgate/types"
	"github.com/BaSui01/llmgate/usage"
)

// newLogger 按配置级别构造生产日志器。
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func newGateway(cfg *config.Config, logger *zap.Logger) (*gateway.Gateway, error) {
	credPath := cfg.CredentialsFile
	if credPath == "" {
		credPath = credentials.DefaultPath()
	}

	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithUsageTracking(),
	}
	if cfg.RateLimitRPM > 0 {
		opts = append(opts, gateway.WithRateLimit(cfg.RateLimitRPM))
	}

	gw, err := gateway.New(credentials.NewFileStore(credPath), opts...)
	if err != nil {
		return nil, err
	}

	if cfg.Provider != "" {
		if _, err := gw.Configure(cfg.Provider, cfg.Model, ""); err != nil {
			return nil, err
		}
	}
	gw.SetGenerationParams(cfg.Generation.Temperature, cfg.Generation.MaxTokens,
		cfg.Generation.ReasoningEffort, cfg.Generation.Timeout)
	return gw, nil
}

func runModels(args []string) error {
	cfg, err := config.Load(os.Getenv("LLMGATE_CONFIG"))
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}

	for _, p := range gw.ListProviders() {
		fmt.Printf("%s (%s)\n", p.Name, p.ID)
		for _, m := range p.Models {
			marker := " "
			if m.IsDefault {
				marker = "*"
			}
			caps := make([]string, 0, len(m.Capabilities))
			for _, c := range m.Capabilities {
				caps = append(caps, string(c))
			}
			fmt.Printf("  %s %-32s ctx=%-8d [%s]\n", marker, m.ID, m.ContextWindow, strings.Join(caps, ","))
		}
	}
	return nil
}

func runSetKey(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: llmgate set-key <provider> <key>")
	}

	cfg, err := config.Load(os.Getenv("LLMGATE_CONFIG"))
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	if err := gw.SetCredential(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("credential stored for %s (%s)\n", args[0], credentials.Masked(args[1]))
	return nil
}

func runChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	var (
		provider  = fs.String("provider", "", "provider id (default from config)")
		model     = fs.String("model", "", "model id (provider default when empty)")
		system    = fs.String("system", "", "system prompt")
		effort    = fs.String("effort", "", "reasoning effort (low/medium/high)")
		search    = fs.Bool("search", false, "enable provider web search")
		streaming = fs.Bool("stream", false, "stream the response")
		estimate  = fs.Bool("estimate", false, "print a prompt token estimate before sending")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return errors.New("chat requires a prompt (argument or stdin)")
	}

	cfg, err := config.Load(os.Getenv("LLMGATE_CONFIG"))
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	if *provider != "" {
		if _, err := gw.Configure(*provider, *model, ""); err != nil {
			return err
		}
	}

	var messages []types.Message
	if *system != "" {
		messages = append(messages, types.NewSystemMessage(*system))
	}
	messages = append(messages, types.NewUserMessage(prompt))

	if *estimate {
		fmt.Fprintf(os.Stderr, "~%d prompt tokens\n", usage.EstimateTokens(messages))
	}

	opts := &types.Options{ReasoningEffort: *effort, WebSearch: *search}

	if *streaming {
		return chatStream(ctx, gw, messages, opts)
	}
	return chatUnary(ctx, gw, messages, opts)
}

func chatUnary(ctx context.Context, gw *gateway.Gateway, messages []types.Message, opts *types.Options) error {
	result, err := gw.Complete(ctx, messages, opts)
	if err != nil {
		return renderError(err)
	}
	fmt.Println(result.Content)
	if result.Usage.InputTokens != nil && result.Usage.OutputTokens != nil {
		fmt.Fprintf(os.Stderr, "tokens: %d in / %d out\n",
			*result.Usage.InputTokens, *result.Usage.OutputTokens)
	}
	return nil
}

func chatStream(ctx context.Context, gw *gateway.Gateway, messages []types.Message, opts *types.Options) error {
	s, err := gw.CompleteStream(ctx, messages, opts)
	if err != nil {
		return renderError(err)
	}
	defer s.Close()

	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return renderError(err)
		}
		fmt.Print(chunk.Delta)
	}
}

// renderError 把类型化错误翻译成可操作的提示。
func renderError(err error) error {
	switch {
	case types.IsAuth(err):
		return fmt.Errorf("%w\ncheck your API key (llmgate set-key <provider> <key>)", err)
	case types.IsTimeout(err):
		return fmt.Errorf("%w\nthe request timed out; try again or raise the timeout", err)
	default:
		return err
	}
}
