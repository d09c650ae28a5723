package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/chzyer/readline"
	"github.com/joho/godotenv"

	"visioncraft/internal/config"
	"visioncraft/internal/gemini"
	"visioncraft/internal/httpclient"
	"visioncraft/internal/poster"
	"visioncraft/internal/studio"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainImpl() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := config.NewLogger(cfg)
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, model calls will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	gateway := gemini.NewGateway(ctx, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpclient.New(httpclient.Options{
			PreferIPv4: cfg.PreferIPv4,
			Timeout:    cfg.HTTPTimeout,
			Logger:     logger,
		}),
		Logger: logger,
	})
	defer gateway.Close()

	defaults := cfg.Defaults
	ctrl := studio.New(studio.Options{
		Gateway:     gateway,
		Logger:      logger,
		Defaults:    &defaults,
		CallTimeout: cfg.RequestTimeout,
	})
	defer ctrl.Close()

	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "visioncraft> ",
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	c := &console{studio: ctrl, out: rl.Stdout(), dir: dir}
	fmt.Fprintln(c.out, "VisionCraft AI console, type help for commands")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil { // io.EOF
			return nil
		}

		err = c.exec(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(c.out, "error:", err)
		}
	}
}

func completer() *readline.PrefixCompleter {
	var ratios, themes, modes []readline.PrefixCompleterInterface
	for _, o := range poster.AspectRatios() {
		ratios = append(ratios, readline.PcItem(o.Key))
	}
	for _, o := range poster.Themes() {
		themes = append(themes, readline.PcItem(o.Key))
	}
	for _, o := range poster.PromptModes() {
		modes = append(modes, readline.PcItem(o.Key))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("upload"),
		readline.PcItem("clear"),
		readline.PcItem("prompt"),
		readline.PcItem("json"),
		readline.PcItem("mode", modes...),
		readline.PcItem("ratio", ratios...),
		readline.PcItem("creativity"),
		readline.PcItem("bg", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("theme", themes...),
		readline.PcItem("view", readline.PcItem("original"), readline.PcItem("generated")),
		readline.PcItem("generate"),
		readline.PcItem("advice"),
		readline.PcItem("save"),
		readline.PcItem("pdf"),
		readline.PcItem("state"),
		readline.PcItem("reset"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
