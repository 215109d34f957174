// Command sheba is the interactive CLI for the conversational government
// service assistant.
//
// Usage:
//
//	sheba chat --config config.yaml
//	sheba validate --config config.yaml
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/sheba-ai/sheba"
	"github.com/sheba-ai/sheba/pkg/agent"
	"github.com/sheba-ai/sheba/pkg/config"
	"github.com/sheba-ai/sheba/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Chat     ChatCmd     `cmd:"" default:"1" help:"Start an interactive conversation."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(sheba.GetVersion().String())
	return nil
}

// ValidateCmd loads and validates the configuration, reporting the first
// problem found.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s: configuration is valid\n", cli.Config)
	return nil
}

// ChatCmd runs a read-answer loop on stdin.
type ChatCmd struct {
	SkipHealthCheck bool `help:"Skip the vector store health check on startup."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	log.Info("Loaded configuration", "path", cli.Config)

	a, err := agent.NewFromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	defer a.Close()

	if !c.SkipHealthCheck {
		if err := a.Heartbeat(ctx); err != nil {
			return fmt.Errorf("vector store health check failed: %w", err)
		}
	}

	fmt.Printf("Conversation %s. Type your question, Ctrl+D to exit.\n\n", a.ConversationID())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		for event := range a.ProcessQuery(ctx, query) {
			switch event.Type {
			case agent.EventAnswerChunk:
				fmt.Print(event.Content)
			case agent.EventFinalData:
				if len(event.Sources) > 0 {
					fmt.Printf("\n\nSources: %s", strings.Join(event.Sources, ", "))
				}
			case agent.EventError:
				fmt.Print(event.Content)
			}
		}
		fmt.Println()
		fmt.Println()

		if ctx.Err() != nil {
			break
		}
	}

	return scanner.Err()
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("sheba"),
		kong.Description("Conversational assistant for Bangladesh government services"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
