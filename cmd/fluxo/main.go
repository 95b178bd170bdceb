// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command fluxo loads a workflow configuration, builds a runtime, and
// runs it to completion or streams it to stdout.
//
// Usage:
//
//	fluxo run --config workflow.yaml "do the thing"
//	fluxo agent --config workflow.yaml researcher "summarise this"
//	fluxo validate --config workflow.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/fluxo"
	"github.com/kadirpekel/fluxo/pkg/config"
	"github.com/kadirpekel/fluxo/pkg/logger"
	"github.com/kadirpekel/fluxo/pkg/runtime"
	"github.com/kadirpekel/fluxo/pkg/stream"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Run      RunCmd      `cmd:"" help:"Run the configured workflow to completion."`
	Agent    AgentCmd    `cmd:"" help:"Run a single declared agent standalone."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple, verbose, or custom)." default:"simple"`
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(fluxo.GetVersion().String())
	return nil
}

// ValidateCmd loads and validates a config file without running anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required")
	}
	_, err := config.Load(context.Background(), cli.Config)
	if err != nil {
		return err
	}
	fmt.Println("configuration is valid")
	return nil
}

// RunCmd runs the config's declared workflow to completion, optionally
// streaming progress to stdout at the requested verbosity.
type RunCmd struct {
	Input        string `arg:"" help:"Input text for the workflow."`
	Verbosity    string `help:"Streaming verbosity: minimal, normal, or debug." default:"normal"`
	KnowledgeDir string `name:"knowledge-dir" help:"Knowledge base catalogue root, for configs with rag.enabled." type:"path"`
	Quiet        bool   `help:"Suppress streamed progress; print only the final output."`
}

func (c *RunCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required")
	}

	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load(ctx, cli.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := runtime.New(ctx, cfg, runtime.Options{KnowledgeRootDir: c.KnowledgeDir})
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer rt.Close()

	if !c.Quiet {
		agg := stream.NewAggregator(stream.Verbosity(c.Verbosity))
		sub := agg.Attach(rt.Bus, func(m stream.Message) { printMessage(m) })
		defer rt.Bus.Unsubscribe(sub)
	}

	output, _, err := rt.RunWorkflow(ctx, c.Input)
	if err != nil {
		return fmt.Errorf("run workflow: %w", err)
	}

	fmt.Println("\n---")
	fmt.Println(output)
	return nil
}

// AgentCmd runs one declared agent standalone, bypassing the config's
// own workflow definition entirely.
type AgentCmd struct {
	Agent string `arg:"" help:"Agent id, as declared in the config's agents list."`
	Input string `arg:"" help:"Input text for the agent."`
}

func (c *AgentCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required")
	}

	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load(ctx, cli.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := runtime.New(ctx, cfg, runtime.Options{})
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer rt.Close()

	output, err := rt.RunAgent(ctx, c.Agent, c.Input)
	if err != nil {
		return fmt.Errorf("run agent %q: %w", c.Agent, err)
	}

	fmt.Println(output)
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()
	return ctx, cancel
}

func printMessage(m stream.Message) {
	switch m.Type {
	case stream.MessageExecutorStart:
		fmt.Printf("→ %s\n", m.Content)
	case stream.MessageExecutorUpdate:
		fmt.Print(m.Content)
	case stream.MessageExecutorComplete:
		fmt.Printf("\n✓ %s: %s\n", m.ExecutorID, m.Content)
	case stream.MessageWorkflowStatus:
		fmt.Printf("[%s]\n", m.Content)
	case stream.MessageWorkflowOutput:
		// printed once more, verbatim, by the caller after Run returns
	}
}

func main() {
	cli := CLI{}
	parsed := kong.Parse(&cli,
		kong.Name("fluxo"),
		kong.Description("Fluxo — declarative multi-agent workflow runtime"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	err = parsed.Run(&cli)
	parsed.FatalIfErrorf(err)
}
