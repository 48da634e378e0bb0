package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-prism/prism/cmd/prism/internal/config"
	"github.com/go-prism/prism/pkg/explorer"
	"github.com/go-prism/prism/pkg/hostrpc"
	"github.com/go-prism/prism/pkg/prism"
	"github.com/go-prism/prism/pkg/store"
)

func init() {
	RegisterCommand(&Command{
		Name:  "serve",
		Short: "Serve a widget session to a notebook host",
		Long: `Serve a widget session over JSON-RPC.

The session loop runs for the lifetime of the process. By default the
protocol is spoken on stdin/stdout; with --listen (or serve.listen in
prism.yaml) it is served over TCP instead, one host at a time.

Exploration history is recorded to the configured bbolt database.`,
		Usage: "prism serve [--listen ADDR]",
		Run:   runServe,
	})
}

func runServe(args []string) error {
	listenFlag, err := parseListenFlag(args)
	if err != nil {
		return err
	}

	root, err := config.FindProjectRoot()
	if err != nil {
		root, err = os.Getwd()
		if err != nil {
			return err
		}
	}
	cfg, err := config.Resolve(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listenFlag != "" {
		cfg.Listen = listenFlag
	}

	setupLogging(cfg.LogLevel)

	if err := os.MkdirAll(filepath.Dir(cfg.HistoryPath), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	st, err := store.Open(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer st.Close()

	bridge := hostrpc.NewBridge()
	kernel, err := prism.NewKernel(
		prism.WithBridge(bridge),
		prism.WithExploreOptions(explorer.WithStore(st)),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan error, 1)
	go func() { loopDone <- kernel.Run(ctx) }()
	defer func() {
		kernel.Dispatch(func() { kernel.Close() })
		stop()
		<-loopDone
	}()

	server := hostrpc.NewServer(kernel.Session(), bridge)

	slog.Info("serving widget session",
		"app", cfg.AppName,
		"protocol", cfg.Protocol,
		"listen", cfg.Listen,
		"history", cfg.HistoryPath)

	if cfg.Listen == config.ListenStdio {
		err = server.Serve(ctx, hostrpc.StdioStream{In: os.Stdin, Out: os.Stdout})
	} else {
		var ln net.Listener
		ln, err = net.Listen("tcp", cfg.Listen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
		}
		err = server.ServeListener(ctx, ln)
	}
	if err != nil && ctx.Err() == nil {
		return err
	}

	slog.Info("session closed")
	return nil
}

func parseListenFlag(args []string) (string, error) {
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--listen":
			if i+1 >= len(args) {
				return "", fmt.Errorf("--listen requires an address")
			}
			return args[i+1], nil
		case strings.HasPrefix(args[i], "--listen="):
			return strings.TrimPrefix(args[i], "--listen="), nil
		default:
			return "", fmt.Errorf("unknown argument %q\n\nUsage: prism serve [--listen ADDR]", args[i])
		}
	}
	return "", nil
}
