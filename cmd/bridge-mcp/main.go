package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	bridgesdk "github.com/wagiedev/bridge-sdk-go"
)

const serverName = "bridge-mcp"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// flags holds the parsed command line.
type flags struct {
	configPath     string
	bridgePath     string
	adapter        string
	requestTimeout time.Duration
	logLevel       string
	listAdapters   bool
	version        bool
}

func parseFlags(args []string) (*flags, *pflag.FlagSet, error) {
	var f flags

	flagSet := pflag.NewFlagSet(serverName, pflag.ContinueOnError)
	flagSet.StringVarP(&f.configPath, "config", "c", "", "path to a YAML configuration file")
	flagSet.StringVar(&f.bridgePath, "bridge-path", "", "path to the bridge executable (default: search BRIDGE_SDK_PATH and PATH)")
	flagSet.StringVarP(&f.adapter, "adapter", "a", "", "host adapter profile or alias (default: BinhoSupernova)")
	flagSet.DurationVar(&f.requestTimeout, "request-timeout", 0, "bound every command, e.g. 5s (default: none)")
	flagSet.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.BoolVar(&f.listAdapters, "list-adapters", false, "print the known adapter profiles and exit")
	flagSet.BoolVar(&f.version, "version", false, "print the version and exit")
	flagSet.SetOutput(os.Stderr)

	if err := flagSet.Parse(args); err != nil {
		return nil, flagSet, err
	}

	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, flagSet, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	return &f, flagSet, nil
}

func run(args []string) error {
	f, flagSet, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return err
	}

	if f.version {
		fmt.Printf("%s %s\n", serverName, bridgesdk.Version)

		return nil
	}

	if f.listAdapters {
		printAdapters()

		return nil
	}

	level, err := parseLevel(f.logLevel)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts, err := buildOptions(f, flagSet, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := bridgesdk.NewClient()
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close bridge client", "error", err)
		}
	}()

	if err := client.Start(ctx, opts...); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	logger.Info("bridge started", "session_id", client.SessionID())

	server := bridgesdk.NewMCPServer(client, serverName, bridgesdk.Version, bridgesdk.WithLogger(logger))

	// Stop serving when the bridge goes away; every tool call would fail.
	go func() {
		select {
		case <-client.Done():
			logger.Error("bridge session ended", "error", client.Err())
			stop()
		case <-ctx.Done():
		}
	}()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}

	return client.Err()
}

// buildOptions layers the configuration file under the flags the user set.
func buildOptions(f *flags, flagSet *pflag.FlagSet, logger *slog.Logger) ([]bridgesdk.Option, error) {
	opts := []bridgesdk.Option{
		bridgesdk.WithLogger(logger),
		bridgesdk.WithStderr(func(line string) {
			logger.Debug("bridge stderr", "line", line)
		}),
	}

	if f.configPath != "" {
		file, err := bridgesdk.LoadConfigFile(f.configPath)
		if err != nil {
			return nil, err
		}

		opts = append(opts, bridgesdk.WithConfig(file))
	}

	if flagSet.Changed("bridge-path") {
		opts = append(opts, bridgesdk.WithBridgePath(f.bridgePath))
	}

	if flagSet.Changed("adapter") {
		if _, err := bridgesdk.LookupAdapter(f.adapter); err != nil {
			logger.Warn("adapter is not in the catalog, passing it to the bridge anyway", "adapter", f.adapter)
		}

		opts = append(opts, bridgesdk.WithAdapter(f.adapter))
	}

	if flagSet.Changed("request-timeout") {
		if f.requestTimeout < 0 {
			return nil, fmt.Errorf("--request-timeout must not be negative, got %s", f.requestTimeout)
		}

		opts = append(opts, bridgesdk.WithRequestTimeout(f.requestTimeout))
	}

	return opts, nil
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", name, err)
	}

	return level, nil
}

func printAdapters() {
	for _, a := range bridgesdk.Adapters() {
		buses := make([]string, 0, len(a.Buses))
		for _, b := range a.Buses {
			buses = append(buses, string(b))
		}

		fmt.Printf("%-16s %-18s aliases=%s buses=%s\n",
			a.ID, a.Name, strings.Join(a.Aliases, ","), strings.Join(buses, ","))
	}
}
