// Package main provides the entry point for Voicelink.
// Voicelink is a terminal client for Mumble-style voice chat servers that
// supervises the server connection and turns hotkeys into push-to-talk and
// channel link requests.
//
// Features:
//   - Automatic reconnect and trust-on-first-use certificate pinning
//   - Push-to-talk with channel link and move triggers
//   - Bookmarks and optionally remembered passwords
//   - Interactive terminal UI and a headless command-line mode
//
// Usage:
//
//	voicelink [options] [NAME|URL]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yllada/voicelink/app"
	"github.com/yllada/voicelink/cli"
	"github.com/yllada/voicelink/common"
	"github.com/yllada/voicelink/config"
	"github.com/yllada/voicelink/tui"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

var (
	// General flags
	showVersion = flag.Bool("version", false, "Show version and exit")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showHelp    = flag.Bool("help", false, "Show help message")
	configPath  = flag.String("config", "", "Use an alternative configuration file")

	// CLI flags
	listBookmarks  = flag.Bool("list", false, "List bookmarks")
	addBookmark    = flag.String("bookmark", "", "Save a bookmark (NAME=URL)")
	removeBookmark = flag.String("remove", "", "Delete a bookmark by name")
	connectTarget  = flag.String("connect", "", "Connect without the terminal UI (bookmark name or URL)")
	listTrusted    = flag.Bool("trusted", false, "List trusted server certificates")
	forgetServer   = flag.String("forget", "", "Forget the trusted certificate of HOST[:PORT]")
)

func main() {
	flag.Parse()

	if *showHelp {
		cli.PrintHelp()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cliMode := *listBookmarks || *addBookmark != "" || *removeBookmark != "" ||
		*connectTarget != "" || *listTrusted || *forgetServer != ""

	logLevel := common.ParseLogLevel(cfg.LogLevel)
	if *verbose {
		logLevel = common.LevelDebug
	}
	if err := common.InitLogger(common.LogConfig{
		Level:       logLevel,
		EnableFile:  true,
		Quiet:       !cliMode,
		MaxFileSize: 5 * 1024 * 1024, // 5MB
		MaxBackups:  5,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	// Setup graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals (SIGINT, SIGTERM)
	setupSignalHandler(cancel)

	if cliMode {
		if err := runCLI(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			common.CloseLogger()
			os.Exit(1)
		}
		return
	}

	common.LogInfo("Starting %s v%s", common.AppName, appVersion)
	if err := runTUI(ctx, cfg, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		common.CloseLogger()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadFrom(*configPath)
	}
	return config.Load()
}

// runCLI handles command-line interface operations.
func runCLI(ctx context.Context, cfg *config.Config) error {
	c := cli.New(cfg)

	switch {
	case *listBookmarks:
		return c.ListBookmarks()
	case *addBookmark != "":
		return c.AddBookmark(*addBookmark)
	case *removeBookmark != "":
		return c.RemoveBookmark(*removeBookmark)
	case *listTrusted:
		return c.ListTrusted()
	case *forgetServer != "":
		return c.Forget(*forgetServer)
	case *connectTarget != "":
		return c.Connect(ctx, *connectTarget)
	}
	return nil
}

// runTUI runs the interactive terminal UI, connecting to target first if
// one is given.
func runTUI(ctx context.Context, cfg *config.Config, target string) error {
	prompter := tui.NewPrompter()
	a, err := app.New(app.Options{Config: cfg, Prompter: prompter})
	if err != nil {
		return fmt.Errorf("failed to initialize client: %w", err)
	}
	defer a.Close()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		a.Run(loopCtx)
		close(loopDone)
	}()

	if target != "" {
		if err := a.Connect(ctx, target); err != nil {
			stopLoop()
			<-loopDone
			return err
		}
	}

	uiErr := tui.Run(ctx, a, prompter)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), common.TeardownTimeout)
	if err := a.Shutdown(shutdownCtx); err != nil {
		common.LogWarn("Session did not shut down cleanly: %v", err)
	}
	cancel()
	stopLoop()
	<-loopDone
	return uiErr
}

// setupSignalHandler configures graceful shutdown on SIGINT/SIGTERM.
// When a signal is received, it cancels the context to allow cleanup.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()
}
