// Package cli provides command-line interface functionality for Voicelink.
// It manages bookmarks and trusted certificates and runs headless sessions
// without the terminal UI.
package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yllada/voicelink/app"
	"github.com/yllada/voicelink/bookmark"
	"github.com/yllada/voicelink/certstore"
	"github.com/yllada/voicelink/client"
	"github.com/yllada/voicelink/common"
	"github.com/yllada/voicelink/config"
)

// CLI represents the command-line interface.
type CLI struct {
	cfg           *config.Config
	out           io.Writer
	in            io.Reader
	bookmarksPath string
	trustPath     string
}

// New creates a new CLI instance writing to stdout.
func New(cfg *config.Config) *CLI {
	return &CLI{
		cfg:       cfg,
		out:       os.Stdout,
		in:        os.Stdin,
		trustPath: cfg.TrustDB,
	}
}

func (c *CLI) openBookmarks() (*bookmark.Manager, error) {
	m, err := bookmark.NewManager(c.bookmarksPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open bookmarks: %w", err)
	}
	return m, nil
}

func (c *CLI) openTrust() (*certstore.Store, error) {
	path := c.trustPath
	if path == "" {
		var err error
		if path, err = certstore.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return certstore.Open(path)
}

// ListBookmarks lists all saved servers.
func (c *CLI) ListBookmarks() error {
	m, err := c.openBookmarks()
	if err != nil {
		return err
	}
	bookmarks := m.List()

	if len(bookmarks) == 0 {
		fmt.Fprintln(c.out, "No bookmarks saved.")
		fmt.Fprintln(c.out, "Add one with: voicelink --bookmark NAME=URL")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tUSERNAME\tCHANNEL\tLAST USED")
	fmt.Fprintln(w, "----\t-------\t--------\t-------\t---------")

	for _, b := range bookmarks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			b.Name, b.Address(), orDash(b.Username), orDash(b.Channel), formatLastUsed(b.LastUsed))
	}

	return w.Flush()
}

// AddBookmark saves a server given as NAME=URL.
func (c *CLI) AddBookmark(arg string) error {
	name, rawURL, ok := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("%w: expected NAME=URL", common.ErrInvalidBookmark)
	}
	addr, err := client.ParseServerURL(rawURL)
	if err != nil {
		return err
	}

	m, err := c.openBookmarks()
	if err != nil {
		return err
	}
	b := &bookmark.Bookmark{
		Name:     name,
		Host:     addr.Host,
		Port:     addr.Port,
		Username: addr.Username,
		Channel:  addr.Channel,
	}
	if err := m.Add(b); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "✓ Saved %s (%s)\n", b.Name, b.Address())
	if addr.Password != "" {
		fmt.Fprintln(c.out, "  Note: passwords are not stored in bookmarks")
	}
	return nil
}

// RemoveBookmark deletes the bookmark called name.
func (c *CLI) RemoveBookmark(name string) error {
	m, err := c.openBookmarks()
	if err != nil {
		return err
	}
	b, err := m.GetByName(name)
	if err != nil {
		return fmt.Errorf("bookmark not found: %s", name)
	}
	if err := m.Remove(b.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Removed %s\n", b.Name)
	return nil
}

// ListTrusted lists the pinned server certificates.
func (c *CLI) ListTrusted() error {
	store, err := c.openTrust()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(c.out, "No trusted certificates.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tDIGEST\tTRUSTED")
	fmt.Fprintln(w, "------\t------\t-------")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			r.Address(), certstore.FormatDigest(r.Digest), r.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// Forget removes the pinned certificate of a server given as HOST[:PORT].
func (c *CLI) Forget(hostPort string) error {
	host, port, err := splitHostPort(hostPort)
	if err != nil {
		return err
	}

	store, err := c.openTrust()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Forget(host, port); err != nil {
		return fmt.Errorf("%s: %w", common.HostPort(host, port), err)
	}
	fmt.Fprintf(c.out, "✓ Forgot certificate of %s\n", common.HostPort(host, port))
	return nil
}

// Connect runs a headless session to a bookmark name or server URL until
// ctx is cancelled or the session ends for good.
func (c *CLI) Connect(ctx context.Context, target string) error {
	prompter := NewTerminalPrompter(c.in, c.out)
	a, err := app.New(app.Options{Config: c.cfg, Prompter: prompter})
	if err != nil {
		return fmt.Errorf("failed to initialize client: %w", err)
	}
	defer a.Close()

	a.Subscribe(func(ev app.Event) {
		if ev.Kind == app.EventLog {
			fmt.Fprintf(c.out, "%s %s\n", ev.Time.Format("15:04:05"), ev.Text)
		}
	})

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		a.Run(loopCtx)
		close(loopDone)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	fmt.Fprintf(c.out, "Connecting to %s...\n", target)
	if err := a.Connect(ctx, target); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	err = c.watch(ctx, a)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), common.TeardownTimeout)
	defer cancel()
	if shutdownErr := a.Shutdown(shutdownCtx); shutdownErr != nil {
		common.LogWarn("Session did not shut down cleanly: %v", shutdownErr)
	}
	return err
}

// watch polls the session until ctx is cancelled or it has ended with no
// reconnect or prompt pending.
func (c *CLI) watch(ctx context.Context, a *app.App) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	idle := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if a.State() == client.StateDisconnected && !a.Supervisor().IsReconnectScheduled() {
				idle++
			} else {
				idle = 0
			}
			// two ticks: the reconnect is armed right after the state changes
			if idle >= 2 {
				return fmt.Errorf("session ended")
			}
		}
	}
}

func splitHostPort(s string) (string, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, fmt.Errorf("%w: empty address", common.ErrInvalidAddress)
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// no port given
		return strings.Trim(s, "[]"), common.DefaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%w: bad port %q", common.ErrInvalidAddress, portStr)
	}
	return host, port, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatLastUsed formats a timestamp relative to now.
func formatLastUsed(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return formatDuration(time.Since(t)) + " ago"
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// PrintHelp prints CLI usage help.
func PrintHelp() {
	fmt.Println(`Voicelink - terminal voice chat client

Usage:
  voicelink [OPTIONS] [NAME|URL]

Options:
  --version               Show version and exit
  --verbose               Enable verbose logging
  --config PATH           Use an alternative configuration file
  --list                  List bookmarks
  --bookmark NAME=URL     Save a bookmark
  --remove NAME           Delete a bookmark
  --connect NAME|URL      Connect without the terminal UI
  --trusted               List trusted server certificates
  --forget HOST[:PORT]    Forget a trusted certificate
  --help                  Show this help message

Examples:
  voicelink mumble://alice@voice.example.org/Lobby
  voicelink --bookmark "Home=mumble://alice@voice.example.org"
  voicelink --connect Home
  voicelink --forget voice.example.org:64738

Keys (terminal UI):
  space talk, a alt talk, c center position, p push to mute,
  0-9 and * channel triggers (press again to release), m link/move
  mode, M mute, D deafen, x disconnect, r reconnect, q quit`)
}
