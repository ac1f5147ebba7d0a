// ABOUTME: Terminal client for the chat-relay server with streamed output.
// ABOUTME: Keeps conversation state locally and restores it across restarts.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"

	"github.com/2389/chat-relay/internal/conversation"
	"github.com/2389/chat-relay/internal/persist"
	"github.com/2389/chat-relay/internal/wire"
)

// tuiConfig is the optional TOML config at
// $XDG_CONFIG_HOME/chat-tui/config.toml.
type tuiConfig struct {
	Server  string `toml:"server"`
	Token   string `toml:"token"`
	DataDir string `toml:"data_dir"`
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, "chat-tui")
}

func dataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dir, "chat-tui")
}

// loadConfig reads the TOML config file. A missing file is not an
// error; defaults apply.
func loadConfig() (tuiConfig, error) {
	cfg := tuiConfig{
		Server:  "http://localhost:8080",
		DataDir: dataDir(),
	}

	path := filepath.Join(configDir(), "config.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	server := flag.String("server", cfg.Server, "Relay server URL")
	token := flag.String("token", cfg.Token, "Bearer token (or CHAT_TUI_TOKEN)")
	flag.Parse()

	if *token == "" {
		*token = os.Getenv("CHAT_TUI_TOKEN")
	}

	fmt.Printf("chat-tui connected to %s\n", *server)
	if *token != "" {
		fmt.Println("Auth: bearer token configured")
	} else {
		fmt.Println("Auth: none (set CHAT_TUI_TOKEN or token in config.toml)")
	}
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg.DataDir, *server, *token); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, dataDir, server, token string) error {
	kv, err := persist.NewSQLiteKV(filepath.Join(dataDir, "chat.db"))
	if err != nil {
		return fmt.Errorf("opening state db: %w", err)
	}
	defer kv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("CHAT_TUI_DEBUG") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	render := &renderer{}
	ctrl := conversation.NewController(conversation.Config{
		Endpoint:  strings.TrimRight(server, "/") + "/api/chat",
		AuthToken: token,
		Store:     persist.NewStore(kv, logger),
		OnChange:  render.onChange,
		Logger:    logger,
	})

	if snap := ctrl.Snapshot(); len(snap.Messages) > 0 {
		fmt.Printf("Restored %d messages", len(snap.Messages))
		if snap.SessionID != "" {
			fmt.Printf(" (session %s)", snap.SessionID)
		}
		fmt.Println()
		fmt.Println()
	}

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if input == "/clear" {
			ctrl.Clear()
			fmt.Println("Conversation cleared.")
			fmt.Println()
			continue
		}

		if input == "/stop" {
			if ctrl.Streaming() {
				ctrl.Stop()
			} else {
				fmt.Println("Nothing is streaming.")
			}
			fmt.Println()
			continue
		}

		if input == "/session" {
			snap := ctrl.Snapshot()
			if snap.SessionID == "" {
				fmt.Println("No session yet.")
			} else {
				fmt.Printf("Session: %s\n", snap.SessionID)
			}
			fmt.Println()
			continue
		}

		if input == "/help" {
			printHelp()
			fmt.Println()
			continue
		}

		sendMessage(ctx, ctrl, render, input)
		fmt.Println()
	}
}

// sendMessage streams one exchange. Ctrl+C during streaming stops the
// in-flight response without exiting the loop.
func sendMessage(ctx context.Context, ctrl *conversation.Controller, render *renderer, text string) {
	render.reset()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Send(ctx, text, nil)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		ctrl.Stop()
		<-done
	}

	render.finish(ctrl.Snapshot())
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /clear         Clear conversation history and session")
	fmt.Println("  /stop          Stop the in-flight response")
	fmt.Println("  /session       Show the current session id")
	fmt.Println("  /help          Show this help")
	fmt.Println("  /quit          Exit the TUI")
}

// renderer prints assistant deltas as they arrive. Controller change
// notifications carry full snapshots, so it tracks how much of the
// current assistant message has already been written.
type renderer struct {
	mu      sync.Mutex
	msgID   string
	printed int
}

func (r *renderer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgID = ""
	r.printed = 0
}

func (r *renderer) onChange(snap conversation.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(snap.Messages) == 0 {
		return
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.Role != wire.RoleAssistant {
		return
	}

	if last.ID != r.msgID {
		r.msgID = last.ID
		r.printed = 0
	}
	if len(last.Content) > r.printed {
		fmt.Print(last.Content[r.printed:])
		r.printed = len(last.Content)
	}
}

// finish terminates the streamed line and prints the sources footer.
func (r *renderer) finish(snap conversation.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.printed > 0 {
		fmt.Println()
	}

	if len(snap.Messages) == 0 {
		return
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.Role != wire.RoleAssistant || len(last.Sources) == 0 {
		return
	}

	gray := color.New(color.FgHiBlack)
	gray.Printf("sources: %s\n", strings.Join(last.Sources, ", "))
}
