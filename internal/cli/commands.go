// Package cli implements the interactive command-line interface for bedrockd.
// It provides live session status display, ban management, and packet
// registry diagnostics.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/bedrocknet/bedrocknet/internal/config"
	"github.com/bedrocknet/bedrocknet/internal/events"
	"github.com/bedrocknet/bedrocknet/internal/store"
	"github.com/bedrocknet/bedrocknet/protocol"
)

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	store    *store.SessionStore
	registry *protocol.Registry
}

// NewCLI creates a new CLI handler.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, sessions *store.SessionStore, registry *protocol.Registry) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		store:    sessions,
		registry: registry,
	}
}

// Start begins the interactive CLI loop.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nbedrockd CLI ready. Type 'help' for available commands.")
	fmt.Println("─────────────────────────────────────────────────────")

	reader := bufio.NewReader(os.Stdin)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("bedrockd> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return
			}
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if err := c.execute(ctx, cmd, args); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		return c.printStatus()
	case "sessions":
		return c.printSessions(args)
	case "bans":
		return c.printBans()
	case "ban":
		return c.cmdBan(args)
	case "unban":
		return c.cmdUnban(args)
	case "packets", "p":
		c.printPackets()
	case "setconfig":
		return c.cmdSetConfig(args)
	case "quit", "exit", "q":
		fmt.Println("Shutting down bedrockd...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println("\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                     bedrockd CLI Commands                     ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Println("║  status             Show active sessions                     ║")
	fmt.Println("║  sessions [n]       Show the n most recent sessions          ║")
	fmt.Println("║  bans               List ban entries                         ║")
	fmt.Println("║  ban <target> [why] Ban an XUID or address                   ║")
	fmt.Println("║  unban <id>         Remove a ban entry                       ║")
	fmt.Println("║  packets            Dump the registered packet IDs           ║")
	fmt.Println("║  setconfig <k> <v>  Update a server configuration value      ║")
	fmt.Println("║  quit               Shutdown bedrockd                        ║")
	fmt.Println("║  help               Show this help message                   ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printStatus displays active sessions in a formatted table.
func (c *CLI) printStatus() error {
	sessions, err := c.store.ActiveSessions()
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No active sessions.")
		return nil
	}

	fmt.Println()
	renderSessionTable(sessions)
	fmt.Println()
	return nil
}

// printSessions displays recent sessions, newest first.
func (c *CLI) printSessions(args []string) error {
	limit := 20
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		limit = parsed
	}

	sessions, err := c.store.RecentSessions(limit)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No recorded sessions.")
		return nil
	}

	fmt.Println()
	renderSessionTable(sessions)
	fmt.Println()
	return nil
}

func renderSessionTable(sessions []store.Session) {
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"ID", "Remote", "XUID", "Name", "Protocol", "State", "Connected", "Closed"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, s := range sessions {
		closed := "-"
		if s.ClosedAt != nil {
			closed = s.ClosedAt.Format("15:04:05")
		}
		tw.Append([]string{
			fmt.Sprintf("%d", s.ID),
			s.RemoteAddr,
			s.XUID,
			s.DisplayName,
			fmt.Sprintf("%d", s.Protocol),
			s.State,
			s.ConnectedAt.Format("15:04:05"),
			closed,
		})
	}

	tw.Render()
}

// printBans displays the ban list.
func (c *CLI) printBans() error {
	bans, err := c.store.Bans()
	if err != nil {
		return err
	}

	if len(bans) == 0 {
		fmt.Println("No bans recorded.")
		return nil
	}

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"ID", "XUID", "Addr", "Reason", "Created", "Expires"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, b := range bans {
		expires := "never"
		if b.ExpiresAt != nil {
			expires = b.ExpiresAt.Format(time.RFC3339)
		}
		tw.Append([]string{
			fmt.Sprintf("%d", b.ID),
			b.XUID,
			b.Addr,
			b.Reason,
			b.CreatedAt.Format(time.RFC3339),
			expires,
		})
	}

	tw.Render()
	fmt.Println()
	return nil
}

// cmdBan bans an XUID or remote address. Targets containing a dot or a
// colon are treated as addresses, anything else as an XUID.
func (c *CLI) cmdBan(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ban <xuid|address> [reason]")
	}

	target := args[0]
	reason := "banned via cli"
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}

	var xuid, addr string
	if strings.ContainsAny(target, ".:") {
		addr = target
	} else {
		xuid = target
	}

	if err := c.store.AddBan(xuid, addr, reason, nil); err != nil {
		return err
	}
	fmt.Printf("Banned %s: %s\n", target, reason)
	return nil
}

// cmdUnban removes a ban entry by ID.
func (c *CLI) cmdUnban(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: unban <id>")
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid ban id: %s", args[0])
	}

	if err := c.store.RemoveBan(id); err != nil {
		return err
	}
	fmt.Printf("Ban %d removed\n", id)
	return nil
}

// printPackets dumps the packet registry.
func (c *CLI) printPackets() {
	ids := c.registry.IDs()

	fmt.Printf("\nProtocol %d (%s), %d registered packets\n\n",
		protocol.CurrentProtocol, protocol.CurrentVersion, len(ids))

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"ID", "Hex"})
	tw.SetBorder(true)

	for _, id := range ids {
		tw.Append([]string{
			fmt.Sprintf("%d", id),
			fmt.Sprintf("0x%02X", id),
		})
	}

	tw.Render()
	fmt.Println()
}

// cmdSetConfig updates a server configuration field and saves the file.
func (c *CLI) cmdSetConfig(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: setconfig <key> <value>")
	}

	key := args[0]
	value := strings.Join(args[1:], " ")

	if err := c.cfg.UpdateServerField(key, value); err != nil {
		return err
	}

	if err := c.cfg.Save(); err != nil {
		return err
	}

	fmt.Printf("Config updated: %s = %s\n", key, value)
	return nil
}
