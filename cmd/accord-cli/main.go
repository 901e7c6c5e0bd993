package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/victorivanov/accord/internal/config"
	"github.com/victorivanov/accord/internal/database"
	"github.com/victorivanov/accord/internal/events"
	"github.com/victorivanov/accord/internal/models"
	"github.com/victorivanov/accord/internal/permissions"
	"github.com/victorivanov/accord/internal/service"
	"github.com/victorivanov/accord/internal/snowflake"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: accord-cli migrate")
			fmt.Println()
			fmt.Println("Run database migrations from the migrations/ directory.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL  PostgreSQL connection string (required)")
			return
		}
		os.Exit(runMigrate())
	case "seed":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: accord-cli seed")
			fmt.Println()
			fmt.Println("Seed the database with demo data: a server, roles, a category,")
			fmt.Println("channels, and a few permission overrides.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL  PostgreSQL connection string (required)")
			return
		}
		os.Exit(runSeed())
	case "resolve":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: accord-cli resolve <user-id> <channel-id>")
			fmt.Println()
			fmt.Println("Print the effective permission decision for a user in a channel,")
			fmt.Println("one line per permission key.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL  PostgreSQL connection string (required)")
			return
		}
		os.Exit(runResolve(os.Args[2:]))
	case "tail":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: accord-cli tail <server-id>")
			fmt.Println()
			fmt.Println("Subscribe to a server's event stream and print events as they")
			fmt.Println("arrive, until interrupted.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL          PostgreSQL connection string (required)")
			fmt.Println("  REDIS_URL             Redis URL (default: redis://localhost:6379)")
			fmt.Println("  EVENT_CHANNEL_PREFIX  Pub/sub channel prefix (default: accord)")
			return
		}
		os.Exit(runTail(os.Args[2:]))
	case "version":
		fmt.Printf("accord-cli %s\n", version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: accord-cli <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate  Run database migrations")
	fmt.Println("  seed     Seed demo data (server, roles, channels, overrides)")
	fmt.Println("  resolve  Print a user's effective permissions in a channel")
	fmt.Println("  tail     Follow a server's event stream")
	fmt.Println("  version  Print version info")
	fmt.Println()
	fmt.Println("Run 'accord-cli <command> --help' for details on a command.")
}

func hasFlag(flag string, args []string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "error: %s environment variable is required\n", key)
		os.Exit(1)
	}
	return v
}

// --- migrate ---

func runMigrate() int {
	dbURL := requireEnv("DATABASE_URL")

	fmt.Println("connecting to database...")
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: migration init failed: %v\n", err)
		return 1
	}
	defer m.Close()

	fmt.Println("running migrations...")
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		fmt.Fprintf(os.Stderr, "error: migration failed: %v\n", err)
		return 1
	}

	v, dirty, _ := m.Version()
	fmt.Println(migrateReport(err, v, dirty))
	return 0
}

// migrateReport phrases the outcome of an Up call that either applied
// migrations or found nothing new.
func migrateReport(upErr error, v uint, dirty bool) string {
	if upErr == migrate.ErrNoChange {
		return fmt.Sprintf("no new migrations (current version: %d)", v)
	}
	return fmt.Sprintf("migrations applied (version: %d, dirty: %v)", v, dirty)
}

// --- seed ---

func runSeed() int {
	dbURL := requireEnv("DATABASE_URL")
	ctx := context.Background()

	fmt.Println("connecting to database...")
	pool, err := database.NewPostgresPool(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: database connection failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	sf, err := snowflake.NewGenerator(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: snowflake init failed: %v\n", err)
		return 1
	}

	// Events from seeding go nowhere; nothing is subscribed yet.
	store := database.NewStore(pool)
	coord := service.NewCoordinator(store, events.NewMemorySink(), sf)

	aliceID := sf.Generate().Int64()
	bobID := sf.Generate().Int64()

	fmt.Println("creating server...")
	server, err := coord.CreateServer(ctx, aliceID, "Demo Server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating server: %v\n", err)
		return 1
	}

	fmt.Println("creating roles...")
	modPerms, err := permissions.SetOf(map[permissions.Key]permissions.State{
		permissions.KeyManageMessages: permissions.StateAllowed,
		permissions.KeyKickMembers:    permissions.StateAllowed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: building mod permissions: %v\n", err)
		return 1
	}
	mod, err := coord.CreateRole(ctx, server.ID, "Moderator", 0x2ECC71, false, modPerms)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating role: %v\n", err)
		return 1
	}
	admin, err := coord.CreateRole(ctx, server.ID, "Admin", 0xE74C3C, true, permissions.NewSet())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating role: %v\n", err)
		return 1
	}

	if err := coord.AssignRole(ctx, admin.ID, aliceID); err != nil {
		fmt.Fprintf(os.Stderr, "error: assigning role: %v\n", err)
		return 1
	}
	if err := coord.AssignRole(ctx, mod.ID, bobID); err != nil {
		fmt.Fprintf(os.Stderr, "error: assigning role: %v\n", err)
		return 1
	}

	fmt.Println("creating channels...")
	general, err := coord.CreateChannel(ctx, server.ID, nil, "general", models.ChannelTypeText)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating channel: %v\n", err)
		return 1
	}
	category, err := coord.CreateCategory(ctx, server.ID, "Staff")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating category: %v\n", err)
		return 1
	}
	if _, err := coord.CreateChannel(ctx, server.ID, &category.ID, "staff-chat", models.ChannelTypeText); err != nil {
		fmt.Fprintf(os.Stderr, "error: creating channel: %v\n", err)
		return 1
	}
	if _, err := coord.CreateChannel(ctx, server.ID, nil, "lounge", models.ChannelTypeVoice); err != nil {
		fmt.Fprintf(os.Stderr, "error: creating channel: %v\n", err)
		return 1
	}

	fmt.Println("creating overrides...")
	def := defaultRole(ctx, store.Queries(), server.ID)
	if def == nil {
		fmt.Fprintln(os.Stderr, "error: server has no default role")
		return 1
	}
	hide, err := permissions.SetOf(map[permissions.Key]permissions.State{
		permissions.KeyViewChannel: permissions.StateDenied,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: building override: %v\n", err)
		return 1
	}
	// Staff category is hidden from everyone, visible to moderators.
	if _, err := coord.UpsertOverride(ctx, models.ScopeCategory, category.ID, def.ID, true, hide); err != nil {
		fmt.Fprintf(os.Stderr, "error: creating override: %v\n", err)
		return 1
	}
	show, err := permissions.SetOf(map[permissions.Key]permissions.State{
		permissions.KeyViewChannel: permissions.StateAllowed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: building override: %v\n", err)
		return 1
	}
	if _, err := coord.UpsertOverride(ctx, models.ScopeCategory, category.ID, mod.ID, true, show); err != nil {
		fmt.Fprintf(os.Stderr, "error: creating override: %v\n", err)
		return 1
	}

	fmt.Println()
	fmt.Println("seed complete:")
	fmt.Printf("  server:   Demo Server (id: %d, owner: %d)\n", server.ID, aliceID)
	fmt.Printf("  roles:    @everyone, Moderator, Admin\n")
	fmt.Printf("  channels: #general, Staff/#staff-chat, lounge (voice: %d)\n", general.ID)
	fmt.Printf("  users:    %d (admin), %d (moderator)\n", aliceID, bobID)
	return 0
}

func defaultRole(ctx context.Context, q *database.Queries, serverID int64) *models.Role {
	// GetByMember for an unknown user returns only the default role.
	roles, err := q.Roles.GetByMember(ctx, serverID, 0)
	if err != nil {
		return nil
	}
	for i := range roles {
		if roles[i].IsDefault {
			return &roles[i]
		}
	}
	return nil
}

// --- resolve ---

func runResolve(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: accord-cli resolve <user-id> <channel-id>")
		return 1
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid user id %q\n", args[0])
		return 1
	}
	channelID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid channel id %q\n", args[1])
		return 1
	}

	dbURL := requireEnv("DATABASE_URL")
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: database connection failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	q := database.NewStore(pool).Queries()
	resolver := service.NewResolver(q.Channels, q.Categories, q.Roles, q.Overrides)

	set, err := resolver.ResolveChannel(ctx, userID, channelID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("user %d in channel %d:\n", userID, channelID)
	for _, key := range permissions.Keys {
		decision := "denied"
		if set.Allows(key) {
			decision = "allowed"
		}
		fmt.Printf("  %-22s %s\n", key, decision)
	}
	return 0
}

// --- tail ---

func runTail(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: accord-cli tail <server-id>")
		return 1
	}
	serverID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid server id %q\n", args[0])
		return 1
	}

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	sink, err := events.NewRedisSink(cfg.RedisURL, cfg.EventPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: redis connection failed: %v\n", err)
		return 1
	}
	defer sink.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	stream, stop := sink.Subscribe(ctx, serverID)
	defer stop()

	logger.Info("following event stream",
		"server_id", serverID, "channel", sink.Channel(serverID))
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return 0
			}
			logger.Info(string(ev.Type),
				"entity", ev.EntityType,
				"entity_id", ev.EntityID,
				"payload", string(ev.Payload),
				"at", ev.OccurredAt.Format(time.RFC3339),
			)
		case <-ctx.Done():
			return 0
		}
	}
}
