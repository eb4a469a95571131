// Command tr is a command-line client that works on the task registry
// storage directly. Each invocation counts as one block: the height is
// seeded from storage and advanced once before any operation runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"tasking/internal/auth"
	"tasking/internal/config"
	"tasking/internal/db"
	"tasking/internal/host"
	"tasking/internal/report"
	"tasking/pkg/actor"
	"tasking/pkg/chain"
	"tasking/pkg/eventgraph"
	"tasking/pkg/task"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("TASKING_CONFIG"))
	if err != nil {
		fatal("load config: %v", err)
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("memory storage: nothing persists past this command")
	}

	ctx := context.Background()
	stores, err := db.Open(ctx, cfg.Storage)
	if err != nil {
		fatal("open storage: %v", err)
	}
	defer stores.Close()

	if err := stores.EnsureTables(ctx); err != nil {
		fatal("%v", err)
	}
	if os.Args[1] == "init" {
		fmt.Println(`{"status":"ok","message":"all tables initialized"}`)
		return
	}

	counter, err := chain.Resume(ctx, stores.Tasks, cfg.Chain.GenesisHeight)
	if err != nil {
		fatal("%v", err)
	}
	if err := stores.Tasks.RecordHeight(ctx, counter.Advance()); err != nil {
		fatal("%v", err)
	}

	disp := host.NewDispatcher(task.NewRegistry(stores.Tasks, counter), stores.Actors, stores.Events, logger)

	switch os.Args[1] {
	case "task":
		handleTask(ctx, disp, os.Args[2:])
	case "event":
		handleEvent(ctx, stores.Events, os.Args[2:])
	case "actor":
		handleActor(ctx, stores.Actors, os.Args[2:])
	case "export":
		handleExport(ctx, stores.Tasks, os.Args[2:])
	case "token":
		handleToken(cfg.Auth, os.Args[2:])
	case "status":
		handleStatus(ctx, stores, counter)
	default:
		usage()
		os.Exit(1)
	}
}

func handleTask(ctx context.Context, disp *host.Dispatcher, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tr task <create|remove|list|get> [id] [--as=<name>]")
		os.Exit(1)
	}

	switch args[0] {
	case "create", "remove":
		if len(args) < 2 {
			fatal("Usage: tr task %s <id> --as=<name>", args[0])
		}
		id, err := task.ParseID(args[1])
		if err != nil {
			fatal("%v", err)
		}
		caller := identify(ctx, disp, parseFlags(args[2:]))
		var n task.Notification
		if args[0] == "create" {
			n, err = disp.Create(ctx, caller, id)
		} else {
			n, err = disp.Remove(ctx, caller, id)
		}
		if err != nil {
			fatal("%s task %d: %v", args[0], id, err)
		}
		printJSON(n)

	case "list":
		ids, err := disp.List(ctx)
		if err != nil {
			fatal("list tasks: %v", err)
		}
		if parseFlags(args[1:])["format"] == "short" {
			for _, id := range ids {
				fmt.Println(id)
			}
			return
		}
		printJSON(ids)

	case "get":
		if len(args) < 2 {
			fatal("Usage: tr task get <id>")
		}
		id, err := task.ParseID(args[1])
		if err != nil {
			fatal("%v", err)
		}
		t, err := disp.Get(ctx, id)
		if err != nil {
			fatal("get task: %v", err)
		}
		printJSON(t)

	default:
		fatal("unknown task command: %s", args[0])
	}
}

// identify resolves --as to a canonical actor ID.
func identify(ctx context.Context, disp *host.Dispatcher, flags map[string]string) string {
	name := flags["as"]
	if name == "" {
		name = os.Getenv("TR_AS")
	}
	if name == "" {
		fatal("--as=<name> (or TR_AS) is required")
	}
	id, err := disp.Identify(ctx, name)
	if err != nil {
		fatal("identify %s: %v", name, err)
	}
	return id
}

func handleEvent(ctx context.Context, store eventgraph.EventStore, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tr event <list|get|verify> [--type=...] [--limit=N] [--format=short]")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		flags := parseFlags(args[1:])
		limit := intFlag(flags, "limit", 20)
		var events []eventgraph.Event
		var err error
		if t := flags["type"]; t != "" {
			events, err = store.ByType(ctx, t, limit)
		} else {
			events, err = store.Recent(ctx, limit)
		}
		if err != nil {
			fatal("list events: %v", err)
		}
		if flags["format"] == "short" {
			printShortEvents(os.Stdout, events)
		} else {
			printJSON(events)
		}

	case "get":
		if len(args) < 2 {
			fatal("Usage: tr event get <id>")
		}
		e, err := store.Get(ctx, args[1])
		if err != nil {
			fatal("get event: %v", err)
		}
		printJSON(e)

	case "verify":
		if err := store.VerifyChain(ctx); err != nil {
			fatal("chain verification failed: %v", err)
		}
		fmt.Println(`{"status":"ok","message":"hash chain verified"}`)

	default:
		fatal("unknown event command: %s", args[0])
	}
}

func handleActor(ctx context.Context, store actor.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tr actor <list|register|get>")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		actors, err := store.List(ctx)
		if err != nil {
			fatal("list actors: %v", err)
		}
		printJSON(actors)

	case "register":
		name := parseFlags(args[1:])["name"]
		if name == "" {
			fatal("--name is required")
		}
		a, err := store.Register(ctx, name)
		if err != nil {
			fatal("register actor: %v", err)
		}
		printJSON(a)

	case "get":
		if len(args) < 2 {
			fatal("Usage: tr actor get <id>")
		}
		a, err := store.Get(ctx, args[1])
		if err != nil {
			fatal("get actor: %v", err)
		}
		printJSON(a)

	default:
		fatal("unknown actor command: %s", args[0])
	}
}

func handleExport(ctx context.Context, tasks task.Store, args []string) {
	flags := parseFlags(args)
	format := flags["format"]
	if format == "" {
		format = "json"
	}
	data, err := report.NewExporter(tasks).Export(ctx, format)
	if err != nil {
		fatal("export: %v", err)
	}
	if out := flags["out"]; out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			fatal("write %s: %v", out, err)
		}
		return
	}
	os.Stdout.Write(data)
}

func handleToken(cfg config.AuthConfig, args []string) {
	flags := parseFlags(args)
	sub := flags["sub"]
	if sub == "" {
		fatal("--sub is required")
	}
	if cfg.JWTSecret == "" {
		fatal("JWT_SECRET must be set to mint tokens the server will accept")
	}
	ttl := cfg.TokenTTL
	if v := flags["ttl"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			fatal("--ttl: %v", err)
		}
		ttl = d
	}
	token, err := auth.NewIssuer(cfg.JWTSecret, ttl).Issue(sub)
	if err != nil {
		fatal("issue token: %v", err)
	}
	printJSON(map[string]string{"subject": sub, "token": token})
}

func handleStatus(ctx context.Context, stores *db.Stores, counter *chain.Counter) {
	status, err := collectStatus(ctx, stores, counter.Height())
	if err != nil {
		fatal("status: %v", err)
	}
	printJSON(status)
}

func collectStatus(ctx context.Context, stores *db.Stores, height uint64) (map[string]any, error) {
	taskCount, err := stores.Tasks.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	eventCount, err := stores.Events.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	actors, err := stores.Actors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	return map[string]any{
		"tasks":  taskCount,
		"events": eventCount,
		"actors": len(actors),
		"height": height,
	}, nil
}

// parseFlags parses --key=value and --flag style args into a map.
func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(arg, "="); ok {
			flags[k] = v
		} else {
			flags[arg] = ""
		}
	}
	return flags
}

// intFlag reads a positive integer flag, falling back to defaultVal.
func intFlag(flags map[string]string, key string, defaultVal int) int {
	if v, ok := flags[key]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode JSON: %v", err)
	}
}

func truncStr(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func printShortEvents(w io.Writer, events []eventgraph.Event) {
	for _, e := range events {
		content := ""
		if b, err := json.Marshal(e.Content); err == nil {
			content = string(b)
		}
		fmt.Fprintf(w, "%-8s  %-14s  %-12s  %s\n",
			e.Timestamp.Format("15:04:05"), e.Type, truncStr(e.Source, 12), truncStr(content, 60))
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tr: "+format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tr <command>

Commands:
  task    Task operations (create, remove, list, get)
  event   Event log operations (list, get, verify)
  actor   Actor operations (list, register, get)
  export  Export the registry (--format=json|csv|pdf [--out=file])
  token   Mint a bearer token (--sub=<name> [--ttl=24h])
  status  Show registry summary
  init    Initialize database tables

Storage comes from TASKING_CONFIG, STORE_DRIVER and DATABASE_URL.`)
}
