// Package main is the plagiview CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/hyperjump/plagiview/internal/backend"
	"github.com/hyperjump/plagiview/internal/cli"
	"github.com/hyperjump/plagiview/internal/config"
	"github.com/hyperjump/plagiview/internal/inbox"
	"github.com/hyperjump/plagiview/internal/metrics"
	"github.com/hyperjump/plagiview/internal/models"
	"github.com/hyperjump/plagiview/internal/render"
	"github.com/hyperjump/plagiview/internal/server"
	"github.com/hyperjump/plagiview/internal/watcher"
	"github.com/hyperjump/plagiview/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/plagiview/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadConfigOrDefaults is loadConfig for one-shot commands: a missing file
// yields the built-in defaults and an empty resolved path.
func loadConfigOrDefaults(path string) (*config.Config, string, error) {
	cfg, resolved, err := loadConfig(path)
	if err == nil {
		return cfg, resolved, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
		return cfg, "", nil
	}
	return nil, "", err
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "render":
		runRender()
	case "analyze":
		runAnalyze()
	case "compare":
		runCompare()
	case "documents":
		runDocuments()
	case "users":
		runUsers()
	case "inbox":
		runInbox()
	case "version", "--version", "-v":
		fmt.Printf("plagiview version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (inbox events, backend calls, renders)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	renderer := newRenderer(cfg, m, logger)
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout,
		backend.WithMetrics(m), backend.WithLogger(logger))

	processor := inbox.NewProcessor(renderer, cfg.Inbox.OutputDir,
		inbox.WithMetrics(m), inbox.WithLogger(logger))
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watchSvc, err := inbox.Watch(watchCtx, &cfg.Inbox, processor, watchOpts...)
	if err != nil {
		logger.Fatal("Failed to start inbox", zap.Error(err))
	}
	logger.Info("inbox watching",
		zap.Strings("directories", cfg.Inbox.Directories),
		zap.String("output_dir", cfg.Inbox.OutputDir))

	srv := server.NewServer(renderer, client, m, cfg, logger, watchSvc, resolvedConfigPath)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func newRenderer(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *render.Renderer {
	opts := []render.Option{
		render.WithPalette(cfg.Render.Palette),
		render.WithCacheSize(cfg.Render.CacheSize),
		render.WithPreviewChars(cfg.Render.PreviewChars),
		render.WithLogger(logger),
	}
	if m != nil {
		opts = append(opts, render.WithMetrics(m))
	}
	return render.NewRenderer(opts...)
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "plagiview render x.json
// --format json" would otherwise leave --format unparsed. A lone "-" is a
// positional (stdin).
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 1 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// outputFlags are shared by the commands that print a view.
type outputFlags struct {
	format  *string
	output  *string
	noColor *bool
}

func addOutputFlags(fs *flag.FlagSet) outputFlags {
	return outputFlags{
		format:  fs.String("format", "text", "output format: text, compact, json, or html"),
		output:  fs.String("output", "", "write to file instead of stdout"),
		noColor: fs.Bool("no-color", os.Getenv("NO_COLOR") != "", "disable ANSI colors in text output"),
	}
}

// writeView prints view according to the output flags.
func (o outputFlags) writeView(view any) error {
	format, err := cli.ParseFormat(*o.format)
	if err != nil {
		return err
	}
	w, closeFn, err := openOutput(*o.output)
	if err != nil {
		return err
	}
	if err := cli.WriteView(w, view, format, cli.Options{NoColor: *o.noColor}); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}

// openOutput returns stdout for "" and "-", else a created file.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

// readPayload reads a payload file, or stdin for "-".
func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func runRender() {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (palette, preview length)")
	kindFlag := fs.String("kind", "auto", "payload kind: auto, report, or comparison")
	out := addOutputFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Println("Usage: plagiview render [flags] <payload.json|->")
		os.Exit(1)
	}
	kind, err := models.ParseKind(*kindFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	cfg, _, err := loadConfigOrDefaults(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	data, err := readPayload(fs.Arg(0), os.Stdin)
	if err != nil {
		fmt.Printf("Failed to read payload: %v\n", err)
		os.Exit(1)
	}
	view, err := newRenderer(cfg, nil, zap.NewNop()).Payload(data, kind)
	if err != nil {
		fmt.Printf("Failed to render: %v\n", err)
		os.Exit(1)
	}
	if err := out.writeView(view); err != nil {
		fmt.Printf("Failed to write output: %v\n", err)
		os.Exit(1)
	}
}

// backendFlags are shared by the commands that call the backend directly.
type backendFlags struct {
	configPath *string
	backendURL *string
	debug      *bool
}

func addBackendFlags(fs *flag.FlagSet) backendFlags {
	return backendFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		backendURL: fs.String("backend", "", "backend URL (default from config, or http://localhost:8000)"),
		debug:      fs.Bool("debug", false, "log backend calls to stderr"),
	}
}

// setup loads config and returns a renderer and backend client for a one-shot command.
func (b backendFlags) setup() (*config.Config, *render.Renderer, *backend.Client, *zap.Logger) {
	cfg, _, err := loadConfigOrDefaults(*b.configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *b.backendURL != "" {
		cfg.Backend.BaseURL = *b.backendURL
	}
	logger, err := utils.NewQuietLogger(cfg.Debug || *b.debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, backend.WithLogger(logger))
	return cfg, newRenderer(cfg, nil, logger), client, logger
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	bf := addBackendFlags(fs)
	repoType := fs.String("repo-type", string(models.RepoUniversity), "repository to check against: university or personal")
	userID := fs.String("user-id", "", "user id sent to the backend")
	role := fs.String("role", "teacher", "role sent to the backend")
	addToRepo := fs.Bool("add", false, "store the document in the repository after checking")
	filename := fs.String("filename", "", "override the stored file name")
	out := addOutputFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Println("Usage: plagiview analyze [flags] <file>")
		os.Exit(1)
	}
	_, renderer, client, logger := bf.setup()
	defer logger.Sync()

	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("Failed to open file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rep, err := client.Analyze(ctx, backend.AnalyzeRequest{
		File:             backend.Upload{Filename: filepath.Base(path), Content: f},
		RepoType:         models.RepoType(*repoType),
		UserID:           *userID,
		Role:             *role,
		AddToRepo:        *addToRepo,
		FilenameOverride: *filename,
	})
	if err != nil {
		fmt.Printf("Analyze failed: %v\n", err)
		os.Exit(1)
	}
	if err := out.writeView(renderer.Report(rep)); err != nil {
		fmt.Printf("Failed to write output: %v\n", err)
		os.Exit(1)
	}
}

func runCompare() {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	bf := addBackendFlags(fs)
	out := addOutputFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 2 {
		fmt.Println("Usage: plagiview compare [flags] <source> <target>")
		os.Exit(1)
	}
	_, renderer, client, logger := bf.setup()
	defer logger.Sync()

	source, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Printf("Failed to open source: %v\n", err)
		os.Exit(1)
	}
	defer source.Close()
	target, err := os.Open(fs.Arg(1))
	if err != nil {
		fmt.Printf("Failed to open target: %v\n", err)
		os.Exit(1)
	}
	defer target.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cmp, err := client.Compare(ctx,
		backend.Upload{Filename: filepath.Base(fs.Arg(0)), Content: source},
		backend.Upload{Filename: filepath.Base(fs.Arg(1)), Content: target},
	)
	if err != nil {
		fmt.Printf("Compare failed: %v\n", err)
		os.Exit(1)
	}
	if err := out.writeView(renderer.Diff(cmp)); err != nil {
		fmt.Printf("Failed to write output: %v\n", err)
		os.Exit(1)
	}
}

func runDocuments() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: plagiview documents <list|stats|delete> [flags]")
		fmt.Println("  plagiview documents list [--repo-type personal --owner-id N]")
		fmt.Println("  plagiview documents stats")
		fmt.Println("  plagiview documents delete <document_id>")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	bf := addBackendFlags(fs)
	repoType := fs.String("repo-type", string(models.RepoUniversity), "repository: university or personal")
	ownerID := fs.Int("owner-id", -1, "owner of a personal repository")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[3:]))

	_, _, client, logger := bf.setup()
	defer logger.Sync()
	format, err := cli.ParseFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	var owner *int
	if *ownerID >= 0 {
		owner = ownerID
	}
	repo := models.RepoType(*repoType)
	ctx := context.Background()

	switch sub {
	case "list":
		list, err := client.ListDocuments(ctx, repo, owner)
		if err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteDocuments(os.Stdout, list, format); err != nil {
			fmt.Printf("Failed to write output: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		stats, err := client.Stats(ctx)
		if err != nil {
			fmt.Printf("Stats failed: %v\n", err)
			os.Exit(1)
		}
		if format == cli.OutputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(stats)
			return
		}
		if stats.Error != "" {
			fmt.Printf("Backend error: %s (%s)\n", stats.Error, stats.DBPath)
			os.Exit(1)
		}
		fmt.Printf("Documents: %d\nChunks:    %d\n", stats.DocumentCount, stats.ChunkCount)
	case "delete":
		if fs.NArg() < 1 {
			fmt.Println("Usage: plagiview documents delete [flags] <document_id>")
			os.Exit(1)
		}
		if err := client.DeleteDocument(ctx, fs.Arg(0), repo, owner); err != nil {
			fmt.Printf("Delete failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted: %s\n", fs.Arg(0))
	default:
		fmt.Printf("Unknown documents subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runUsers() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: plagiview users <list|add-teacher|delete> [flags]")
		fmt.Println("  plagiview users list")
		fmt.Println("  plagiview users add-teacher --name NAME --email EMAIL --password PASSWORD")
		fmt.Println("  plagiview users delete <user_id>")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	bf := addBackendFlags(fs)
	name := fs.String("name", "", "teacher name")
	email := fs.String("email", "", "teacher email")
	password := fs.String("password", os.Getenv("PLAGIVIEW_PASSWORD"), "teacher password (or PLAGIVIEW_PASSWORD)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[3:]))

	_, _, client, logger := bf.setup()
	defer logger.Sync()
	format, err := cli.ParseFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	ctx := context.Background()

	switch sub {
	case "list":
		list, err := client.ListUsers(ctx)
		if err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteUsers(os.Stdout, list, format); err != nil {
			fmt.Printf("Failed to write output: %v\n", err)
			os.Exit(1)
		}
	case "add-teacher":
		user, err := client.AddTeacher(ctx, models.NewTeacher{Name: *name, Email: *email, Password: *password})
		if err != nil {
			fmt.Printf("Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added teacher %d: %s <%s>\n", user.ID, user.Name, user.Email)
	case "delete":
		if fs.NArg() < 1 {
			fmt.Println("Usage: plagiview users delete [flags] <user_id>")
			os.Exit(1)
		}
		id, err := strconv.Atoi(fs.Arg(0))
		if err != nil {
			fmt.Printf("Invalid user id: %s\n", fs.Arg(0))
			os.Exit(1)
		}
		if err := client.DeleteUser(ctx, id); err != nil {
			fmt.Printf("Delete failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted user: %d\n", id)
	default:
		fmt.Printf("Unknown users subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runInbox() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: plagiview inbox <add|remove|list> [path]")
		fmt.Println("  plagiview inbox add <path>     Add a directory to the inbox")
		fmt.Println("  plagiview inbox remove <path>  Remove a directory from the inbox")
		fmt.Println("  plagiview inbox list           List inbox directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("inbox", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	endpoint := *serverURL + "/api/v1/inbox/directories"
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: plagiview inbox add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		if err := inboxRequest(http.MethodPost, endpoint, bytes.NewReader(body), http.StatusCreated, nil); err != nil {
			fmt.Printf("Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: plagiview inbox remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := inboxRequest(http.MethodDelete, endpoint+"?path="+url.QueryEscape(path), nil, http.StatusOK, nil); err != nil {
			fmt.Printf("Remove failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := inboxRequest(http.MethodGet, endpoint, nil, http.StatusOK, &out); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown inbox subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// inboxRequest calls the running server's inbox API and decodes the
// response into out when out is non-nil.
func inboxRequest(method, u string, body io.Reader, wantStatus int, out interface{}) error {
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func printUsage() {
	fmt.Println(`plagiview - Plagiarism report viewer

Usage:
  plagiview server [flags]                    Start the HTTP server and inbox
  plagiview render [flags] <payload.json|->   Render a saved backend payload
  plagiview analyze [flags] <file>            Check a document against a repository
  plagiview compare [flags] <source> <target> Compare two documents side by side
  plagiview documents <list|stats|delete>     Manage repository documents
  plagiview users <list|add-teacher|delete>   Manage accounts (admin)
  plagiview inbox <add|remove|list>           Manage inbox directories of a running server
  plagiview version                           Show version
  plagiview help                              Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/plagiview/config.yaml)
  --debug            Enable debug logging

Render Flags:
  --config string    Config file path (palette and preview length)
  --kind string      Payload kind: auto, report, or comparison (default: auto)

Analyze Flags:
  --repo-type string Repository: university or personal (default: university)
  --user-id string   User id sent to the backend
  --role string      Role sent to the backend (default: teacher)
  --add              Store the document in the repository after checking
  --filename string  Override the stored file name

Backend Flags (analyze, compare, documents, users):
  --config string    Config file path
  --backend string   Backend URL (default from config, or http://localhost:8000)
  --debug            Log backend calls to stderr

Output Flags (render, analyze, compare):
  --format string    text, compact, json, or html (default: text)
  --output string    Write to file instead of stdout
  --no-color         Disable ANSI colors (also honours NO_COLOR)

Documents Flags:
  --repo-type string Repository: university or personal
  --owner-id int     Owner of a personal repository
  --output string    text or json (default: text)

Users Flags:
  --name string      Teacher name (add-teacher)
  --email string     Teacher email (add-teacher)
  --password string  Teacher password (default: $PLAGIVIEW_PASSWORD)
  --output string    text or json (default: text)

Inbox Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  plagiview server
  plagiview render report.json
  plagiview render --format html --output report.html report.json
  cat compare.json | plagiview render --kind comparison -
  plagiview analyze --repo-type personal --user-id 7 essay.pdf
  plagiview compare draft.docx final.docx
  plagiview documents list --output json
  plagiview users add-teacher --name "Dr. Rahman" --email rahman@nsu.edu
  plagiview inbox add ./payloads`)
}
