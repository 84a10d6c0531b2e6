// Command bw is a CLI client for the bird-watching social network.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/birdwatch/internal/api"
	"github.com/and161185/birdwatch/internal/cache"
	"github.com/and161185/birdwatch/internal/cache/sqlite"
	"github.com/and161185/birdwatch/internal/config"
	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/guard"
	"github.com/and161185/birdwatch/internal/logging"
	"github.com/and161185/birdwatch/internal/media"
	"github.com/and161185/birdwatch/internal/metrics"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/session"
	"github.com/and161185/birdwatch/internal/view"
	"go.uber.org/zap"
)

// ---- app wiring ----

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	rec     *metrics.Recorder
	client  *api.Client
	files   *session.FileStore
	deps    view.Deps
	closers []func() error
}

// openApp builds the client stack, restores a saved session and probes it once.
func openApp(ctx context.Context, cfg *config.Config, verbose bool) (*app, error) {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.LogDev)
	if err != nil {
		return nil, err
	}
	rec := metrics.New()
	client, err := api.New(cfg.APIBaseURL,
		api.WithTimeout(cfg.Timeout), api.WithLogger(log), api.WithMetrics(rec))
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, rec: rec, client: client, files: session.NewFileStore(cfg.ConfigDir)}

	store, err := a.openCache()
	if err != nil {
		return nil, err
	}

	switch saved, err := a.files.Load(); {
	case err == nil:
		client.SetSessionToken(saved.Token)
	case !errors.Is(err, errs.ErrNoSession):
		log.Warn("ignoring unreadable session file", zap.String("path", a.files.Path()), zap.Error(err))
	}

	sess := session.New(client.Auth, log)
	a.deps = view.Deps{
		API:     client,
		Session: sess,
		Guard:   guard.New(rec),
		Cache:   cache.New(store, cfg.CacheTTL, cache.WithMetrics(rec), cache.WithLogger(log)),
		Media:   media.NewResolver(cfg.MediaBaseURL),
		Log:     log,
	}
	sess.Init(ctx)
	return a, nil
}

func (a *app) openCache() (cache.Store, error) {
	if a.cfg.CachePath == "" {
		return cache.NewMemory(), nil
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.CachePath), 0o700); err != nil {
		return nil, err
	}
	db, err := sqlite.New(a.cfg.CachePath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// persist writes the current cookie and identity to the session file.
func (a *app) persist() error {
	id, ok := a.deps.Session.Identity()
	if !ok {
		return a.files.Clear()
	}
	return a.files.Save(a.client.SessionToken(), &id)
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// openUpload opens path for a multipart write; "" means no file and "-" is stdin.
func openUpload(path string) (*model.Upload, func(), error) {
	switch path {
	case "":
		return nil, func() {}, nil
	case "-":
		return &model.Upload{Filename: "upload", Body: os.Stdin}, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return &model.Upload{Filename: filepath.Base(path), Body: f}, func() { _ = f.Close() }, nil
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func choose(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func usage() {
	fmt.Fprintf(os.Stderr, `bw CLI
Usage:
  bw [-addr URL] [-media URL] [-metrics] [-v] <cmd> [args]

Commands:
  version
  signup       -u <username> -p <password>        (saves session)
  login        -u <username> -p <password>        (saves session)
  logout
  whoami
  feed
  post         -id <post>
  sight        -header <h> -text <t> [-bird id] [-group id] [-help] [-lat x -lon y] [-image file]
  rm-post      -id <post>
  like|unlike  -id <post>
  comment      -id <post> -text <t>
  birds        [-q <query>]
  bird         -id <bird>
  add-bird     -name <common> [-sci <scientific>] [-image-url URL] [-image file]
  rm-bird      -id <bird>
  groups
  group        -id <group>
  create-group -name <n> [-desc <d>] [-image file]
  join|leave   -id <group>
  requests     -id <group>
  approve|deny -id <group> -user <user>
  users
  user         -id <user>
  friends
  befriend|unfriend -id <user>
  set-role     -id <user> -role GUEST|BASIC_USER|ADMIN_USER|SUPER_USER
  onboard      -first <f> -last <l> -location <loc> [-photo file]
  profile      [-id <user>]
  search       -q <query> [-kind all|birds|users|friends|groups|my-groups|posts]
`)
	os.Exit(2)
}

// failMessage is what a failed command prints: the backend's text when it sent one.
func failMessage(err error) string {
	var re *redirectError
	switch {
	case errors.As(err, &re):
		return re.Error()
	case errors.Is(err, errs.ErrInFlight):
		return "already in progress"
	default:
		return api.Message(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, failMessage(err))
	os.Exit(1)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main reads config, applies global flags and dispatches one subcommand.
func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		fail(err)
	}

	addr := flag.String("addr", cfg.APIBaseURL, "API base URL")
	mediaBase := flag.String("media", "", "media base URL (default: BW_MEDIA_BASE_URL or -addr)")
	dumpMetrics := flag.Bool("metrics", false, "print request metrics to stderr on exit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	if cmd == "version" {
		fmt.Printf("bw %s (%s)\n", version, buildDate)
		return
	}

	if *addr != cfg.APIBaseURL && cfg.MediaBaseURL == cfg.APIBaseURL {
		cfg.MediaBaseURL = *addr
	}
	cfg.APIBaseURL = *addr
	cfg.MediaBaseURL = choose(*mediaBase, cfg.MediaBaseURL)

	ctx, cancel := withTimeout()
	defer cancel()

	a, err := openApp(ctx, cfg, *verbose)
	if err != nil {
		fail(err)
	}
	out, err := a.exec(ctx, cmd, flag.Args()[1:])
	if *dumpMetrics {
		_ = a.rec.WriteText(os.Stderr)
	}
	a.close()

	if errors.Is(err, errUnknownCommand) || errors.Is(err, flag.ErrHelp) {
		usage()
	}
	if err != nil {
		fail(err)
	}
	if out != nil {
		printJSON(out)
	}
}
