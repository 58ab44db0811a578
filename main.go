package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lyrics-sync-go/config"
	"lyrics-sync-go/engine"
	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/services/notifier"
	"lyrics-sync-go/services/providers"
	"lyrics-sync-go/stats"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

const version = "1.0.0"

var conf = config.Get()

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

func main() {
	app := &cli.Command{
		Name:    "lyricsyncd",
		Usage:   "Resolve and time-synchronize lyrics for a host music player",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			resolveCommand(),
			cacheCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the daemon and its HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on",
				Value: conf.Configuration.Port,
			},
		},
		Action: serve,
	}
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve lyrics for one track and print them as JSON",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "track-id",
			},
		},
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:  "duration",
				Usage: "Track duration in seconds, used to rank fallback matches",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Skip cached results",
			},
		},
		Before: logToStderr,
		Action: resolve,
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:   "cache",
		Usage:  "Inspect and maintain the lyrics cache",
		Before: logToStderr,
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Print key counts per namespace",
				Action: cacheStats,
			},
			{
				Name:   "backup",
				Usage:  "Snapshot the cache database into the backup directory",
				Action: cacheBackup,
			},
			{
				Name:  "clear",
				Usage: "Drop every entry in a namespace, e.g. Player_LrclibLyrics",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "namespace",
					},
				},
				Action: cacheClear,
			},
		},
	}
}

// logToStderr keeps stdout clean for commands that print JSON.
func logToStderr(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	log.SetOutput(os.Stderr)
	return ctx, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	if alerts := setupAlerts(conf); alerts != nil {
		// Let in-flight alerts, such as a breaker trip during shutdown, go out.
		defer alerts.Wait()
	}

	d, err := newDaemon(ctx, conf)
	if err != nil {
		return err
	}
	defer d.Close()

	statsStore, err := stats.NewStore(conf.Configuration.StatsDBPath, d.stats)
	if err != nil {
		log.Warnf("%s Stats will not persist: %v", logcolors.LogStats, err)
	} else {
		if err := statsStore.Load(); err != nil {
			log.Warnf("%s %v", logcolors.LogStats, err)
		}
		statsStore.StartAutoSave(5 * time.Minute)
		defer statsStore.Close()
	}

	go d.engine.Run(ctx)

	limiter := newLimiter(conf)
	go startLimiterCleanup(ctx, limiter)

	srv := &http.Server{
		Addr:              ":" + cmd.String("port"),
		Handler:           newHandler(d, conf, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("%s Listening on %s", logcolors.LogServer, srv.Addr)
		notifier.Publish(notifier.ServerStarted(srv.Addr, providers.GetRegistry().List()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Infof("%s Shutting down", logcolors.LogServer)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func resolve(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("track-id")
	if id == "" {
		return fmt.Errorf("a track id is required")
	}

	song, err := engine.NewStreamedSong(id, cmd.Float("duration"))
	if err != nil {
		return err
	}

	d, err := newDaemon(ctx, conf)
	if err != nil {
		return err
	}
	defer d.Close()

	d.engine.SetSong(song)
	if cmd.Bool("refresh") {
		d.engine.Wait()
		d.engine.RefreshCurrentLyrics()
	}
	d.engine.Wait()

	state := d.engine.State()
	return printJSON(LyricsResponse{Loaded: state.LyricsLoaded, Lyrics: state.Lyrics})
}

func cacheStats(ctx context.Context, cmd *cli.Command) error {
	d, err := newDaemon(ctx, conf)
	if err != nil {
		return err
	}
	defer d.Close()
	return printJSON(d.cacheStats())
}

func cacheBackup(ctx context.Context, cmd *cli.Command) error {
	d, err := newDaemon(ctx, conf)
	if err != nil {
		return err
	}
	defer d.Close()

	path, err := d.cache.Backup()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	return printJSON(map[string]string{"backup": path})
}

func cacheClear(ctx context.Context, cmd *cli.Command) error {
	namespace := cmd.StringArg("namespace")
	if namespace == "" {
		return fmt.Errorf("a namespace is required")
	}

	d, err := newDaemon(ctx, conf)
	if err != nil {
		return err
	}
	defer d.Close()

	removed, err := d.cache.ClearPrefix(namespace + ":")
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"namespace": namespace, "removed": removed})
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
