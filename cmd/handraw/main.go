package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/VicFreyre/handraw-pipe/internal/app"
	"github.com/VicFreyre/handraw-pipe/internal/canvas"
	"github.com/VicFreyre/handraw-pipe/internal/capture"
	"github.com/VicFreyre/handraw-pipe/internal/config"
	"github.com/VicFreyre/handraw-pipe/internal/discovery"
	"github.com/VicFreyre/handraw-pipe/internal/export"
	"github.com/VicFreyre/handraw-pipe/internal/logger"
	"github.com/VicFreyre/handraw-pipe/internal/metrics"
	"github.com/VicFreyre/handraw-pipe/internal/server"
	"github.com/VicFreyre/handraw-pipe/internal/store"
	"github.com/VicFreyre/handraw-pipe/internal/tray"
)

const monitorInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "handraw.yaml", "path to the YAML config file")
	discover := flag.Duration("discover", 0, "list handraw servers on the LAN for this long, then exit")
	flag.Parse()

	if err := run(*configPath, *discover); err != nil {
		fmt.Fprintf(os.Stderr, "handraw: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, discover time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Mode); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.S()

	if discover > 0 {
		return listPeers(discover)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	m := metrics.New()
	session := app.NewSession(app.SessionConfig{
		Width:          cfg.Drawing.Width,
		Height:         cfg.Drawing.Height,
		PinchThreshold: cfg.Drawing.PinchThreshold,
		EraserScale:    cfg.Drawing.EraserScale,
		Metrics:        m,
		Settings:       st.Settings(),
	})

	appCfg := app.Config{Session: session, Metrics: m, Mirror: cfg.Camera.Mirror}
	if cfg.Source == config.SourceCamera {
		appCfg.Camera = capture.NewCamera(capture.Config{
			DeviceID: cfg.Camera.DeviceID,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.FPS,
		})
	}
	a := app.New(appCfg)

	writer, err := export.NewWriter(cfg.Export.Dir, cfg.Export.Prefix, cfg.Export.ThumbnailSize)
	if err != nil {
		return err
	}
	exporter := app.NewExporter(session, writer, st.Exports(), m)

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		log.Infow("serving static files", "dir", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		App:       a,
		Exporter:  exporter,
		Store:     st,
		Ingest:    cfg.Source == config.SourceClient,
		Metrics:   cfg.Metrics.Enabled,
		StreamFPS: cfg.Server.StreamFPS,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer a.Stop()

	log.Infow("handraw started",
		"addr", cfg.Server.Addr,
		"source", cfg.Source,
		"canvas", fmt.Sprintf("%dx%d", cfg.Drawing.Width, cfg.Drawing.Height),
		"exports", writer.Dir(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Server.Addr)
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return m.MonitorProcess(gctx, monitorInterval)
		})
	}
	if cfg.Discovery.Enabled {
		g.Go(func() error {
			return advertise(gctx, cfg)
		})
	}

	if cfg.Tray.Enabled {
		// The tray owns the main thread until it quits.
		t := newTray(a, exporter, uiURL(cfg.Server.Addr), stop)
		go func() {
			<-gctx.Done()
			t.Quit()
		}()
		t.Run()
		stop()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("handraw stopped")
	return nil
}

// advertise publishes the server over mDNS until ctx is done. Failing to
// advertise is not fatal.
func advertise(ctx context.Context, cfg config.Config) error {
	port, err := discovery.PortFromAddr(cfg.Server.Addr)
	if err != nil {
		return err
	}
	adv, err := discovery.Advertise(cfg.Discovery.Instance, port)
	if err != nil {
		logger.S().Warnw("mdns advertisement unavailable", "error", err)
		return nil
	}
	<-ctx.Done()
	return adv.Shutdown()
}

func listPeers(timeout time.Duration) error {
	peers, err := discovery.Browse(timeout)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		fmt.Println("no handraw servers found")
		return nil
	}
	for _, p := range peers {
		fmt.Printf("%s\t%s\t%s\n", p.Instance, p.Addr, strings.Join(p.Info, " "))
	}
	return nil
}

func newTray(a *app.App, exporter *app.Exporter, url string, quit func()) *tray.Tray {
	log := logger.Named("tray").Sugar()
	t := tray.New()

	t.OnToggle(a.SetEnabled)
	t.OnEraser(func(on bool) {
		if _, err := a.Session().SetEraser(on); err != nil {
			log.Warnw("could not switch eraser", "error", err)
		}
	})
	t.OnColor(func(hex string) {
		if _, err := a.Session().UpdateBrush(canvas.BrushUpdate{Color: &hex}); err != nil {
			log.Warnw("could not change color", "color", hex, "error", err)
		}
	})
	t.OnClear(a.Session().Clear)
	t.OnExport(func() {
		rec, err := exporter.Export(export.FormatPNG)
		if err != nil {
			log.Errorw("export failed", "error", err)
			return
		}
		log.Infow("canvas exported", "file", rec.Filename)
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			log.Warnw("could not open browser", "url", url, "error", err)
		}
	})
	t.OnQuit(quit)

	results, _ := a.Session().Subscribe()
	go func() {
		last := ""
		for res := range results {
			status := "Idle"
			if res.Drawing {
				status = "Drawing"
			}
			if status != last {
				t.SetStatus(status)
				last = status
			}
		}
	}()

	return t
}

func uiURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
