package main

import (
	"flag"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"

	"seamcraft/internal/config"
	"seamcraft/internal/engine"
	"seamcraft/internal/logging"
	"seamcraft/internal/metrics"
	"seamcraft/internal/profiling"
)

var log = logging.New("main")

func main() {
	cfgPath := flag.String("config", "", "path to a YAML config (defaults to $"+config.EnvConfig+")")
	level := flag.String("log", "", "log level override: debug, info, warn, error")
	tickRate := flag.Duration("tick", 16*time.Millisecond, "coordinator tick interval")
	walk := flag.Float64("walk", 0, "observer speed along +X in blocks per second")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		color.Red("config: %v", err)
		os.Exit(1)
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	lvl, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		color.Red("config: %v", err)
		os.Exit(1)
	}
	logging.SetLevel(lvl)

	m := metrics.New()
	color.Blue("Starting world %s (%dx%d sectors)...", cfg.WorldID, cfg.Grid.Dim, cfg.Grid.Dim)
	session, err := engine.NewSession(engine.Options{Config: cfg, Metrics: m})
	if err != nil {
		color.Red("session: %v", err)
		os.Exit(1)
	}

	if cfg.Metrics.Addr != "" {
		srv := m.StartHTTP(cfg.Metrics.Addr)
		closer.Bind(func() {
			if err := srv.Close(); err != nil {
				log.Warnf("metrics server: %v", err)
			}
		})
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	closer.Bind(func() {
		close(done)
		<-stopped
		if err := session.Close(); err != nil {
			log.Errorf("close: %v", err)
		}
		color.Green("World saved, bye.")
	})

	go func() {
		defer close(stopped)
		run(session, *tickRate, float32(*walk), done)
	}()
	closer.Hold()
}

func run(s *engine.Session, rate time.Duration, walk float32, done <-chan struct{}) {
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	last := time.Now()
	wasIdle := false
	report := time.Now()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if walk != 0 {
				s.MoveObserver(mgl32.Vec3{walk * float32(dt.Seconds()), 0, 0})
			}
			stats := s.Tick(dt)
			if stats.Shifts > 0 {
				log.Infof("shifted %d, origin %d,%d", stats.Shifts, s.Grid.OriginX(), s.Grid.OriginZ())
			}
			idle := s.Idle()
			if idle && !wasIdle {
				color.Green("Grid settled after %d ticks: %d columns visible", s.Ticks(), len(s.Columns.RenderQueue()))
			}
			wasIdle = idle
			if time.Since(report) >= 10*time.Second {
				report = time.Now()
				log.Debugf("%s", profiling.TopN(5))
				color.Cyan("tick %d observer %v pending %d avg %v (lighting %v, meshing %v)",
					s.Ticks(), s.Observer(), s.Streamer.Pending(),
					profiling.Average("engine.Tick"),
					profiling.SumWithPrefix("lighting."), profiling.SumWithPrefix("meshing."))
			}
		}
	}
}
