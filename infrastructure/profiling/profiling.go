// Package profiling starts optional pprof and Pyroscope profilers.
package profiling

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"time"

	"github.com/grafana/pyroscope-go"

	"github.com/jonesrussell/marketplace/infrastructure/logger"
)

// Config selects which profilers run.
type Config struct {
	PprofEnabled     bool   `env:"ENABLE_PROFILING"            yaml:"pprof_enabled"`
	PprofAddress     string `env:"PPROF_ADDRESS"               yaml:"pprof_address"`
	PyroscopeEnabled bool   `env:"ENABLE_CONTINUOUS_PROFILING" yaml:"pyroscope_enabled"`
	PyroscopeURL     string `env:"PYROSCOPE_SERVER_URL"        yaml:"pyroscope_url"`
	Environment      string `env:"PYROSCOPE_ENVIRONMENT"       yaml:"environment"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.PprofAddress == "" {
		c.PprofAddress = "localhost:6060"
	}
	if c.PyroscopeURL == "" {
		c.PyroscopeURL = "http://pyroscope:4040"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// Profiler holds the running profilers.
type Profiler struct {
	pyroscope *pyroscope.Profiler
	pprof     *http.Server
}

// Start launches the enabled profilers for service.
func Start(cfg Config, service, version string, log logger.Logger) (*Profiler, error) {
	cfg.SetDefaults()
	p := &Profiler{}

	if cfg.PprofEnabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		p.pprof = &http.Server{Addr: cfg.PprofAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("Starting pprof server", logger.String("address", cfg.PprofAddress))
			if err := p.pprof.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("pprof server stopped", logger.Error(err))
			}
		}()
	}

	if cfg.PyroscopeEnabled {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}

		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "marketplace." + service,
			ServerAddress:   cfg.PyroscopeURL,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseSpace,
				pyroscope.ProfileGoroutines,
			},
			Tags: map[string]string{
				"environment": cfg.Environment,
				"version":     version,
				"hostname":    hostname,
				"go_version":  runtime.Version(),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("start pyroscope profiler: %w", err)
		}
		p.pyroscope = profiler
		log.Info("Pyroscope profiling started", logger.String("server", cfg.PyroscopeURL))
	}

	return p, nil
}

// Stop stops every profiler that was started.
func (p *Profiler) Stop() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.pprof != nil {
		errs = append(errs, p.pprof.Close())
	}
	if p.pyroscope != nil {
		errs = append(errs, p.pyroscope.Stop())
	}
	return errors.Join(errs...)
}
