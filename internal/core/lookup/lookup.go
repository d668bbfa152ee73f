// Package lookup answers "where is the host and can I connect to it":
// public IP, configured SSH port and SSH service readiness.
package lookup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lin-Jiong-HDU/qbot/internal/core/execution"
)

const (
	UnknownIP    = "Unknown (Internet Issues?)"
	PortNotFound = "Not Found"

	StatusReady       = "Ready for connection"
	StatusUnreachable = "Service unreachable"
)

// Config holds the lookup settings.
type Config struct {
	IPEndpoint    string        `mapstructure:"ip_endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ServiceCheck  []string      `mapstructure:"service_check"`
	ServiceExpect string        `mapstructure:"service_expect"`
}

// Result is one lookup.
type Result struct {
	IP            string `json:"ip"`
	Port          string `json:"port"`
	ServiceStatus string `json:"service_status"`
	Ready         bool   `json:"ready"`
}

// Status renders readiness as shown to the user.
func (r *Result) Status() string {
	if r.Ready {
		return StatusReady
	}
	return StatusUnreachable
}

// Lookup performs lookups.
type Lookup struct {
	cfg       Config
	sshConfig string
	client    *http.Client
	runner    execution.Runner
	logger    *slog.Logger
}

// New creates a Lookup reading the SSH port from sshConfig.
func New(cfg Config, sshConfig string, runner execution.Runner, logger *slog.Logger) *Lookup {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ServiceExpect == "" {
		cfg.ServiceExpect = "Running"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Lookup{
		cfg:       cfg,
		sshConfig: sshConfig,
		client:    &http.Client{Timeout: cfg.Timeout},
		runner:    runner,
		logger:    logger,
	}
}

// Run gathers all three readings concurrently.
func (l *Lookup) Run(ctx context.Context) *Result {
	r := &Result{}

	var g errgroup.Group
	g.Go(func() error {
		r.IP = l.PublicIP(ctx)
		return nil
	})
	g.Go(func() error {
		r.Port = l.SSHPort()
		return nil
	})
	g.Go(func() error {
		r.ServiceStatus = l.ServiceState(ctx)
		return nil
	})
	_ = g.Wait()

	r.Ready = r.ServiceStatus == l.cfg.ServiceExpect && isDigits(r.Port)
	return r
}

// PublicIP asks the configured endpoint for the host's public address.
func (l *Lookup) PublicIP(ctx context.Context) string {
	if l.cfg.IPEndpoint == "" {
		return UnknownIP
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.IPEndpoint, nil)
	if err != nil {
		l.logger.Warn("bad ip endpoint", "endpoint", l.cfg.IPEndpoint, "error", err)
		return UnknownIP
	}

	resp, err := l.client.Do(req)
	if err != nil {
		l.logger.Warn("public ip lookup failed", "error", err)
		return UnknownIP
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.logger.Warn("public ip lookup failed", "status", resp.StatusCode)
		return UnknownIP
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return UnknownIP
	}
	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return UnknownIP
	}
	return ip
}

// SSHPort returns the value of the first "Port N" line of the SSH
// server config.
func (l *Lookup) SSHPort() string {
	f, err := os.Open(l.sshConfig)
	if err != nil {
		return fmt.Sprintf("Error reading config: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Port ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 1 {
			return fields[1]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Sprintf("Error reading config: %v", err)
	}
	return PortNotFound
}

// ServiceState runs the service status command and returns its trimmed
// output.
func (l *Lookup) ServiceState(ctx context.Context) string {
	if len(l.cfg.ServiceCheck) == 0 || l.runner == nil {
		return ""
	}
	res := l.runner.Run(ctx, execution.NewCommand(l.cfg.ServiceCheck...))
	if res.Error != nil {
		l.logger.Warn("service check failed", "error", res.Error)
	}
	return strings.TrimSpace(res.Stdout)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
