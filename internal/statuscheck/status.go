package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/local/pdfdocx/internal/runner"
)

// Pinger models any dependency that can answer a liveness ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe verifies that the external binaries OCR needs are installed. An empty
// binary name is skipped, so in-process backends need no entry.
type Probe struct {
	Binaries []string
	lookPath func(string) (string, error)
}

// NewProbe returns a Probe for the given binaries.
func NewProbe(binaries ...string) *Probe {
	var bins []string
	for _, b := range binaries {
		if b = strings.TrimSpace(b); b != "" {
			bins = append(bins, b)
		}
	}
	return &Probe{Binaries: bins, lookPath: runner.Resolve}
}

// Check returns an error naming every missing binary.
func (p *Probe) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	look := p.lookPath
	if look == nil {
		look = runner.Resolve
	}
	var missing []string
	for _, b := range p.Binaries {
		if _, err := look(b); err != nil {
			missing = append(missing, b)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("executable not found: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Options configures the Checker.
type Options struct {
	Probe    *Probe
	Redis    Pinger
	Storage  Pinger
	Backends map[string]string
}

// Checker aggregates health checks for the status endpoint.
type Checker struct {
	probe    *Probe
	redis    Pinger
	storage  Pinger
	backends map[string]string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	OK       bool              `json:"ok"`
	Runtime  Status            `json:"ocr_runtime"`
	Binaries map[string]Status `json:"binaries"`
	Progress Status            `json:"progress_store"`
	Storage  Status            `json:"result_storage"`
	Backends map[string]string `json:"backends,omitempty"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	return &Checker{probe: opts.Probe, redis: opts.Redis, storage: opts.Storage, backends: opts.Backends}
}

// Summary returns the current status snapshot. OK reflects only the OCR
// runtime; the remaining stores degrade to their in-memory or local fallbacks.
func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{Binaries: map[string]Status{}, Backends: c.backends}
	if c.probe != nil {
		for _, b := range c.probe.Binaries {
			s.Binaries[b] = c.binary(b)
		}
		s.Runtime = errStatus(c.probe.Check(ctx), "Available")
	} else {
		s.Runtime = Status{OK: true, Message: "In-process"}
	}
	s.Progress = c.ping(ctx, c.redis, "In-memory", 2*time.Second)
	s.Storage = c.ping(ctx, c.storage, "Local disk", 5*time.Second)
	s.OK = s.Runtime.OK
	return s
}

func (c *Checker) binary(name string) Status {
	look := c.probe.lookPath
	if look == nil {
		look = runner.Resolve
	}
	path, err := look(name)
	if err != nil {
		return Status{OK: false, Message: "Binary not found"}
	}
	return Status{OK: true, Message: path}
}

func (c *Checker) ping(ctx context.Context, p Pinger, fallback string, timeout time.Duration) Status {
	if p == nil {
		return Status{OK: true, Message: fallback}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return errStatus(p.Ping(ctx), "Connected")
}

func errStatus(err error, okMsg string) Status {
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: okMsg}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
