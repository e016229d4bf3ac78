package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Pipeline holds the runtime knobs for the job pipeline: how many workers
// each kind gets, how long a lease lasts, and how the janitor behaves.
type Pipeline struct {
	CertificateWorkers  int           `env:"CERTIFICATE_WORKERS,default=2"`
	EmailWorkers        int           `env:"EMAIL_WORKERS,default=4"`
	NotificationWorkers int           `env:"NOTIFICATION_WORKERS,default=4"`
	VideoWorkers        int           `env:"VIDEO_WORKERS,default=1"`
	LeaseDuration       time.Duration `env:"LEASE_DURATION,default=1m"`
	JanitorInterval     time.Duration `env:"JANITOR_INTERVAL,default=30s"`
	IdleDelayMin        time.Duration `env:"IDLE_DELAY_MIN,default=1s"`
	IdleDelayMax        time.Duration `env:"IDLE_DELAY_MAX,default=30s"`
	APIAddr             string        `env:"API_ADDR,default=:8080"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadPipelineFromEnv(ctx context.Context) (*Pipeline, error) {
	var cfg Pipeline
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validatePipeline(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validatePipeline(cfg *Pipeline) error {
	var errors []string

	for name, n := range map[string]int{
		"CERTIFICATE_WORKERS":  cfg.CertificateWorkers,
		"EMAIL_WORKERS":        cfg.EmailWorkers,
		"NOTIFICATION_WORKERS": cfg.NotificationWorkers,
		"VIDEO_WORKERS":        cfg.VideoWorkers,
	} {
		if n < 1 {
			errors = append(errors, name+" must be at least 1")
		}
	}

	if cfg.LeaseDuration < time.Second {
		errors = append(errors, "LEASE_DURATION must be at least 1s")
	}

	if cfg.JanitorInterval <= 0 {
		errors = append(errors, "JANITOR_INTERVAL must be positive")
	}

	if cfg.IdleDelayMin <= 0 {
		errors = append(errors, "IDLE_DELAY_MIN must be positive")
	}

	if cfg.IdleDelayMax < cfg.IdleDelayMin {
		errors = append(errors, "IDLE_DELAY_MAX must not be below IDLE_DELAY_MIN")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// WorkersFor returns the configured concurrency for a job kind.
func (c *Pipeline) WorkersFor(kind JobKind) int {
	switch kind {
	case KindCertificate:
		return c.CertificateWorkers
	case KindEmail:
		return c.EmailWorkers
	case KindNotification:
		return c.NotificationWorkers
	case KindVideo:
		return c.VideoWorkers
	default:
		return 1
	}
}
