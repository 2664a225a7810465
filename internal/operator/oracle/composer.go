// Package oracle asks the pumpkit decision service for the answer to a task.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trigg3rX/pumpkit-operator/internal/operator/events"
	pkghttp "github.com/trigg3rX/pumpkit-operator/pkg/http"
	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
)

var (
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrOracleMalformed   = errors.New("oracle response malformed")
)

type Config struct {
	BaseURL         string
	EligibilityPath string
	DetailsPath     string
	Timeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:3000",
		EligibilityPath: "/token-eligible",
		DetailsPath:     "/token-details",
		Timeout:         10 * time.Second,
	}
}

// ResponsePayload is the oracle's decision for one task
type ResponsePayload struct {
	Event       events.TaskEvent
	Eligible    bool
	Description string
}

// Message is the exact string that is digested, signed and submitted
func (p ResponsePayload) Message() string {
	if p.Event.Kind == events.TokenDetailRequested {
		return p.Description
	}
	return strconv.FormatBool(p.Eligible)
}

type eligibilityResponse struct {
	IsEligible *bool `json:"isEligible"`
}

type detailsResponse struct {
	Description *string `json:"description"`
}

// Composer does not retry; a failed lookup skips the task.
type Composer struct {
	cfg    Config
	client pkghttp.JSONGetter
	logger logging.Logger
}

func NewComposer(cfg Config, logger logging.Logger) (*Composer, error) {
	client, err := pkghttp.NewClient(pkghttp.SingleAttemptConfig(cfg.Timeout), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle http client: %w", err)
	}
	return NewComposerWithClient(cfg, client, logger), nil
}

func NewComposerWithClient(cfg Config, client pkghttp.JSONGetter, logger logging.Logger) *Composer {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.EligibilityPath == "" {
		cfg.EligibilityPath = def.EligibilityPath
	}
	if cfg.DetailsPath == "" {
		cfg.DetailsPath = def.DetailsPath
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Composer{cfg: cfg, client: client, logger: logger}
}

func (c *Composer) Close() {
	c.client.Close()
}

func (c *Composer) Compose(ctx context.Context, event events.TaskEvent) (ResponsePayload, error) {
	payload := ResponsePayload{Event: event}

	switch event.Kind {
	case events.TokenDataCreated:
		var resp eligibilityResponse
		if err := c.fetch(ctx, c.cfg.EligibilityPath, event, &resp); err != nil {
			return payload, err
		}
		if resp.IsEligible == nil {
			return payload, fmt.Errorf("%w: missing isEligible", ErrOracleMalformed)
		}
		payload.Eligible = *resp.IsEligible

	case events.TokenDetailRequested:
		var resp detailsResponse
		if err := c.fetch(ctx, c.cfg.DetailsPath, event, &resp); err != nil {
			return payload, err
		}
		if resp.Description == nil || *resp.Description == "" {
			return payload, fmt.Errorf("%w: missing description", ErrOracleMalformed)
		}
		payload.Description = *resp.Description

	default:
		return payload, fmt.Errorf("%w: unsupported task kind %s", ErrOracleMalformed, event.Kind)
	}

	return payload, nil
}

func (c *Composer) fetch(ctx context.Context, path string, event events.TaskEvent, out interface{}) error {
	query := url.Values{}
	query.Set("tokenName", event.SubjectName)
	query.Set("contractAddress", event.SubjectAddress.Hex())

	err := c.client.GetJSON(ctx, c.cfg.BaseURL+path, query, out)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pkghttp.ErrDecode):
		return fmt.Errorf("%w: %w", ErrOracleMalformed, err)
	default:
		return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
}
