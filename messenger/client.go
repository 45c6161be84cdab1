package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Operations reported in DeliveryError.Op.
const (
	OpSendMessage       = "send_message"
	OpSetPersistentMenu = "set_persistent_menu"
)

// DeliveryError describes a failed call to the platform.
type DeliveryError struct {
	Op         string
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("%s: status %d: graph error %d: %s", e.Op, e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same call may succeed.
func (e *DeliveryError) Temporary() bool {
	if e.Err != nil {
		return !errors.Is(e.Err, context.Canceled)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Config controls how the client reaches the Graph API.
type Config struct {
	BaseURL        string
	AccessToken    string
	Timeout        time.Duration
	MaxRetries     uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client calls the Send API. It retries transient failures with exponential
// backoff and stops calling the platform while the circuit breaker is open.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient creates a client. Zero durations fall back to sane defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "graph-api",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Rejections such as an unknown recipient say nothing about the
		// platform's health and must not open the breaker.
		IsSuccessful: func(err error) bool {
			var derr *DeliveryError
			if errors.As(err, &derr) {
				return !derr.Temporary()
			}
			return err == nil
		},
	})
	return c
}

// BreakerState returns the circuit breaker state for status pages.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// SendMessage delivers resp to the user identified by psid.
func (c *Client) SendMessage(ctx context.Context, psid string, resp Response) (SendResult, error) {
	body := SendRequest{
		Recipient:     Recipient{ID: psid},
		MessagingType: MessagingTypeReply,
		Message:       resp,
	}
	var result SendResult
	if err := c.post(ctx, OpSendMessage, "/me/messages", body, &result); err != nil {
		return SendResult{}, err
	}
	return result, nil
}

// SetPersistentMenu installs the persistent menu for one user. Repeating the
// call with the same items is harmless.
func (c *Client) SetPersistentMenu(ctx context.Context, psid string, actions []MenuAction) error {
	body := UserSettingsRequest{
		PSID: psid,
		PersistentMenu: []PersistentMenu{{
			Locale:        DefaultMenuLocale,
			CallToActions: actions,
		}},
	}
	return c.post(ctx, OpSetPersistentMenu, "/me/custom_user_settings", body, nil)
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &DeliveryError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.MaxInterval = c.cfg.MaxBackoff

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.do(ctx, op, path, payload, out)
		})
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return struct{}{}, backoff.Permanent(&DeliveryError{Op: op, Err: err})
		}
		var derr *DeliveryError
		if errors.As(err, &derr) && !derr.Temporary() {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.cfg.MaxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("retrying graph api call",
				zap.String("op", op),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		var derr *DeliveryError
		if errors.As(err, &derr) {
			return derr
		}
		return &DeliveryError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, path string, payload []byte, out any) error {
	endpoint := c.cfg.BaseURL + path + "?" + url.Values{"access_token": {c.cfg.AccessToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &DeliveryError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &DeliveryError{Op: op, Err: stripToken(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		derr := &DeliveryError{Op: op, StatusCode: resp.StatusCode}
		var ge graphError
		if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
			derr.Code = ge.Error.Code
			derr.Message = ge.Error.Message
		} else {
			derr.Message = preview(raw)
		}
		return derr
	}

	// The platform accepted the call; an unreadable or odd body must not
	// trigger a resend.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Warn("unreadable graph api response", zap.String("op", op), zap.Error(err))
		return nil
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			c.logger.Warn("undecodable graph api response", zap.String("op", op), zap.Error(err))
		}
	}
	return nil
}

// stripToken keeps the access token out of logged transport errors.
func stripToken(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
		}
	}
	return err
}

func preview(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBodyPreview {
		s = s[:maxErrorBodyPreview]
	}
	return s
}
