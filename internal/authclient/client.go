// Package authclient talks to the authentication oracle.  Requests run in
// the background so the tick loop only ever polls.
package authclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/Portunus/station/internal/station/store"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/types"
)

// maxResponseBody caps how much of an oracle reply is read.  The oracle
// answers with a short literal, so 4 KiB is generous.
const maxResponseBody = 4096

var (
	ErrInvalidConfig    = errors.New("authclient: invalid config")
	ErrConnectivity     = errors.New("authclient: oracle unreachable")
	ErrUnexpectedStatus = errors.New("authclient: unexpected status")
)

type Config struct {
	BaseURL   string // e.g. "http://192.168.178.99"
	Token     string
	Group     string // machine group checked for permission
	MachineID string // reported for the backend log

	Timeout    time.Duration // defaults to 3s
	HTTPClient *http.Client
	Logger     *log.Logger
}

type outcome struct {
	cardID string
	result types.AuthResult
}

// Client is a single-flight oracle client.  At most one access request is
// outstanding at a time.
type Client struct {
	base    string
	host    string
	token   string
	group   string
	machine string
	timeout time.Duration
	http    *http.Client
	logger  *log.Logger

	mu       sync.Mutex
	inflight bool
	gen      uint64
	done     *outcome

	extending atomic.Bool
	wg        sync.WaitGroup
}

func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q needs scheme and host", ErrInvalidConfig, cfg.BaseURL)
	}
	for name, v := range map[string]string{"token": cfg.Token, "group": cfg.Group, "machine id": cfg.MachineID} {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidConfig, name)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Client{
		base:    strings.TrimRight(u.String(), "/"),
		host:    u.Host,
		token:   strings.TrimSpace(cfg.Token),
		group:   strings.TrimSpace(cfg.Group),
		machine: strings.TrimSpace(cfg.MachineID),
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}, nil
}

// TryAuthenticate never blocks.  It returns the result of a completed request
// for cardID if one is waiting; otherwise it starts a request (unless one is
// already outstanding) and returns AuthBusy.
func (c *Client) TryAuthenticate(cardID string) types.AuthResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight {
		return types.AuthBusy
	}
	if c.done != nil {
		d := *c.done
		c.done = nil
		if d.cardID == cardID {
			return d.result
		}
	}

	c.inflight = true
	c.wg.Add(1)
	go c.run(c.gen, cardID)
	return types.AuthBusy
}

// Forget drops an unclaimed result and orphans any outstanding request so
// its answer is discarded on arrival.
func (c *Client) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.done = nil
}

// Wait blocks until background requests have finished.
func (c *Client) Wait() { c.wg.Wait() }

func (c *Client) run(gen uint64, cardID string) {
	defer c.wg.Done()

	result, err := c.Authenticate(context.Background(), cardID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight = false

	if err != nil {
		// No result stored: the next poll issues a fresh request.
		c.logger.Printf("access request for card %s failed: %v", store.CardTag(cardID), err)
		return
	}
	if gen != c.gen {
		return
	}
	c.done = &outcome{cardID: cardID, result: result}
}

// Authenticate performs one blocking access request bounded by the client
// timeout.  Only an explicit answer from the oracle yields Granted or
// Denied; everything else is an error and AuthBusy.
func (c *Client) Authenticate(ctx context.Context, cardID string) (types.AuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.accessURL(cardID), nil)
	if err != nil {
		return types.AuthBusy, fmt.Errorf("build request: %v", stripURL(err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.AuthBusy, fmt.Errorf("%w: %s: %v", ErrConnectivity, c.host, stripURL(err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return types.AuthBusy, fmt.Errorf("%w: read body: %v", ErrConnectivity, err)
		}
		if strings.Contains(string(body), "true") {
			return types.AuthGranted, nil
		}
		return types.AuthDenied, nil

	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return types.AuthDenied, nil

	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return types.AuthBusy, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}

// ExtendSession tells the oracle the machine is still in use.  Fire and
// forget: the response is not interpreted and at most one call is pending.
func (c *Client) ExtendSession() {
	if !c.extending.CompareAndSwap(false, true) {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.extending.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.extendURL(), nil)
		if err != nil {
			c.logger.Printf("extend session: %v", stripURL(err))
			return
		}
		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Printf("extend session via %s: %v", c.host, stripURL(err))
			return
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		_ = resp.Body.Close()
	}()
}

// stripURL drops the request URL from a transport error.  The token is a
// path segment and must not reach the logs.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

func (c *Client) accessURL(cardID string) string {
	return c.join(c.token, c.group, c.machine, cardID)
}

func (c *Client) extendURL() string {
	return c.join(c.token, c.group)
}

func (c *Client) join(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.base)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}
