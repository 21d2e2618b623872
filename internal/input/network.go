package input

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/tag"
	"github.com/icecasthls/icecasthls/pkg/httpclient"
)

// Network dials a remote stream and runs the ICY state machine: HEADERS
// (the HTTP response headers, parsed for icy-metaint) then BODY, either
// interleaved with metadata chunks every metaint bytes (metaint-on) or
// pure audio (metaint-off), until the connection drops (EOF).
type Network struct {
	url            string
	connectTimeout time.Duration
	readTimeout    time.Duration

	client *httpclient.Client
	body   io.ReadCloser

	metaint     int
	sinceMeta   int
	onTags      func(*tag.List)
}

// NewNetwork builds an unconfigured Network driver.
func NewNetwork() *Network {
	return &Network{connectTimeout: 10 * time.Second, readTimeout: 30 * time.Second}
}

func (d *Network) Configure(key, value string) error {
	switch key {
	case "url":
		d.url = value
	case "connect-timeout":
		dur, err := time.ParseDuration(value)
		if err != nil {
			return errs.New("input", "network", errs.KindConfig, err)
		}
		d.connectTimeout = dur
	case "read-timeout":
		dur, err := time.ParseDuration(value)
		if err != nil {
			return errs.New("input", "network", errs.KindConfig, err)
		}
		d.readTimeout = dur
	default:
		return errs.New("input", "network", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (d *Network) Open() error {
	if d.url == "" {
		return errs.New("input", "network", errs.KindConfig, fmt.Errorf("url is required"))
	}
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = d.connectTimeout
	d.client = httpclient.New(cfg)

	req, err := http.NewRequest(http.MethodGet, d.url, nil)
	if err != nil {
		return errs.New("input", "network", errs.KindConfig, err)
	}
	req.Header.Set("Icy-MetaData", "1")

	resp, err := d.client.Do(req)
	if err != nil {
		return errs.New("input", "network", errs.KindTransientIO, err)
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return errs.New("input", "network", errs.KindProtocol, fmt.Errorf("unexpected status %s", resp.Status))
	}

	d.metaint = 0
	if v := resp.Header.Get("icy-metaint"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			d.metaint = n
		}
	}
	d.sinceMeta = 0
	d.body = resp.Body
	return nil
}

// Read implements the ICY-aware body-interleaving: when metaint is
// active, it returns only audio bytes, transparently consuming and
// dispatching any metadata chunk that falls due mid-read.
func (d *Network) Read(dest []byte) (int, error) {
	if d.metaint == 0 {
		return d.body.Read(dest)
	}

	remaining := d.metaint - d.sinceMeta
	if remaining <= 0 {
		if err := d.consumeMetadata(); err != nil {
			return 0, err
		}
		remaining = d.metaint
	}
	if len(dest) > remaining {
		dest = dest[:remaining]
	}
	n, err := d.body.Read(dest)
	d.sinceMeta += n
	return n, err
}

func (d *Network) consumeMetadata() error {
	var lenByte [1]byte
	if _, err := io.ReadFull(d.body, lenByte[:]); err != nil {
		return err
	}
	d.sinceMeta = 0
	n := int(lenByte[0]) * 16
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.body, buf); err != nil {
		return err
	}
	if d.onTags == nil {
		return nil
	}
	payload := string(trimNulPad(buf))
	d.onTags(parseICYMetadata(payload))
	return nil
}

func trimNulPad(b []byte) []byte {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0 {
			return b[:i+1]
		}
	}
	return nil
}

func (d *Network) TagHandler(fn func(*tag.List)) { d.onTags = fn }

func (d *Network) Close() error {
	if d.body == nil {
		return nil
	}
	err := d.body.Close()
	d.body = nil
	return err
}
