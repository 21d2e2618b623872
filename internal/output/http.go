package output

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/icecasthls/icecasthls/internal/config"
	"github.com/icecasthls/icecasthls/internal/hls"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/pkg/httpclient"
)

// HTTP writes every segment and playlist via an HTTP PUT to
// baseURL+filename, using pkg/httpclient's resilient client (retry,
// backoff, transparent decompression of error bodies). Delete issues an
// HTTP DELETE, gated by the "delete" config key so destinations that
// rely on an external lifecycle policy can disable it.
type HTTP struct {
	baseURL   string
	enableDel bool
	timeout   config.Duration
	client    *httpclient.Client
	engine    *hls.Engine
}

// NewHTTP builds an unconfigured HTTP output.
func NewHTTP() *HTTP { return &HTTP{enableDel: true} }

func (h *HTTP) Configure(key, value string) error {
	switch key {
	case "url", "base-url":
		h.baseURL = value
	case "delete":
		h.enableDel = value == "true" || value == "1"
	case "timeout":
		d, err := config.ParseDuration(value)
		if err != nil {
			return errs.New("output", "http", errs.KindConfig, err)
		}
		h.timeout = d
	case "target-duration", "playlist-length", "init-basename", "playlist-filename", "entry-prefix":
		if h.engine == nil {
			h.engine = hls.New()
		}
		return h.engine.Configure(key, value)
	default:
		return errs.New("output", "http", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (h *HTTP) Open(src hls.Source) (*hls.Engine, error) {
	if h.baseURL == "" {
		return nil, errs.New("output", "http", errs.KindConfig, fmt.Errorf("http output requires a url"))
	}
	clientCfg := httpclient.DefaultConfig()
	if h.timeout > 0 {
		clientCfg.Timeout = h.timeout.Duration()
	}
	h.client = httpclient.New(clientCfg)
	if h.engine == nil {
		h.engine = hls.New()
	}
	h.engine.Write = h.write
	h.engine.Delete = h.delete
	if err := h.engine.Open(src); err != nil {
		return nil, errs.New("output", "http", errs.KindFormat, err)
	}
	return h.engine, nil
}

func (h *HTTP) write(filename string, data []byte, mime string) error {
	req, err := http.NewRequest(http.MethodPut, h.baseURL+filename, bytes.NewReader(data))
	if err != nil {
		return errs.New("output", "http", errs.KindConfig, err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", mime)
	resp, err := h.client.Do(req)
	if err != nil {
		return errs.New("output", "http", errs.KindTransientIO, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errs.New("output", "http", errs.KindProtocol, fmt.Errorf("PUT %s: unexpected status %s", filename, resp.Status))
	}
	return nil
}

func (h *HTTP) delete(filename string) error {
	if !h.enableDel {
		return nil
	}
	req, err := http.NewRequest(http.MethodDelete, h.baseURL+filename, nil)
	if err != nil {
		return errs.New("output", "http", errs.KindConfig, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return errs.New("output", "http", errs.KindTransientIO, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return errs.New("output", "http", errs.KindProtocol, fmt.Errorf("DELETE %s: unexpected status %s", filename, resp.Status))
	}
	return nil
}

func (h *HTTP) Close() error { return nil }
