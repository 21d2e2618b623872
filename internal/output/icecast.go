package output

import (
	"bufio"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/icecasthls/icecasthls/internal/hls"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/pkg/httpclient"
)

// Icecast is not an HLS destination: it holds one long-lived PUT
// connection open for the lifetime of the stream and writes every
// segment body (init and media) onto it as it arrives, with no
// playlist. Tag updates go out as a separate GET to /admin/metadata
// with a template string substituting %t/%a/%A for title/artist/album,
// RFC3986-encoded.
type Icecast struct {
	mountURL string
	userAgent string
	template string // default "%t"

	mu   sync.Mutex
	conn net.Conn
	bw   *bufio.Writer

	metaClient *httpclient.Client
	adminURL   string
}

// NewIcecast builds an unconfigured Icecast output.
func NewIcecast() *Icecast { return &Icecast{template: "%t"} }

func (i *Icecast) Configure(key, value string) error {
	switch key {
	case "url", "mount-url":
		i.mountURL = value
	case "user-agent":
		i.userAgent = value
	case "metadata-template":
		i.template = value
	default:
		return errs.New("output", "icecast", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

// Open performs the PUT handshake: send request line + headers with
// Expect: 100-continue over a raw connection, read until an "HTTP/1.1
// 100" interim response, then return an hls.Engine whose Write streams
// segment bytes straight onto the still-open connection (ignoring
// playlist writes, which have no meaning for a live mountpoint) and
// whose Delete is a no-op.
func (i *Icecast) Open(src hls.Source) (*hls.Engine, error) {
	if i.mountURL == "" {
		return nil, errs.New("output", "icecast", errs.KindConfig, fmt.Errorf("icecast output requires a url"))
	}
	u, err := url.Parse(i.mountURL)
	if err != nil {
		return nil, errs.New("output", "icecast", errs.KindConfig, err)
	}

	if err := i.dial(u, src); err != nil {
		return nil, err
	}

	i.adminURL = fmt.Sprintf("%s://%s/admin/metadata", u.Scheme, u.Host)
	i.metaClient = httpclient.New(httpclient.DefaultConfig())

	engine := hls.New()
	engine.Write = i.write
	engine.Delete = func(string) error { return nil }
	if err := engine.Open(src); err != nil {
		return nil, errs.New("output", "icecast", errs.KindFormat, err)
	}
	return engine, nil
}

func (i *Icecast) dial(u *url.URL, src hls.Source) error {
	host := u.Host
	if !strings.Contains(host, ":") {
		if u.Scheme == "https" {
			host += ":443"
		} else {
			host += ":80"
		}
	}

	var conn net.Conn
	var err error
	if u.Scheme == "https" {
		conn, err = tls.Dial("tcp", host, &tls.Config{ServerName: u.Hostname()})
	} else {
		conn, err = net.Dial("tcp", host)
	}
	if err != nil {
		return errs.New("output", "icecast", errs.KindTransientIO, err)
	}

	path := u.RequestURI()
	if path == "" {
		path = "/"
	}
	ua := i.userAgent
	if ua == "" {
		ua = "icecast-hls"
	}
	mime := src.MediaMime
	if mime == "" {
		mime = "application/octet-stream"
	}

	var req strings.Builder
	fmt.Fprintf(&req, "PUT %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&req, "Host: %s\r\n", u.Host)
	fmt.Fprintf(&req, "User-Agent: %s\r\n", ua)
	fmt.Fprintf(&req, "Content-Type: %s\r\n", mime)
	req.WriteString("Transfer-Encoding: chunked\r\n")
	req.WriteString("Expect: 100-continue\r\n")
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			fmt.Fprintf(&req, "Authorization: Basic %s\r\n", basicAuth(u.User.Username(), pw))
		}
	}
	req.WriteString("\r\n")

	if _, err := conn.Write([]byte(req.String())); err != nil {
		conn.Close()
		return errs.New("output", "icecast", errs.KindTransientIO, err)
	}

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		conn.Close()
		return errs.New("output", "icecast", errs.KindTransientIO, err)
	}
	if !strings.HasPrefix(line, "HTTP/1.1 100") {
		conn.Close()
		return errs.New("output", "icecast", errs.KindProtocol, fmt.Errorf("icecast handshake: unexpected response %q", strings.TrimSpace(line)))
	}
	// consume the (empty) header block following the 100-continue line
	for {
		l, err := r.ReadString('\n')
		if err != nil || l == "\r\n" || l == "\n" {
			break
		}
	}

	i.conn = conn
	i.bw = bufio.NewWriter(conn)
	return nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

// write streams an init or media segment's bytes onto the open chunked
// PUT body; playlist writes (which carry no meaning for a live
// mountpoint) and empty writes are silently dropped.
func (i *Icecast) write(filename string, data []byte, mime string) error {
	if strings.HasSuffix(filename, ".m3u8") || len(data) == 0 {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.bw == nil {
		return errs.New("output", "icecast", errs.KindLifecycleViolation, fmt.Errorf("icecast output not open"))
	}
	fmt.Fprintf(i.bw, "%x\r\n", len(data))
	i.bw.Write(data)
	i.bw.WriteString("\r\n")
	if err := i.bw.Flush(); err != nil {
		return errs.New("output", "icecast", errs.KindTransientIO, err)
	}
	return nil
}

// UpdateMetadata sends the %t/%a/%A-templated, RFC3986-encoded metadata
// string to /admin/metadata, the way icecast_write_tags does on a tag
// update.
func (i *Icecast) UpdateMetadata(title, artist, album string) error {
	if i.metaClient == nil {
		return nil
	}
	song := i.template
	song = strings.ReplaceAll(song, "%t", title)
	song = strings.ReplaceAll(song, "%a", artist)
	song = strings.ReplaceAll(song, "%A", album)

	q := url.Values{}
	q.Set("mode", "updinfo")
	q.Set("song", song)
	req, err := http.NewRequest(http.MethodGet, i.adminURL+"?"+q.Encode(), nil)
	if err != nil {
		return errs.New("output", "icecast", errs.KindConfig, err)
	}
	resp, err := i.metaClient.Do(req)
	if err != nil {
		return errs.New("output", "icecast", errs.KindTransientIO, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errs.New("output", "icecast", errs.KindProtocol, fmt.Errorf("metadata update: unexpected status %s", resp.Status))
	}
	return nil
}

func (i *Icecast) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.conn == nil {
		return nil
	}
	if i.bw != nil {
		i.bw.WriteString("0\r\n\r\n")
		i.bw.Flush()
	}
	err := i.conn.Close()
	i.conn = nil
	return err
}
