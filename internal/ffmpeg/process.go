// Package ffmpeg wraps the external ffmpeg binary as a streaming
// transcode process: stdin/stdout pipes instead of file paths, for the
// "generic" decoder and encoder stages that need a real codec ffmpeg
// implements but this module does not. Binary resolution, exec.Cmd
// lifecycle, and stderr capture follow a pipe-fed, one-process-per-stream
// model rather than file-path batch transcodes.
package ffmpeg

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/icecasthls/icecasthls/internal/util"
)

// BinaryEnvVar names the environment variable util.FindBinary consults
// when locating ffmpeg, checked in order: $ICECASTHLS_FFMPEG, ./ffmpeg,
// then $PATH.
const BinaryEnvVar = "ICECASTHLS_FFMPEG"

// ResolveBinary locates the ffmpeg executable.
func ResolveBinary() (string, error) {
	return util.FindBinary("ffmpeg", BinaryEnvVar)
}

// StreamProcess runs ffmpeg as a long-lived pipe filter: Write feeds its
// stdin, Read drains its stdout, and Close waits for the process to exit
// after stdin is closed.
type StreamProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	stderrBuf  bytes.Buffer
	stderrMu   sync.Mutex
	closeOnce  sync.Once
	waitErr    error
}

// Start launches ffmpeg with args (everything after the binary name,
// e.g. ["-f", "s16le", "-i", "pipe:0", "-f", "adts", "pipe:1"]).
func Start(args []string) (*StreamProcess, error) {
	bin, err := ResolveBinary()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	p := &StreamProcess{cmd: exec.Command(bin, args...)}

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	p.stdin = stdin
	p.stdout = stdout

	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start: %w", err)
	}

	go p.drainStderr(stderr)
	return p, nil
}

func (p *StreamProcess) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		p.stderrMu.Lock()
		p.stderrBuf.WriteString(scanner.Text())
		p.stderrBuf.WriteByte('\n')
		p.stderrMu.Unlock()
	}
}

// Write feeds raw bytes to ffmpeg's stdin.
func (p *StreamProcess) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Read drains decoded/encoded bytes from ffmpeg's stdout.
func (p *StreamProcess) Read(b []byte) (int, error) { return p.stdout.Read(b) }

// CloseWrite signals EOF to ffmpeg (no more input), letting it flush and
// exit once stdout is drained.
func (p *StreamProcess) CloseWrite() error { return p.stdin.Close() }

// Stderr returns whatever ffmpeg has logged to stderr so far, for
// surfacing in a decode/encode error.
func (p *StreamProcess) Stderr() string {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()
	return p.stderrBuf.String()
}

// Close closes stdin (if not already) and waits for the process to exit.
func (p *StreamProcess) Close() error {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()
		_ = p.stdout.Close()
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}
