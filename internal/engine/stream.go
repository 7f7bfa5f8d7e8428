package engine

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// newStreamingClient returns an HTTP client without an overall timeout so
// long bodies can be read for the whole track; only the connection phases
// are bounded.
func newStreamingClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       5 * time.Minute,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// httpStream is a buffered reader over a response body. Closing it closes
// the body and cancels the request context.
type httpStream struct {
	*bufio.Reader
	resp   *http.Response
	cancel context.CancelFunc
}

func (s *httpStream) Close() error {
	err := s.resp.Body.Close()
	s.cancel()
	return err
}

// openHTTP starts a GET for url. ctx bounds the request until the response
// headers arrive; the body then lives until the stream is closed.
func openHTTP(ctx context.Context, client *http.Client, url, userAgent string, bufferSize int) (*httpStream, string, error) {
	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		stop()
		cancel()
		return nil, "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept-Encoding", "identity")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if !stop() {
		// ctx ended while waiting for headers
		if err == nil {
			resp.Body.Close()
		}
		cancel()
		return nil, "", errors.Wrap(ctx.Err(), "request")
	}
	if err != nil {
		cancel()
		return nil, "", errors.Wrap(err, "request")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		cancel()
		return nil, "", errors.Newf("http status %s", resp.Status)
	}

	return &httpStream{
		Reader: bufio.NewReaderSize(resp.Body, bufferSize),
		resp:   resp,
		cancel: cancel,
	}, resp.Header.Get("Content-Type"), nil
}
