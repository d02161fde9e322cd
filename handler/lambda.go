package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaStream serves a Function URL invocation in response-stream mode. The
// request runs through the same routes as the HTTP server and the body is
// piped to the runtime as it is written, so generated text streams the same way.
func (h *Handler) LambdaStream(ctx context.Context, ev events.LambdaFunctionURLRequest) (*events.LambdaFunctionURLStreamingResponse, error) {
	req, err := toHTTPRequest(ctx, ev)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := newPipeResponseWriter(pw)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				w.commit()
				_ = pw.CloseWithError(fmt.Errorf("handler: panic: %v", p))
				return
			}
			w.commit()
			_ = pw.Close()
		}()
		h.ServeHTTP(w, req)
	}()

	select {
	case <-w.ready:
	case <-ctx.Done():
		_ = pr.CloseWithError(ctx.Err())
		return nil, ctx.Err()
	}
	return &events.LambdaFunctionURLStreamingResponse{
		StatusCode: w.status,
		Headers:    w.headers,
		Cookies:    w.cookies,
		Body:       pr,
	}, nil
}

func toHTTPRequest(ctx context.Context, ev events.LambdaFunctionURLRequest) (*http.Request, error) {
	body := []byte(ev.Body)
	if ev.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return nil, fmt.Errorf("handler: decode base64 body: %w", err)
		}
		body = decoded
	}

	path := ev.RawPath
	if path == "" {
		path = ev.RequestContext.HTTP.Path
	}
	if path == "" {
		path = "/"
	}
	u := &url.URL{Scheme: "https", Host: ev.RequestContext.DomainName, Path: path, RawQuery: ev.RawQueryString}
	if u.Host == "" {
		u.Host = "lambda.local"
	}
	method := ev.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("handler: build request: %w", err)
	}
	for k, v := range ev.Headers {
		req.Header.Set(k, v)
	}
	if len(ev.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(ev.Cookies, "; "))
	}
	req.RemoteAddr = ev.RequestContext.HTTP.SourceIP
	req.RequestURI = u.RequestURI()
	return req, nil
}

// pipeResponseWriter adapts http.ResponseWriter to a pipe. ready closes once
// the status and headers are fixed; they must not be read before that.
type pipeResponseWriter struct {
	header http.Header
	pw     *io.PipeWriter

	once    sync.Once
	ready   chan struct{}
	status  int
	headers map[string]string
	cookies []string
}

func newPipeResponseWriter(pw *io.PipeWriter) *pipeResponseWriter {
	return &pipeResponseWriter{
		header: make(http.Header),
		pw:     pw,
		ready:  make(chan struct{}),
		status: http.StatusOK,
	}
}

func (w *pipeResponseWriter) Header() http.Header {
	return w.header
}

func (w *pipeResponseWriter) WriteHeader(code int) {
	w.once.Do(func() {
		w.status = code
		w.headers = make(map[string]string, len(w.header))
		for k, vs := range w.header {
			switch k {
			case "Transfer-Encoding", "Content-Length":
				continue
			case "Set-Cookie":
				w.cookies = append(w.cookies, vs...)
				continue
			}
			w.headers[k] = strings.Join(vs, ",")
		}
		close(w.ready)
	})
}

func (w *pipeResponseWriter) Write(b []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.pw.Write(b)
}

// Flush commits headers. Written bytes already sit in the unbuffered pipe.
func (w *pipeResponseWriter) Flush() {
	w.WriteHeader(http.StatusOK)
}

func (w *pipeResponseWriter) commit() {
	w.WriteHeader(http.StatusOK)
}
