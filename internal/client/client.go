// Package client talks to the chat proxy over HTTP and exposes the streamed
// reply as a lazy sequence of text fragments.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	disabledMessage = "The AI chatbot is currently disabled. Please check the server configuration."
	unknownMessage  = "An unknown error occurred"
	readBufferSize  = 4096
)

// ResponseError is a non-OK answer from the proxy. Message is safe to show
// to a user.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	return e.Message
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New returns a Client for the proxy rooted at baseURL, e.g.
// "http://localhost:3001".
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("client: base url must not be empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	c := &Client{baseURL: baseURL, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c, nil
}

// Ask sends prompt and yields the reply as it arrives. The request is made
// when ranging starts; breaking out of the range or cancelling ctx closes the
// connection. A sequence can be consumed once.
func (c *Client) Ask(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		res, err := c.postJSON(ctx, "/api/generate", map[string]string{"prompt": prompt})
		if err != nil {
			yield("", err)
			return
		}
		defer func() { _ = res.Body.Close() }()

		if err := checkStatus(res); err != nil {
			yield("", err)
			return
		}

		var carry []byte
		buf := make([]byte, readBufferSize)
		for {
			n, rerr := res.Body.Read(buf)
			if n > 0 {
				data := append(carry, buf[:n]...)
				var text string
				text, carry = decodeUTF8(data)
				carry = bytes.Clone(carry)
				if text != "" && !yield(text, nil) {
					return
				}
			}
			if errors.Is(rerr, io.EOF) {
				if len(carry) > 0 {
					yield(strings.ToValidUTF8(string(carry), "�"), nil)
				}
				return
			}
			if rerr != nil {
				yield("", fmt.Errorf("client: read stream: %w", rerr))
				return
			}
		}
	}
}

// Subscribe activates userID and returns the reported state.
func (c *Client) Subscribe(ctx context.Context, userID string) (bool, error) {
	res, err := c.postJSON(ctx, "/api/subscribe", map[string]string{"userId": userID})
	if err != nil {
		return false, err
	}
	defer func() { _ = res.Body.Close() }()
	if err := checkStatus(res); err != nil {
		return false, err
	}
	var out struct {
		Success      bool `json:"success"`
		IsSubscribed bool `json:"isSubscribed"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("client: decode subscribe response: %w", err)
	}
	return out.Success && out.IsSubscribed, nil
}

// Status reports whether userID currently holds a subscription.
func (c *Client) Status(ctx context.Context, userID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/subscription-status/"+url.PathEscape(userID), nil)
	if err != nil {
		return false, fmt.Errorf("client: create request: %w", err)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("client: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if err := checkStatus(res); err != nil {
		return false, err
	}
	var out struct {
		IsSubscribed bool `json:"isSubscribed"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("client: decode status response: %w", err)
	}
	return out.IsSubscribed, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("client: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: request failed: %w", err)
	}
	return res, nil
}

// checkStatus maps a non-OK response to a ResponseError carrying the
// server's error text when it sent one.
func checkStatus(res *http.Response) error {
	if res.StatusCode == http.StatusOK && res.Body != nil && res.Body != http.NoBody {
		return nil
	}
	if res.StatusCode == http.StatusServiceUnavailable {
		return &ResponseError{StatusCode: res.StatusCode, Message: disabledMessage}
	}
	msg := unknownMessage
	if res.Body != nil {
		var payload struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err := json.Unmarshal(raw, &payload); err == nil {
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP error! status: %d", res.StatusCode)
	}
	return &ResponseError{StatusCode: res.StatusCode, Message: msg}
}

// decodeUTF8 returns the longest decodable prefix of data as text and the
// trailing bytes of an incomplete rune, which belong to the next read.
// Invalid sequences become U+FFFD.
func decodeUTF8(data []byte) (string, []byte) {
	cut := len(data)
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		if !utf8.RuneStart(data[len(data)-i]) {
			continue
		}
		if !utf8.FullRune(data[len(data)-i:]) {
			cut = len(data) - i
		}
		break
	}
	return strings.ToValidUTF8(string(data[:cut]), "�"), data[cut:]
}
