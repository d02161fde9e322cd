package handler

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"handbook-chat/internal/repository"
	"handbook-chat/internal/usecase"
)

func newLambdaHandler(t *testing.T, llm usecase.LLMStreamer) *Handler {
	t.Helper()
	gen, err := usecase.NewGenerateService(usecase.DefaultPersona(), llm, 0, nil)
	require.NoError(t, err)
	subs, err := usecase.NewSubscriptionService(repository.NewSubscriptionStore(nil), nil)
	require.NoError(t, err)
	h, err := NewHandler(gen, subs, Options{})
	require.NoError(t, err)
	return h
}

func makeEvent(method, path, body string) events.LambdaFunctionURLRequest {
	return events.LambdaFunctionURLRequest{
		RawPath: path,
		Headers: map[string]string{"content-type": "application/json"},
		Body:    body,
		RequestContext: events.LambdaFunctionURLRequestContext{
			DomainName: "abc.lambda-url.eu-west-1.on.aws",
			HTTP: events.LambdaFunctionURLRequestContextHTTPDescription{
				Method:   method,
				Path:     path,
				SourceIP: "203.0.113.7",
			},
		},
	}
}

func TestLambdaStream_StreamsGeneratedText(t *testing.T) {
	h := newLambdaHandler(t, &scriptedStreamer{fragments: []string{"**RSI** ", "measures momentum."}})

	resp, err := h.LambdaStream(context.Background(), makeEvent(http.MethodPost, "/api/generate", `{"prompt":"Explain RSI."}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain; charset=utf-8", resp.Headers["Content-Type"])
	require.NotContains(t, resp.Headers, "Transfer-Encoding")
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "**RSI** measures momentum.", string(body))
}

func TestLambdaStream_Base64Body(t *testing.T) {
	h := newLambdaHandler(t, nil)
	ev := makeEvent(http.MethodPost, "/api/subscribe", base64.StdEncoding.EncodeToString([]byte(`{"userId":"u1"}`)))
	ev.IsBase64Encoded = true

	resp, err := h.LambdaStream(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Headers["Content-Type"])

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"isSubscribed":true}`, string(body))
}

func TestLambdaStream_BadBase64(t *testing.T) {
	h := newLambdaHandler(t, nil)
	ev := makeEvent(http.MethodPost, "/api/subscribe", "%%%")
	ev.IsBase64Encoded = true

	_, err := h.LambdaStream(context.Background(), ev)
	require.Error(t, err)
	require.Contains(t, err.Error(), "base64")
}

func TestLambdaStream_ErrorStatusAndPreflight(t *testing.T) {
	h := newLambdaHandler(t, nil)

	resp, err := h.LambdaStream(context.Background(), makeEvent(http.MethodPost, "/api/generate", `{"prompt":"What is DeFi?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_, _ = io.Copy(io.Discard, resp.Body)

	preflight := makeEvent(http.MethodOptions, "/api/generate", "")
	preflight.Headers["origin"] = "http://localhost:5173"
	preflight.Headers["access-control-request-method"] = http.MethodPost
	resp, err = h.LambdaStream(context.Background(), preflight)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Empty(t, body)
}

func TestLambdaStream_QueryAndStatusPath(t *testing.T) {
	h := newLambdaHandler(t, nil)
	ev := makeEvent(http.MethodGet, "/api/subscription-status/u9", "")
	ev.RawQueryString = "cache=no"

	resp, err := h.LambdaStream(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"isSubscribed":false}`, string(body))
}
