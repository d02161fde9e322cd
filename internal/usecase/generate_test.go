package usecase

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"handbook-chat/internal/domain"
)

type spyStreamer struct {
	fragments []string
	err       error
	callCount int
	lastReq   domain.GenerationRequest
}

func (s *spyStreamer) Stream(_ context.Context, req domain.GenerationRequest) iter.Seq2[string, error] {
	s.callCount++
	s.lastReq = req
	return func(yield func(string, error) bool) {
		for _, f := range s.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

func newTestGenerate(t *testing.T, llm LLMStreamer) *GenerateService {
	t.Helper()
	svc, err := NewGenerateService(DefaultPersona(), llm, 100, nil)
	require.NoError(t, err)
	return svc
}

func collect(t *testing.T, seq iter.Seq2[string, error]) ([]string, error) {
	t.Helper()
	var out []string
	for f, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
	return out, nil
}

func expectGenerateError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func TestNewGenerateService_Validates(t *testing.T) {
	_, err := NewGenerateService(nil, &spyStreamer{}, 0, nil)
	require.Error(t, err)

	bad := DefaultPersona()
	bad.Bullet = ""
	_, err = NewGenerateService(bad, &spyStreamer{}, 0, nil)
	require.Error(t, err)

	svc, err := NewGenerateService(DefaultPersona(), nil, 0, nil)
	require.NoError(t, err)
	require.False(t, svc.Available())
	require.Equal(t, defaultMaxPrompt, svc.maxPromptLen)
}

func TestGenerate_InvalidPromptNeverCallsUpstream(t *testing.T) {
	cases := []struct {
		name   string
		prompt string
		reason string
	}{
		{name: "empty", prompt: "", reason: "empty_prompt"},
		{name: "whitespace", prompt: " \n\t ", reason: "empty_prompt"},
		{name: "too long", prompt: strings.Repeat("a", 101), reason: "prompt_too_long"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spy := &spyStreamer{}
			svc := newTestGenerate(t, spy)

			_, err := svc.Generate(context.Background(), GenerateInput{Prompt: tc.prompt})
			expectGenerateError(t, err, ErrorInvalidInput, tc.reason)
			require.Equal(t, 0, spy.callCount)
		})
	}
}

func TestGenerate_InvalidPromptBeforeUnavailable(t *testing.T) {
	svc := newTestGenerate(t, nil)
	_, err := svc.Generate(context.Background(), GenerateInput{Prompt: ""})
	expectGenerateError(t, err, ErrorInvalidInput, "empty_prompt")
}

func TestGenerate_CannedIsByteIdenticalAndSkipsUpstream(t *testing.T) {
	broken := &spyStreamer{err: errors.New("upstream down")}
	svc := newTestGenerate(t, broken)

	for _, prompt := range []string{"chaintrader_ai", "What is CHAINTRADER_AI?", "ChainTrader_AI vs manual trading"} {
		out, err := svc.Generate(context.Background(), GenerateInput{Prompt: prompt})
		require.NoError(t, err)
		require.Equal(t, SourceCanned, out.Source)
		require.Equal(t, CannedPromotion, out.Canned)

		got, err := collect(t, out.Fragments)
		require.NoError(t, err)
		require.Equal(t, []string{promotionReply}, got)
	}
	require.Equal(t, 0, broken.callCount)
}

func TestGenerate_CannedOverridesLengthCap(t *testing.T) {
	spy := &spyStreamer{}
	svc := newTestGenerate(t, spy)

	prompt := strings.Repeat("a", 9000-len("chaintrader_ai")) + "chaintrader_ai"
	require.Len(t, prompt, 9000)
	out, err := svc.Generate(context.Background(), GenerateInput{Prompt: prompt})
	require.NoError(t, err)
	require.Equal(t, SourceCanned, out.Source)
	got, err := collect(t, out.Fragments)
	require.NoError(t, err)
	require.Equal(t, []string{promotionReply}, got)
	require.Equal(t, 0, spy.callCount)

	_, err = svc.Generate(context.Background(), GenerateInput{Prompt: strings.Repeat("a", 9000)})
	expectGenerateError(t, err, ErrorInvalidInput, "prompt_too_long")
}

func TestGenerate_CannedWorksWithoutUpstream(t *testing.T) {
	svc := newTestGenerate(t, nil)
	out, err := svc.Generate(context.Background(), GenerateInput{Prompt: "ChainTrader_AI"})
	require.NoError(t, err)
	got, err := collect(t, out.Fragments)
	require.NoError(t, err)
	require.Equal(t, []string{promotionReply}, got)
}

func TestGenerate_UnavailableWithoutUpstream(t *testing.T) {
	svc := newTestGenerate(t, nil)
	_, err := svc.Generate(context.Background(), GenerateInput{Prompt: "What is RSI?"})
	expectGenerateError(t, err, ErrorServiceUnavailable, "upstream_not_configured")
}

func TestGenerate_ForwardsRawPromptWithPersona(t *testing.T) {
	spy := &spyStreamer{fragments: []string{"**RSI** ", "", "measures momentum."}}
	svc := newTestGenerate(t, spy)

	out, err := svc.Generate(context.Background(), GenerateInput{Prompt: "  Explain RSI. "})
	require.NoError(t, err)
	require.Equal(t, SourceGenerated, out.Source)

	got, err := collect(t, out.Fragments)
	require.NoError(t, err)
	require.Equal(t, []string{"**RSI** ", "measures momentum."}, got)

	require.Equal(t, 1, spy.callCount)
	require.Equal(t, "  Explain RSI. ", spy.lastReq.Prompt)
	require.Equal(t, DefaultPersona().Instruction(), spy.lastReq.SystemInstruction)
	require.Equal(t, domain.Sampling{Temperature: 0.7, TopP: 0.9, TopK: 40}, spy.lastReq.Sampling)
}

func TestGenerate_AttributionPrecheck(t *testing.T) {
	persona := DefaultPersona()
	persona.Attribution.Precheck = true
	spy := &spyStreamer{fragments: []string{"model answer"}}
	svc, err := NewGenerateService(persona, spy, 0, nil)
	require.NoError(t, err)

	out, err := svc.Generate(context.Background(), GenerateInput{Prompt: "Who created this project?"})
	require.NoError(t, err)
	require.Equal(t, CannedAttribution, out.Canned)
	got, err := collect(t, out.Fragments)
	require.NoError(t, err)
	require.Equal(t, []string{persona.Attribution.Reply}, got)
	require.Equal(t, 0, spy.callCount)
}

func TestGenerate_MidStreamFailureKeepsPartial(t *testing.T) {
	spy := &spyStreamer{fragments: []string{"Bitcoin is ", "a "}, err: errors.New("connection reset")}
	svc := newTestGenerate(t, spy)

	out, err := svc.Generate(context.Background(), GenerateInput{Prompt: "What is bitcoin?"})
	require.NoError(t, err)

	got, err := collect(t, out.Fragments)
	require.Equal(t, []string{"Bitcoin is ", "a "}, got)
	expectGenerateError(t, err, ErrorUpstream, "upstream_stream_error")
	require.ErrorContains(t, err, "connection reset")
}

func TestGenerate_ConsumerCanStopEarly(t *testing.T) {
	spy := &spyStreamer{fragments: []string{"one", "two", "three"}}
	svc := newTestGenerate(t, spy)

	out, err := svc.Generate(context.Background(), GenerateInput{Prompt: "count"})
	require.NoError(t, err)

	var got []string
	for f, err := range out.Fragments {
		require.NoError(t, err)
		got = append(got, f)
		if len(got) == 2 {
			break
		}
	}
	require.Equal(t, []string{"one", "two"}, got)
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, ErrorUpstream, CodeOf(newError(ErrorUpstream, "x", nil)))
	require.Equal(t, ErrorInternal, CodeOf(errors.New("plain")))
	require.Equal(t, "x", ReasonOf(newError(ErrorUpstream, "x", nil)))
	require.Equal(t, "unexpected", ReasonOf(errors.New("plain")))
}
