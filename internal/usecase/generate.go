package usecase

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"

	"handbook-chat/internal/domain"
)

const defaultMaxPrompt = 8000

// LLMStreamer produces a reply as an ordered sequence of text fragments. The
// sequence stops at the first error.
type LLMStreamer interface {
	Stream(ctx context.Context, req domain.GenerationRequest) iter.Seq2[string, error]
}

// Source tells whether a reply came from a canned rule or the upstream model.
type Source string

const (
	SourceCanned    Source = "canned"
	SourceGenerated Source = "generated"
)

type GenerateInput struct {
	Prompt string
}

type GenerateOutput struct {
	Source    Source
	Canned    CannedKind
	Fragments iter.Seq2[string, error]
}

type GenerateService struct {
	persona      *SystemPersona
	instruction  string
	llm          LLMStreamer
	maxPromptLen int
	logger       *slog.Logger
}

// NewGenerateService builds the generation use case. A nil llm means no
// upstream credential was configured; generated replies then fail with
// ErrorServiceUnavailable while canned replies keep working.
func NewGenerateService(persona *SystemPersona, llm LLMStreamer, maxPromptLen int, logger *slog.Logger) (*GenerateService, error) {
	if persona == nil {
		return nil, errors.New("usecase: persona must not be nil")
	}
	if err := persona.Validate(); err != nil {
		return nil, err
	}
	if maxPromptLen <= 0 {
		maxPromptLen = defaultMaxPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateService{
		persona:      persona,
		instruction:  persona.Instruction(),
		llm:          llm,
		maxPromptLen: maxPromptLen,
		logger:       logger,
	}, nil
}

// Available reports whether an upstream client was configured at startup.
func (s *GenerateService) Available() bool {
	return s.llm != nil
}

func (s *GenerateService) Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return GenerateOutput{}, newError(ErrorInvalidInput, "empty_prompt", nil)
	}

	// Canned replies never reach the upstream, so the length cap does not
	// apply to them.
	if reply, kind, ok := s.persona.Match(in.Prompt); ok {
		s.logger.DebugContext(ctx, "canned reply matched", "rule", string(kind))
		return GenerateOutput{
			Source:    SourceCanned,
			Canned:    kind,
			Fragments: single(reply),
		}, nil
	}

	if len(in.Prompt) > s.maxPromptLen {
		return GenerateOutput{}, newError(ErrorInvalidInput, "prompt_too_long", nil)
	}

	if s.llm == nil {
		return GenerateOutput{}, newError(ErrorServiceUnavailable, "upstream_not_configured", nil)
	}

	upstream := s.llm.Stream(ctx, domain.GenerationRequest{
		SystemInstruction: s.instruction,
		Prompt:            in.Prompt,
		Sampling:          domain.DefaultSampling,
	})
	return GenerateOutput{
		Source:    SourceGenerated,
		Fragments: wrapUpstream(upstream),
	}, nil
}

func single(text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield(text, nil)
	}
}

// wrapUpstream tags upstream failures and drops empty fragments.
func wrapUpstream(seq iter.Seq2[string, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for fragment, err := range seq {
			if err != nil {
				yield("", newError(ErrorUpstream, "upstream_stream_error", err))
				return
			}
			if fragment == "" {
				continue
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}
