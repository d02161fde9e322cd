package domain

// Sampling holds the generation parameters sent upstream.
type Sampling struct {
	Temperature float64
	TopP        float64
	TopK        int
}

// DefaultSampling is applied to every generated reply.
var DefaultSampling = Sampling{Temperature: 0.7, TopP: 0.9, TopK: 40}

// GenerationRequest is the provider-agnostic input of a streamed generation.
type GenerationRequest struct {
	SystemInstruction string
	Prompt            string
	Sampling          Sampling
}
