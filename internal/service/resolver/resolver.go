// Package resolver decides whether the model's answer is final or needs a
// search-backed rewrite.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/searchchat/internal/model/chat"
	"github.com/zhouzirui/searchchat/internal/service/ai"
	"github.com/zhouzirui/searchchat/internal/service/search"
	"github.com/zhouzirui/searchchat/pkg/log"
)

var (
	ErrEmptyQuestion       = errors.New("question is empty")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
)

// SystemInstruction is sent ahead of every conversation.
const SystemInstruction = "You are a helpful AI assistant. If you don't know the answer or response, say 'I don't know'."

const DefaultResultCount = 5

// SearchFailurePolicy controls what happens when the search call fails during fallback.
type SearchFailurePolicy string

const (
	// FailFast aborts the resolution; the transcript is not touched.
	FailFast SearchFailurePolicy = "fail"
	// SkipFallback keeps the primary model answer.
	SkipFallback SearchFailurePolicy = "skip"
)

// Options tunes a Resolver. Zero values fall back to defaults.
type Options struct {
	ResultCount    int
	LLMTimeout     time.Duration
	SearchTimeout  time.Duration
	OnSearchFailed SearchFailurePolicy
}

// Result is the outcome of one resolution.
type Result struct {
	Answer     string
	Transcript chat.Transcript
	UsedSearch bool
	Sources    []search.Result
}

// Resolver runs the answer-resolution protocol against a language model and a search provider.
type Resolver struct {
	llm      ai.LanguageModel
	searcher search.Provider
	opts     Options
}

// New wires a Resolver.
func New(llm ai.LanguageModel, searcher search.Provider, opts Options) *Resolver {
	if opts.ResultCount <= 0 {
		opts.ResultCount = DefaultResultCount
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 30 * time.Second
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 15 * time.Second
	}
	if opts.OnSearchFailed == "" {
		opts.OnSearchFailed = FailFast
	}
	return &Resolver{llm: llm, searcher: searcher, opts: opts}
}

// NeedsSearch is the fallback predicate: a case-insensitive substring match, so
// "I don't know how planes fly, but..." also triggers it.
func NeedsSearch(answer string) bool {
	lower := strings.ToLower(answer)
	return strings.Contains(lower, "i don't know") || strings.Contains(lower, "i'm a large language model")
}

// Resolve answers question given the prior transcript. On success the returned
// transcript is the input plus the user question and the final answer. On failure
// the input transcript is returned unchanged together with an error wrapping
// ErrUpstreamUnavailable.
func (r *Resolver) Resolve(ctx context.Context, question string, transcript chat.Transcript) (Result, error) {
	logger := log.Component(ctx, "resolver")

	if strings.TrimSpace(question) == "" {
		return Result{Transcript: transcript}, ErrEmptyQuestion
	}

	answer, err := r.complete(ctx, ai.Request{
		System:  SystemInstruction,
		History: transcript,
		Message: question,
	})
	if err != nil {
		logger.Error().Err(err).Msg("primary completion failed")
		return Result{Transcript: transcript}, fmt.Errorf("%w: language model: %v", ErrUpstreamUnavailable, err)
	}

	result := Result{Answer: answer}

	if NeedsSearch(answer) {
		logger.Info().Str("question", question).Msg("model signalled ignorance, falling back to web search")

		sources, err := r.search(ctx, question)
		switch {
		case err == nil:
			synthesized, err := r.complete(ctx, ai.Request{Message: SynthesisPrompt(question, CombineEvidence(sources))})
			if err != nil {
				logger.Error().Err(err).Msg("synthesis completion failed")
				return Result{Transcript: transcript}, fmt.Errorf("%w: language model: %v", ErrUpstreamUnavailable, err)
			}
			result.Answer = synthesized
			result.UsedSearch = true
			result.Sources = sources
			logger.Debug().Int("sources", len(sources)).Msg("answer synthesized from search results")
		case r.opts.OnSearchFailed == SkipFallback:
			logger.Warn().Err(err).Msg("search failed, keeping primary answer")
		default:
			logger.Error().Err(err).Msg("search failed")
			return Result{Transcript: transcript}, fmt.Errorf("%w: search: %v", ErrUpstreamUnavailable, err)
		}
	}

	result.Transcript = transcript.WithExchange(question, result.Answer)
	return result, nil
}

func (r *Resolver) complete(ctx context.Context, req ai.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.LLMTimeout)
	defer cancel()

	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", ai.ErrEmptyReply
	}
	return resp.Text(), nil
}

func (r *Resolver) search(ctx context.Context, question string) ([]search.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.SearchTimeout)
	defer cancel()

	return r.searcher.Search(ctx, question, r.opts.ResultCount)
}

// CombineEvidence joins each hit's text with newlines. Zero hits give "".
func CombineEvidence(results []search.Result) string {
	texts := make([]string, 0, len(results))
	for _, res := range results {
		texts = append(texts, res.Text())
	}
	return strings.Join(texts, "\n")
}

// SynthesisPrompt builds the second model request from the question and the evidence.
func SynthesisPrompt(question, evidence string) string {
	var b strings.Builder
	b.WriteString("User question: ")
	b.WriteString(question)
	b.WriteString("\n\nWeb search results:\n")
	b.WriteString(evidence)
	b.WriteString("\n\nProvide a concise, accurate answer based on these sources.")
	return b.String()
}

// Policy converts a config value into a SearchFailurePolicy.
func Policy(raw string) SearchFailurePolicy {
	if SearchFailurePolicy(strings.ToLower(strings.TrimSpace(raw))) == SkipFallback {
		return SkipFallback
	}
	return FailFast
}
