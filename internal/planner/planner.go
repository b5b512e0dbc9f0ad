package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"pdfedit/internal/apperr"
	"pdfedit/internal/config"
	"pdfedit/internal/domain"
	"pdfedit/internal/textextract"
)

type PlanRequest struct {
	Instruction string
	PageCount   int
	Pages       []textextract.PageText
}

// Plan is a validated action list together with where it came from.
type Plan struct {
	Actions []domain.Action `json:"actions"`
	Model   string          `json:"model"`
	Cached  bool            `json:"cached"`
}

func (p *Plan) List() domain.ActionList {
	return domain.ActionList{Actions: p.Actions}
}

type Planner struct {
	client      *openai.Client
	model       string
	maxTokens   int64
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	cache       Cache
	logger      *logrus.Logger
}

// New builds a planner for an OpenAI-compatible endpoint. cache may be nil.
func New(cfg config.LLMConfig, cache Cache, logger *logrus.Logger) (*Planner, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("LLM API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = config.DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Planner{
		client:      &client,
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		limiter:     rate.NewLimiter(limit, 1),
		cache:       cache,
		logger:      logger,
	}, nil
}

func (p *Planner) Model() string {
	return p.model
}

func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*Plan, error) {
	req.Instruction = strings.TrimSpace(req.Instruction)
	if req.Instruction == "" {
		return nil, apperr.NewValidationError("instruction is required")
	}

	key := p.cacheKey(req)
	if cached := p.lookup(ctx, key); cached != nil {
		return &Plan{Actions: cached.Actions, Model: p.model, Cached: true}, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperr.NewNetworkError("rate limiter wait cancelled", err)
	}

	content, err := p.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	list, err := parseActions(content)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"model":  p.model,
			"output": truncate(content, 200),
		}).WithError(err).Warn("Model returned unparseable plan")
		return nil, apperr.NewProcessingError("invalid JSON response from model", err)
	}
	if err := list.Validate(); err != nil {
		return nil, apperr.NewProcessingError("model returned an invalid action list", err)
	}

	p.store(ctx, key, list)

	p.logger.WithFields(logrus.Fields{
		"model":   p.model,
		"actions": len(list.Actions),
	}).Debug("Instruction planned")

	return &Plan{Actions: list.Actions, Model: p.model}, nil
}

func (p *Planner) complete(ctx context.Context, req PlanRequest) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage(req)),
		},
		Temperature: openai.Float(p.temperature),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(p.maxTokens)
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", apperr.NewNetworkError("LLM request timed out", err)
		}
		return "", apperr.NewUpstreamError("LLM request failed", err)
	}
	if len(response.Choices) == 0 {
		return "", apperr.NewUpstreamError("LLM returned no choices", nil)
	}

	return response.Choices[0].Message.Content, nil
}

func (p *Planner) lookup(ctx context.Context, key string) *domain.ActionList {
	if p.cache == nil {
		return nil
	}
	list, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.WithError(err).Warn("Plan cache read failed")
		return nil
	}
	if !ok || list.Validate() != nil {
		return nil
	}
	return list
}

func (p *Planner) store(ctx context.Context, key string, list domain.ActionList) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, key, list); err != nil {
		p.logger.WithError(err).Warn("Plan cache write failed")
	}
}

func (p *Planner) cacheKey(req PlanRequest) string {
	digest := sha256.Sum256([]byte(documentContext(req.Pages)))

	h := sha256.New()
	for _, part := range []string{
		p.model,
		req.Instruction,
		strconv.Itoa(req.PageCount),
		hex.EncodeToString(digest[:]),
	} {
		fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
