package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"healthcare-assistant/internal/domain"
)

const (
	defaultTierTimeout = 25 * time.Second
	anonymousUser      = "anonymous"
)

// Classifier derives the intent and urgency of a message.
type Classifier interface {
	Run(message string) domain.Classification
}

type RespondInput struct {
	Message      string
	UserID       string
	SessionID    string
	PriorContext string
}

// Reply is the orchestrator's outcome for one message.
type Reply struct {
	Result         domain.GenerationResult
	Classification domain.Classification
	SessionID      string
	UserID         string
}

// Orchestrator tries each tier in order and stops at the first success. The
// final tier is expected to always answer.
type Orchestrator struct {
	classifier  Classifier
	tiers       []Generator
	final       Generator
	tierTimeout time.Duration
	metrics     Recorder
	logger      *zap.Logger
	now         func() time.Time
}

type OrchestratorOption func(*Orchestrator)

func WithTierTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.tierTimeout = d
		}
	}
}

func WithRecorder(r Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if r != nil {
			o.metrics = r
		}
	}
}

func WithLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func withClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator builds an Orchestrator that tries tiers in order and answers
// from final when all of them fail.
func NewOrchestrator(c Classifier, tiers []Generator, final Generator, opts ...OrchestratorOption) (*Orchestrator, error) {
	if c == nil {
		return nil, errors.New("usecase: classifier must not be nil")
	}
	if final == nil {
		return nil, errors.New("usecase: final tier must not be nil")
	}
	for i, t := range tiers {
		if t == nil {
			return nil, fmt.Errorf("usecase: tier #%d must not be nil", i)
		}
	}
	o := &Orchestrator{
		classifier:  c,
		tiers:       append([]Generator(nil), tiers...),
		final:       final,
		tierTimeout: defaultTierTimeout,
		metrics:     nopRecorder{},
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Orchestrator) Respond(ctx context.Context, in RespondInput) (Reply, error) {
	// Anonymous turns keep an empty user id so they never share a history
	// listing.
	userID := strings.TrimSpace(in.UserID)
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = o.newSessionID(userID)
	}

	class := o.classifier.Run(in.Message)
	req := GenerationRequest{
		Message:        in.Message,
		Classification: class,
		Session: domain.SessionContext{
			SessionID:    sessionID,
			UserID:       userID,
			PriorContext: in.PriorContext,
		},
	}

	start := o.now()
	for _, tier := range o.tiers {
		result, err := o.attempt(ctx, tier, req)
		if err != nil {
			var genErr *GenerationError
			reason := "error"
			if errors.As(err, &genErr) {
				reason = genErr.Reason
			}
			o.metrics.TierFailed(tier.Tier(), reason)
			o.logger.Warn("tier failed, falling back",
				zap.String("tier", string(tier.Tier())),
				zap.String("reason", reason),
				zap.String("sessionId", sessionID),
				zap.Error(err))
			continue
		}
		if class.Urgency == domain.UrgencyHigh {
			result.Text = EmergencyRedirect + "\n\n" + result.Text
		}
		o.metrics.Responded(result.Tier, o.now().Sub(start))
		return Reply{Result: result, Classification: class, SessionID: sessionID, UserID: userID}, nil
	}

	result, err := o.final.Generate(ctx, req)
	if err != nil {
		return Reply{}, newError(ErrorInternal, "final_tier_failed", err)
	}
	result.Tier = o.final.Tier()
	o.metrics.Responded(result.Tier, o.now().Sub(start))
	return Reply{Result: result, Classification: class, SessionID: sessionID, UserID: userID}, nil
}

// attempt runs a single tier under its own deadline. Any error, including a
// timeout, a panic or an empty answer, is reported as a GenerationError.
func (o *Orchestrator) attempt(ctx context.Context, g Generator, req GenerationRequest) (result domain.GenerationResult, err error) {
	tierCtx, cancel := context.WithTimeout(ctx, o.tierTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			result = domain.GenerationResult{}
			err = generationError(g.Tier(), "panic", fmt.Errorf("recovered: %v", r))
		}
	}()

	result, err = g.Generate(tierCtx, req)
	if err != nil {
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			return domain.GenerationResult{}, err
		}
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		return domain.GenerationResult{}, generationError(g.Tier(), reason, err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return domain.GenerationResult{}, generationError(g.Tier(), "empty_result", nil)
	}
	result.Tier = g.Tier()
	if result.Citations == nil {
		result.Citations = []string{}
	}
	return result, nil
}

func (o *Orchestrator) newSessionID(userID string) string {
	if userID == "" {
		userID = anonymousUser
	}
	return fmt.Sprintf("session-%s-%d", userID, o.now().UnixNano())
}
