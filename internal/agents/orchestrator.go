package agents

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/engine"
	"github.com/alanmaizon/slidebuddy/internal/intent"
	"github.com/alanmaizon/slidebuddy/internal/llm"
	"github.com/alanmaizon/slidebuddy/internal/metrics"
	"github.com/alanmaizon/slidebuddy/internal/middleware"
	"github.com/alanmaizon/slidebuddy/internal/session"
	"github.com/alanmaizon/slidebuddy/internal/slides"
	"github.com/alanmaizon/slidebuddy/internal/translate"
)

var tracer = otel.Tracer("slidebuddy-orchestrator")

type Options struct {
	Providers     *llm.Factory
	Translation   translate.GoogleConfig
	NewTranslator func(provider llm.Provider) translate.Translator
	Engine        *engine.Engine
	Registry      *Registry
}

// Orchestrator is the in-process entry point: utterance in, user-facing
// result out. It never returns errors; failures become messages.
type Orchestrator struct {
	providers     *llm.Factory
	newTranslator func(provider llm.Provider) translate.Translator
	engine        *engine.Engine
	registry      *Registry
}

func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		providers:     opts.Providers,
		newTranslator: opts.NewTranslator,
		engine:        opts.Engine,
		registry:      opts.Registry,
	}
	if o.providers == nil {
		o.providers = llm.NewFactory(llm.Config{Provider: "mock"})
	}
	if o.newTranslator == nil {
		cfg := opts.Translation
		o.newTranslator = func(provider llm.Provider) translate.Translator {
			return translate.NewChain(cfg, provider)
		}
	}
	if o.engine == nil {
		o.engine = engine.New(engine.Options{})
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	return o
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) Providers() *llm.Factory {
	return o.providers
}

// Provider returns the completion provider serving a session's credential.
func (o *Orchestrator) Provider(sess *session.Session) llm.Provider {
	return o.providers.For(sess.Credential)
}

// Translator returns the translation chain built over provider.
func (o *Orchestrator) Translator(provider llm.Provider) translate.Translator {
	return o.newTranslator(provider)
}

// RouteRequest extracts a directive from the utterance and dispatches it.
func (o *Orchestrator) RouteRequest(ctx context.Context, sess *session.Session, utterance string) domain.RouteResponse {
	ctx, span := tracer.Start(ctx, "orchestrator.route")
	defer span.End()

	if sess.Document == nil {
		return o.failure(ctx, sess, time.Now(), documentFailureMessage(slides.ErrNoDocument))
	}

	summary, err := sess.Document.Summary(ctx)
	if err != nil {
		log.Printf(
			"request_id=%s component=orchestrator session_id=%s event=summary_failed error=%q",
			middleware.RequestIDFromContext(ctx),
			sess.ID,
			err.Error(),
		)
		summary = domain.ContextSummary{}
	}

	directive := intent.New(o.Provider(sess)).Extract(ctx, utterance, summary)
	span.SetAttributes(attribute.String("route.operation", string(directive.Operation)))
	return o.Dispatch(ctx, sess, directive)
}

// Dispatch runs one directive: at most one snapshot and one mutation pass.
func (o *Orchestrator) Dispatch(ctx context.Context, sess *session.Session, d domain.Directive) domain.RouteResponse {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "orchestrator.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("dispatch.operation", string(d.Operation)),
		attribute.String("dispatch.scope", string(d.Scope)),
	)

	steps, err := Plan(d)
	if err != nil {
		d = domain.NewUnclear(domain.GenericHelp).WithSource(domain.SourceFallback)
		steps, _ = Plan(d)
	}

	var (
		snapshotID string
		scope      domain.ScopeDescriptor
		executed   execution
	)
	for _, step := range steps {
		switch step.Role {
		case domain.RoleSnapshot:
			if sess.Document == nil {
				return o.failure(ctx, sess, started, documentFailureMessage(slides.ErrNoDocument))
			}
			scope, err = slides.ResolveScope(ctx, sess.Document, d.Scope)
			if err == nil {
				snapshotID, err = sess.Undo.Snapshot(ctx, sess.Document, scope, d.Label())
			}
			if err != nil {
				metrics.RecordOperation(string(d.Operation), "document_error", 0, time.Since(started))
				return o.failure(ctx, sess, started, documentFailureMessage(err))
			}

		case domain.RoleExecutor:
			tool, ok := o.registry.Lookup(d.Operation)
			if !ok {
				sess.Undo.Discard(snapshotID)
				return o.clarify(ctx, sess, started, domain.NewUnclear(domain.GenericHelp))
			}
			provider := o.Provider(sess)
			kit := Toolkit{Provider: provider, Translator: o.newTranslator(provider)}

			executed, err = ExecuteStep(ctx, o.engine, tool, kit, sess.Document, d, scope)
			if err != nil {
				sess.Undo.Discard(snapshotID)
				o.persist(ctx, sess)
				if errors.Is(err, ErrMissingParams) {
					return o.clarify(ctx, sess, started, d)
				}
				metrics.RecordOperation(string(d.Operation), "document_error", 0, time.Since(started))
				return o.failure(ctx, sess, started, documentFailureMessage(err))
			}

		case domain.RoleReverter:
			return o.revert(ctx, sess, started, "")

		case domain.RoleResponder:
			if step.Action == "clarify" {
				return o.clarify(ctx, sess, started, d)
			}
		}
	}

	result := executed.result
	if result.TotalMutated == 0 {
		sess.Undo.Discard(snapshotID)
	}
	o.persist(ctx, sess)

	if d.Operation == domain.OpEnhance && result.TotalMutated == 0 && executed.configFailures > 0 {
		metrics.RecordOperation(string(d.Operation), "config_error", 0, time.Since(started))
		response := o.respond(ctx, sess, started, false, setupGuidance, false)
		response.Directive = &d
		response.Result = &result
		return response
	}

	status := "success"
	if result.Cancelled {
		status = "cancelled"
	} else if result.Failed() > 0 {
		status = "partial"
	}
	metrics.RecordOperation(string(d.Operation), status, result.TotalMutated, time.Since(started))

	response := o.respond(ctx, sess, started, true, resultMessage(d, result), result.TotalMutated > 0)
	response.Directive = &d
	response.Result = &result
	return response
}

// RevertLast undoes the newest change.
func (o *Orchestrator) RevertLast(ctx context.Context, sess *session.Session) domain.RevertResponse {
	return o.Revert(ctx, sess, "")
}

// Revert undoes back to snapshotID, or the newest change when it is empty.
func (o *Orchestrator) Revert(ctx context.Context, sess *session.Session, snapshotID string) domain.RevertResponse {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "orchestrator.revert")
	defer span.End()

	response := domain.RevertResponse{Metadata: o.metadata(ctx, sess, started)}
	if sess.Document == nil {
		response.Message = documentFailureMessage(slides.ErrNoDocument)
		metrics.RecordOperation(string(domain.OpUndo), "document_error", 0, time.Since(started))
		return response
	}

	result, err := sess.Undo.Revert(ctx, sess.Document, snapshotID)
	if err != nil {
		response.Message = revertFailureMessage(err)
		metrics.RecordOperation(string(domain.OpUndo), "failed", 0, time.Since(started))
		return response
	}
	o.persist(ctx, sess)

	status := "success"
	if result.Partial {
		status = "partial"
	}
	metrics.RecordOperation(string(domain.OpUndo), status, result.Restored, time.Since(started))
	log.Printf(
		"request_id=%s component=orchestrator session_id=%s event=revert snapshot_id=%s restored=%d skipped=%d steps=%d",
		middleware.RequestIDFromContext(ctx),
		sess.ID,
		result.SnapshotID,
		result.Restored,
		len(result.Skipped),
		result.StepsReverted,
	)

	response.Success = true
	response.Message = revertMessage(result)
	response.Result = &result
	response.Metadata = o.metadata(ctx, sess, started)
	return response
}

func (o *Orchestrator) revert(ctx context.Context, sess *session.Session, started time.Time, snapshotID string) domain.RouteResponse {
	reverted := o.Revert(ctx, sess, snapshotID)
	undo := domain.NewUndo()
	response := o.respond(ctx, sess, started, reverted.Success, reverted.Message, false)
	response.Directive = &undo
	return response
}

func (o *Orchestrator) clarify(ctx context.Context, sess *session.Session, started time.Time, d domain.Directive) domain.RouteResponse {
	question := d.ClarificationPrompt
	if question == "" {
		question = d.Validate()
	}
	if question == "" {
		question = domain.GenericHelp
	}
	metrics.RecordOperation(string(d.Operation), "clarification", 0, 0)

	response := o.respond(ctx, sess, started, true, question, false)
	response.Directive = &d
	return response
}

func (o *Orchestrator) failure(ctx context.Context, sess *session.Session, started time.Time, message string) domain.RouteResponse {
	return o.respond(ctx, sess, started, false, message, false)
}

func (o *Orchestrator) respond(ctx context.Context, sess *session.Session, started time.Time, success bool, message string, canUndo bool) domain.RouteResponse {
	return domain.RouteResponse{
		Success:  success,
		Message:  message,
		CanUndo:  canUndo,
		Metadata: o.metadata(ctx, sess, started),
	}
}

func (o *Orchestrator) metadata(ctx context.Context, sess *session.Session, started time.Time) domain.Metadata {
	return domain.Metadata{
		Provider:        o.Provider(sess).Name(),
		SessionID:       sess.ID,
		RequestID:       middleware.RequestIDFromContext(ctx),
		ExecutionTimeMs: time.Since(started).Milliseconds(),
	}
}

func (o *Orchestrator) persist(ctx context.Context, sess *session.Session) {
	if err := sess.Persist(ctx); err != nil {
		log.Printf(
			"request_id=%s component=orchestrator session_id=%s event=persist_failed error=%q",
			middleware.RequestIDFromContext(ctx),
			sess.ID,
			err.Error(),
		)
	}
}
