// Package engine drives the proposal workflow: conversational intake, the
// enrichment pipeline, the human approval gate, and finalization. All session
// mutation funnels through here, one operation per session at a time.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"northstar/pkg/approval"
	"northstar/pkg/enrich"
	"northstar/pkg/eventlog"
	"northstar/pkg/intake"
	"northstar/pkg/logx"
	"northstar/pkg/metrics"
	"northstar/pkg/proposal"
	"northstar/pkg/proto"
	"northstar/pkg/revision"
	"northstar/pkg/state"
)

// Options configures an Engine. Store and Services are required; everything
// else falls back to a sensible default.
type Options struct {
	Store     state.Store
	Services  enrich.Services
	Extractor intake.Extractor
	Gate      *approval.Gate
	Metrics   metrics.Recorder
	Events    *eventlog.Writer

	// Clock and NewSessionID exist for deterministic tests.
	Clock        func() time.Time
	NewSessionID func() string
}

// Engine is the single writer for proposal sessions.
type Engine struct {
	store     state.Store
	services  enrich.Services
	extractor intake.Extractor
	gate      *approval.Gate
	metrics   metrics.Recorder
	events    *eventlog.Writer
	logger    *logx.Logger
	clock     func() time.Time
	newID     func() string
}

// New creates an engine from options.
func New(opts Options) *Engine {
	e := &Engine{
		store:     opts.Store,
		services:  opts.Services,
		extractor: opts.Extractor,
		gate:      opts.Gate,
		metrics:   opts.Metrics,
		events:    opts.Events,
		logger:    logx.NewLogger("engine"),
		clock:     opts.Clock,
		newID:     opts.NewSessionID,
	}
	if e.extractor == nil {
		e.extractor = intake.NewPatternExtractor()
	}
	if e.gate == nil {
		e.gate = approval.NewGate()
	}
	if e.metrics == nil {
		e.metrics = metrics.NopRecorder{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// audit appends a session audit entry and mirrors it to the event log.
func (e *Engine) audit(st *proposal.State, format string, args ...any) {
	now := e.clock()
	st.AppendAudit(now, format, args...)
	st.UpdatedAt = now.UTC()

	if e.events != nil {
		entry := st.AuditLog[len(st.AuditLog)-1]
		// Strip the timestamp prefix; the event carries its own.
		if idx := strings.Index(entry, "] "); idx >= 0 {
			entry = entry[idx+2:]
		}
		if err := e.events.WriteEvent(&eventlog.Event{
			Timestamp: now.UTC(),
			SessionID: st.SessionID,
			Stage:     st.CurrentStep.String(),
			Message:   entry,
		}); err != nil {
			e.logger.Warn("event log write failed for %s: %v", st.SessionID, err)
		}
	}
}

// advance moves a session to the next stage, enforcing the canonical
// transition map.
func (e *Engine) advance(st *proposal.State, to proto.Stage) error {
	from := st.CurrentStep
	if !proto.IsValidStageTransition(from, to) {
		return proto.WrapError(proto.KindInvalidState,
			fmt.Sprintf("transition %s -> %s not allowed", from, to), proto.ErrInvalidTransition)
	}
	st.CurrentStep = to
	st.UpdatedAt = e.clock().UTC()
	e.metrics.RecordStageTransition(from.String(), to.String())
	return nil
}

// Create opens a new session from the user's initial request. The request is
// run through the extractor so an information-dense opener can skip questions;
// if every required field is already present the pipeline runs immediately.
// The returned snapshot reflects all progress made, even when err is an
// enrichment failure.
func (e *Engine) Create(ctx context.Context, userRequest string) (*proposal.State, error) {
	userRequest = strings.TrimSpace(userRequest)
	if userRequest == "" {
		return nil, proto.Validationf("initial message cannot be empty")
	}

	now := e.clock()
	st := proposal.New(e.newID(), userRequest, now)
	e.audit(st, "Collected intent from user request.")

	extraction := e.extractor.Extract(ctx, userRequest, st.MissingFields)
	e.mergeFields(st, extraction.Fields)

	if len(st.MissingFields) > 0 {
		e.planQuestions(st)
	}

	if err := e.store.Create(st); err != nil {
		return nil, err
	}
	e.metrics.RecordSessionCreated()
	e.logger.Info("session %s created, missing fields: %v", st.SessionID, st.MissingFields)

	if len(st.MissingFields) == 0 {
		return e.store.Update(st.SessionID, func(live *proposal.State) error {
			live.CurrentQuestion = ""
			live.PendingQuestions = nil
			return e.runPipeline(ctx, live)
		})
	}
	return e.store.Snapshot(st.SessionID)
}

// Continue applies one user turn to a session: an answer to the live question,
// an attachment, or both. Once intake completes it drives the enrichment
// pipeline to the approval gate; on a session halted by an earlier enrichment
// failure it retries from the failed stage.
func (e *Engine) Continue(ctx context.Context, sessionID, answer string, attachment *proposal.Attachment) (*proposal.State, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" && attachment == nil {
		return nil, proto.Validationf("answer cannot be empty")
	}

	return e.store.Update(sessionID, func(st *proposal.State) error {
		if st.CurrentStep.IsTerminal() {
			return proto.InvalidStatef("session %s is %s; no further input accepted", sessionID, st.CurrentStep)
		}
		if st.CurrentStep == proto.StageWaitForApproval {
			return proto.InvalidStatef("session %s is awaiting admin approval", sessionID)
		}

		if attachment != nil {
			if attachment.Reference == "" {
				return proto.Validationf("attachment reference cannot be empty")
			}
			st.Attachments = append(st.Attachments, *attachment)
			e.audit(st, "Attached image %s.", attachment.Reference)
		}

		if st.CurrentStep == proto.StageIntake && answer != "" {
			e.audit(st, "User provided info: %s", answer)
			extraction := e.extractor.Extract(ctx, answer, st.MissingFields)
			if extraction.Unparsed && len(extraction.Fields) == 0 {
				e.audit(st, "Could not parse the reply; re-asking.")
			}
			e.mergeFields(st, extraction.Fields)
		}

		if len(st.MissingFields) > 0 {
			e.planQuestions(st)
			st.UpdatedAt = e.clock().UTC()
			return nil
		}

		st.CurrentQuestion = ""
		st.PendingQuestions = nil
		return e.runPipeline(ctx, st)
	})
}

// Get returns the latest published snapshot of a session.
func (e *Engine) Get(sessionID string) (*proposal.State, error) {
	return e.store.Snapshot(sessionID)
}

// List returns the latest snapshot of every session in creation order.
func (e *Engine) List() []*proposal.State {
	return e.store.List()
}

// FinalizedDraft returns the final draft of a finalized session.
func (e *Engine) FinalizedDraft(sessionID string) (string, error) {
	snap, err := e.store.Snapshot(sessionID)
	if err != nil {
		return "", err
	}
	if snap.ApprovalStatus != proto.ApprovalFinalized {
		return "", proto.InvalidStatef("session %s is not finalized (status %s)", sessionID, snap.ApprovalStatus)
	}
	return snap.FinalDraft, nil
}

// PendingSummaries returns the admin view of every session awaiting a
// decision, in queue order.
func (e *Engine) PendingSummaries() []approval.Summary {
	ids, times := e.gate.Pending()
	summaries := make([]approval.Summary, 0, len(ids))
	for i, id := range ids {
		snap, err := e.store.Snapshot(id)
		if err != nil {
			e.logger.Warn("pending session %s missing from store: %v", id, err)
			continue
		}
		summaries = append(summaries, approval.BuildSummary(snap, times[i]))
	}
	return summaries
}

// Decide resolves the approval gate for a session. Comments are mandatory for
// both outcomes; the decision is terminal either way. Approval revises the
// draft with the admin's notes, records the revision diff, and finalizes.
func (e *Engine) Decide(_ context.Context, sessionID string, decision proto.Decision, comments string) (*proposal.State, error) {
	if err := proto.ValidateDecision(decision); err != nil {
		return nil, proto.Validationf("%v", err)
	}
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return nil, proto.Validationf("comments are required for an %s decision", decision)
	}

	snap, err := e.store.Update(sessionID, func(st *proposal.State) error {
		if st.CurrentStep != proto.StageWaitForApproval || st.ApprovalStatus != proto.ApprovalPending {
			return proto.InvalidStatef("session %s is not awaiting approval (stage %s, status %s)",
				sessionID, st.CurrentStep, st.ApprovalStatus)
		}
		if !e.gate.Resolve(sessionID) {
			return proto.InvalidStatef("session %s is not in the approval queue", sessionID)
		}

		st.ApprovalComments = comments
		e.audit(st, "Admin %s with comments: %s", strings.ToUpper(string(decision)), comments)

		if decision == proto.DecisionReject {
			st.ApprovalStatus = proto.ApprovalRejected
			if err := e.advance(st, proto.StageRejected); err != nil {
				return err
			}
			return nil
		}

		st.ApprovalStatus = proto.ApprovalApproved
		st.DraftV2 = reviseDraft(st.DraftV1, comments)
		st.RevisionDiff = revision.Diff(st.DraftV1, st.DraftV2)
		e.audit(st, "Revised draft based on feedback.")

		if err := e.advance(st, proto.StageFinalize); err != nil {
			return err
		}
		st.FinalDraft = st.DraftV2
		st.ApprovalStatus = proto.ApprovalFinalized
		finalized := e.clock().UTC()
		st.FinalizedTimestamp = &finalized
		e.audit(st, "Proposal Finalized.")
		return nil
	})
	if err != nil {
		return snap, err
	}

	e.metrics.RecordDecision(string(decision))
	e.logger.Info("session %s decided: %s", sessionID, decision)
	return snap, nil
}

// mergeFields folds extracted fields into the session, write-once per field,
// and rederives the missing list.
func (e *Engine) mergeFields(st *proposal.State, fields map[string]string) {
	for field, value := range fields {
		if value == "" {
			continue
		}
		if _, exists := st.CollectedFields[field]; exists {
			continue
		}
		st.CollectedFields[field] = value
	}
	st.RecomputeMissing()
	e.audit(st, "Checked missing info. Missing: %v", st.MissingFields)
}

// planQuestions sets the live question to the first missing field's question.
func (e *Engine) planQuestions(st *proposal.State) {
	st.PendingQuestions = intake.Questions(st.MissingFields)
	question := intake.NextQuestion(st.MissingFields)
	if question != st.CurrentQuestion {
		st.CurrentQuestion = question
		e.audit(st, "Paused to ask user for missing info.")
	}
}
