package drip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-engine/internal/config"
	"github.com/ignite/outreach-engine/internal/content"
	"github.com/ignite/outreach-engine/internal/pkg/distlock"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
	"github.com/ignite/outreach-engine/internal/schedule"
	"github.com/ignite/outreach-engine/internal/store"
	"github.com/ignite/outreach-engine/internal/tracking"
	"github.com/ignite/outreach-engine/internal/transport"
)

// ContentProducer yields a screened draft for an enrollment step.
type ContentProducer interface {
	Produce(ctx context.Context, from, to string, req content.GenerateRequest) (content.Draft, content.Verdict, error)
}

// Engine is the batch scheduler. One pass selects due enrollments up to
// the remaining daily quota, re-validates each immediately before
// dispatch, and commits every advance atomically with its send.
type Engine struct {
	store    *store.Store
	producer ContentProducer
	sender   transport.Sender
	embedder *tracking.Embedder
	lock     distlock.DistLock
	cfg      config.DripConfig
	pacer    Pacer

	running bool
	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Stats
	batchesRun  int64
	totalSent   int64
	totalFailed int64

	// Overridable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewEngine creates the drip engine.
func NewEngine(st *store.Store, producer ContentProducer, sender transport.Sender,
	embedder *tracking.Embedder, lock distlock.DistLock, cfg config.DripConfig) *Engine {
	return &Engine{
		store:    st,
		producer: producer,
		sender:   sender,
		embedder: embedder,
		lock:     lock,
		cfg:      cfg,
		pacer: Pacer{
			Base:   time.Duration(cfg.PaceBaseSeconds) * time.Second,
			Step:   time.Duration(cfg.PaceStepSeconds) * time.Second,
			Jitter: time.Duration(cfg.PaceJitterSeconds) * time.Second,
		},
		stopCh: make(chan struct{}),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Start starts the scheduler loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("drip engine already running")
	}
	e.running = true
	e.mu.Unlock()

	logger.Info("starting drip engine", "tick_interval", e.cfg.TickInterval().String())

	e.wg.Add(1)
	go e.run(ctx)
	return nil
}

// Stop stops the scheduler loop and waits for an in-flight batch.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	logger.Info("stopping drip engine")
	close(e.stopCh)
	e.wg.Wait()

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TickInterval())
	defer ticker.Stop()

	e.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.runOnce(ctx)
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) {
	result, err := e.RunBatch(ctx)
	if err != nil {
		logger.Error("batch failed", "error", err.Error())
		return
	}
	if !result.Ran {
		logger.Debug("batch skipped", "reason", result.Reason)
		return
	}
	logger.Info("batch complete",
		"sent", result.Sent, "skipped", result.Skipped, "failed", result.Failed)
}

// Stats returns lifetime engine counters.
func (e *Engine) Stats() (batches, sent, failed int64) {
	return atomic.LoadInt64(&e.batchesRun), atomic.LoadInt64(&e.totalSent), atomic.LoadInt64(&e.totalFailed)
}

// RunBatch executes one scheduler pass. The distributed lock keeps
// concurrent workers from double-sending; a pass that cannot take the
// lock reports itself skipped rather than failing.
func (e *Engine) RunBatch(ctx context.Context) (*BatchResult, error) {
	if !e.cfg.Enabled {
		return &BatchResult{Reason: "drip disabled"}, nil
	}

	acquired, err := e.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire batch lock: %w", err)
	}
	if !acquired {
		return &BatchResult{Reason: "another worker holds the batch lease"}, nil
	}
	defer func() {
		if err := e.lock.Release(context.Background()); err != nil {
			logger.Warn("release batch lock", "error", err.Error())
		}
	}()

	batchStart := e.now()

	sentToday, err := e.store.EmailsSentToday(ctx, batchStart)
	if err != nil {
		return nil, fmt.Errorf("read daily quota: %w", err)
	}
	remaining := e.cfg.DailyLimit - sentToday
	if remaining <= 0 {
		return &BatchResult{Reason: "daily quota exhausted"}, nil
	}

	limit := remaining
	if e.cfg.BatchCap > 0 && limit > e.cfg.BatchCap {
		limit = e.cfg.BatchCap
	}

	due, err := e.store.ListDueEnrollments(ctx, batchStart, limit)
	if err != nil {
		return nil, fmt.Errorf("select due enrollments: %w", err)
	}

	result := &BatchResult{Ran: true}
	atomic.AddInt64(&e.batchesRun, 1)

	for i, enrollment := range due {
		if i > 0 {
			e.sleep(e.pacer.Delay(i))
		}
		item := e.processOne(ctx, enrollment, batchStart)
		result.add(item)
		switch item.Outcome {
		case OutcomeSent:
			atomic.AddInt64(&e.totalSent, 1)
		case OutcomeFailed:
			atomic.AddInt64(&e.totalFailed, 1)
		}
	}
	return result, nil
}

// processOne re-validates and dispatches a single enrollment. Every
// check runs again here even though selection already filtered, because
// state can change between selection and dispatch while earlier items
// pace out.
func (e *Engine) processOne(ctx context.Context, enrollment *store.Enrollment, batchStart time.Time) ItemResult {
	step, err := e.store.GetStep(ctx, enrollment.SequenceID, enrollment.CurrentStep)
	if err != nil {
		return failed(enrollment.ID, fmt.Errorf("load step: %w", err))
	}
	if step == nil || !step.IsActive {
		return skipped(enrollment.ID, SkipStepInactive)
	}

	lead, err := e.store.GetLead(ctx, enrollment.LeadID)
	if err != nil {
		return failed(enrollment.ID, fmt.Errorf("load lead: %w", err))
	}
	if lead == nil || lead.Status != "active" {
		// Skip without touching the enrollment so a re-activated lead
		// resumes where it left off.
		return skipped(enrollment.ID, SkipLeadInactive)
	}

	replied, err := e.store.HasReply(ctx, enrollment.LeadID, enrollment.SequenceID)
	if err != nil {
		return failed(enrollment.ID, fmt.Errorf("check replies: %w", err))
	}
	if replied {
		if err := e.store.StopEnrollment(ctx, enrollment.ID, store.EnrollmentReplied, SkipReplied); err != nil {
			return failed(enrollment.ID, fmt.Errorf("stop enrollment: %w", err))
		}
		logger.Info("enrollment stopped on reply", "enrollment_id", enrollment.ID.String())
		return skipped(enrollment.ID, SkipReplied)
	}

	profile, err := e.profileFor(ctx, enrollment.SequenceID)
	if err != nil {
		return failed(enrollment.ID, err)
	}

	// The window is judged at batch start so a batch that opened inside
	// the window finishes even when pacing carries it past the close.
	if profile != nil {
		window := schedule.Window{
			Enabled:  profile.ScheduleEnabled,
			Days:     profile.SendDays,
			From:     profile.WindowFrom,
			To:       profile.WindowTo,
			Timezone: profile.Timezone,
		}
		if ok, reason := window.Allows(batchStart); !ok {
			logger.Debug("send blocked by window", "enrollment_id", enrollment.ID.String(), "reason", reason)
			return skipped(enrollment.ID, SkipOutsideWindow)
		}
	}

	prior, err := e.store.PriorMessages(ctx, enrollment.ID)
	if err != nil {
		return failed(enrollment.ID, fmt.Errorf("load prior messages: %w", err))
	}

	fromEmail := ""
	fromName := ""
	if profile != nil {
		fromEmail = profile.SenderEmail
		fromName = profile.SenderName
	}

	draft, verdict, err := e.producer.Produce(ctx, fromEmail, lead.Email, content.GenerateRequest{
		Lead:    lead,
		Profile: profile,
		Step:    step,
		Prior:   prior,
	})
	if err != nil {
		if errors.Is(err, content.ErrScreenedOut) {
			logger.Info("draft screened out, will retry next batch",
				"enrollment_id", enrollment.ID.String(), "score", verdict.Score)
			return skipped(enrollment.ID, SkipScreenedOut)
		}
		return failed(enrollment.ID, fmt.Errorf("produce content: %w", err))
	}

	trackingID := tracking.NewTrackingID()
	msg := &store.Message{
		EnrollmentID: enrollment.ID,
		StepID:       step.ID,
		TrackingID:   trackingID,
		Subject:      draft.Subject,
		Content:      draft.Body,
		ScreenScore:  verdict.Score,
	}
	if err := e.store.CreateMessage(ctx, msg); err != nil {
		return failed(enrollment.ID, fmt.Errorf("create message: %w", err))
	}

	html := e.embedder.WrapHTML(draft.Body, trackingID, lead.ID.String())
	sendErr := e.sender.Send(ctx, &transport.Email{
		FromName:     fromName,
		FromEmail:    fromEmail,
		To:           lead.Email,
		Subject:      draft.Subject,
		TextBody:     draft.Body,
		HTMLBody:     html,
		TrackingID:   trackingID,
		EnrollmentID: enrollment.ID.String(),
	})
	if sendErr != nil {
		if err := e.store.MarkMessageFailed(ctx, msg.ID, sendErr.Error()); err != nil {
			logger.Error("mark message failed", "message_id", msg.ID.String(), "error", err.Error())
		}
		return failed(enrollment.ID, fmt.Errorf("send: %w", sendErr))
	}

	sentAt := e.now()
	commit := store.DispatchCommit{
		MessageID:    msg.ID,
		EnrollmentID: enrollment.ID,
		SentAt:       sentAt,
	}

	nextStep, err := e.store.GetStep(ctx, enrollment.SequenceID, enrollment.CurrentStep+1)
	if err != nil {
		return failed(enrollment.ID, fmt.Errorf("load next step: %w", err))
	}
	commit.NextStep = enrollment.CurrentStep + 1
	if nextStep == nil {
		commit.Completed = true
	} else {
		commit.NextSendAt = sentAt.Add(nextStep.Delay())
	}

	if err := e.store.CommitDispatch(ctx, commit); err != nil {
		return failed(enrollment.ID, fmt.Errorf("commit dispatch: %w", err))
	}

	logger.Info("step dispatched",
		"enrollment_id", enrollment.ID.String(),
		"step", enrollment.CurrentStep,
		"to", logger.RedactEmail(lead.Email),
		"completed", commit.Completed)
	return sent(enrollment.ID)
}

func (e *Engine) profileFor(ctx context.Context, sequenceID uuid.UUID) (*store.SendingProfile, error) {
	seq, err := e.store.GetSequence(ctx, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("load sequence: %w", err)
	}
	if seq == nil {
		return nil, fmt.Errorf("sequence %s not found", sequenceID)
	}
	if seq.SendingProfileID.Valid {
		return e.store.GetSendingProfile(ctx, seq.SendingProfileID.UUID)
	}
	return e.store.GetDefaultSendingProfile(ctx)
}
