// internal/service/coaching.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/domain/session"
	"github.com/interviewcoach/backend/internal/store"
	"github.com/interviewcoach/backend/internal/worker"
)

const (
	defaultTipWorkers = 3
	tipQueueSize      = 32
)

// Transcriber turns recorded audio into text. *backend.Adapter implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, credential string, id backend.Identity) (string, error)
}

// StartRequest describes a new session. A non-empty Field builds a
// field-only plan; otherwise the plan is built from the documents.
type StartRequest struct {
	ResumeText     string
	JobDescription string

	Field           string
	ExperienceLevel string
	FocusAreas      []string
}

// Options tunes a CoachingService.
type Options struct {
	TipWorkers int
	// TipTimeout bounds each background tip call; zero leaves it unbounded.
	TipTimeout time.Duration
	Logger     *zap.Logger
}

type tipResult struct {
	SessionID  string
	QuestionID int
	Err        error
}

// CoachingService runs coaching sessions on top of the coach and persists
// them. Tips for a new session are generated in the background on a bounded
// worker pool so they are ready when the candidate reaches each question.
type CoachingService struct {
	store       store.Store
	coach       *coach.Coach
	transcriber Transcriber
	logger      *zap.Logger
	tipTimeout  time.Duration

	tips    *worker.Pool[tipResult]
	drained chan struct{}

	mu      sync.Mutex
	pending map[string]*sync.WaitGroup // sessionID → outstanding tip prefetches
	locks   map[string]*sync.Mutex     // sessionID → answer/report writer lock
}

// NewCoachingService creates a CoachingService. Call Close to stop the tip
// workers.
func NewCoachingService(s store.Store, c *coach.Coach, t Transcriber, opts Options) *CoachingService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.TipWorkers
	if workers <= 0 {
		workers = defaultTipWorkers
	}

	cs := &CoachingService{
		store:       s,
		coach:       c,
		transcriber: t,
		logger:      logger,
		tipTimeout:  opts.TipTimeout,
		tips:        worker.NewPool[tipResult](workers, tipQueueSize),
		drained:     make(chan struct{}),
		pending:     make(map[string]*sync.WaitGroup),
		locks:       make(map[string]*sync.Mutex),
	}
	go cs.drainTips()
	return cs
}

// Close waits for queued tip prefetches and stops the workers.
func (cs *CoachingService) Close() {
	cs.tips.Close()
	<-cs.drained
}

func (cs *CoachingService) drainTips() {
	defer close(cs.drained)
	for r := range cs.tips.Results() {
		if r.Output.Err != nil {
			cs.logger.Warn("tip prefetch failed",
				zap.String("session_id", r.Output.SessionID),
				zap.Int("question_id", r.Output.QuestionID),
				zap.Error(r.Output.Err),
			)
		}
	}
}

func (cs *CoachingService) sessionLock(sessionID string) *sync.Mutex {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	l, ok := cs.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		cs.locks[sessionID] = l
	}
	return l
}

// ============================================================================
// Sessions
// ============================================================================

// StartSession builds the plan, persists the session and queues tip
// prefetches for every question.
func (cs *CoachingService) StartSession(ctx context.Context, conn coach.Connection, req StartRequest) (*session.Session, error) {
	var (
		plan *coach.SessionPlan
		mode session.Mode
		err  error
	)
	if field := strings.TrimSpace(req.Field); field != "" {
		mode = session.ModeField
		plan, err = cs.coach.BuildFieldPlan(ctx, conn, field, req.ExperienceLevel, req.FocusAreas)
	} else {
		mode = session.ModeDocuments
		plan, err = cs.coach.BuildSessionPlan(ctx, conn, req.ResumeText, req.JobDescription)
	}
	if err != nil {
		return nil, err
	}

	sess := session.New(conn.Backend, conn.Model, mode, req.ResumeText, req.JobDescription, plan)
	if err := cs.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	cs.logger.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("backend", string(conn.Backend)),
		zap.String("model", conn.Model),
		zap.String("mode", string(mode)),
		zap.Int("questions", len(plan.Questions)),
	)

	cs.prefetchTips(conn, sess)
	return sess, nil
}

func (cs *CoachingService) prefetchTips(conn coach.Connection, sess *session.Session) {
	wg := &sync.WaitGroup{}
	wg.Add(len(sess.Plan.Questions))

	cs.mu.Lock()
	cs.pending[sess.ID] = wg
	cs.mu.Unlock()

	// Submitting can block on a full queue; the caller should not.
	go func() {
		for _, q := range sess.Plan.Questions {
			q := q
			err := cs.tips.Submit(sess.ID+":"+strconv.Itoa(q.ID), func() tipResult {
				defer wg.Done()
				return cs.generateTip(conn, sess, q)
			})
			if err != nil {
				wg.Done()
			}
		}
		wg.Wait()
		cs.mu.Lock()
		delete(cs.pending, sess.ID)
		cs.mu.Unlock()
	}()
}

// generateTip runs in a worker. It uses its own context because the request
// that started the session has usually finished by now.
func (cs *CoachingService) generateTip(conn coach.Connection, sess *session.Session, q coach.Question) tipResult {
	ctx := context.Background()
	if cs.tipTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cs.tipTimeout)
		defer cancel()
	}

	res := tipResult{SessionID: sess.ID, QuestionID: q.ID}
	tip, err := cs.coach.QuestionTip(ctx, conn, q.Question, q.Category, sess.ResumeText, sess.JobDescription)
	if err != nil {
		res.Err = err
		return res
	}
	res.Err = cs.store.SaveTip(ctx, sess.ID, q.ID, tip)
	return res
}

// WaitForTips blocks until the background tips of a session are done or ctx
// ends.
func (cs *CoachingService) WaitForTips(ctx context.Context, sessionID string) error {
	cs.mu.Lock()
	wg, ok := cs.pending[sessionID]
	cs.mu.Unlock()
	if !ok {
		return nil
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *CoachingService) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return cs.store.GetSession(ctx, id)
}

func (cs *CoachingService) ListSessions(ctx context.Context) ([]store.SessionSummary, error) {
	return cs.store.ListSessions(ctx)
}

func (cs *CoachingService) DeleteSession(ctx context.Context, id string) error {
	if err := cs.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	cs.mu.Lock()
	delete(cs.locks, id)
	cs.mu.Unlock()
	return nil
}

// ============================================================================
// Tips, answers, follow-ups, reports
// ============================================================================

// Tip returns the stored tip for a question, waiting briefly for a pending
// prefetch before generating one on demand.
func (cs *CoachingService) Tip(ctx context.Context, conn coach.Connection, sessionID string, questionID int) (string, error) {
	sess, err := cs.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	q, err := sess.Question(questionID)
	if err != nil {
		return "", err
	}

	if tip, err := cs.store.GetTip(ctx, sessionID, questionID); err == nil {
		return tip, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	if err := cs.WaitForTips(ctx, sessionID); err != nil {
		return "", err
	}
	if tip, err := cs.store.GetTip(ctx, sessionID, questionID); err == nil {
		return tip, nil
	}

	tip, err := cs.coach.QuestionTip(ctx, conn, q.Question, q.Category, sess.ResumeText, sess.JobDescription)
	if err != nil {
		return "", err
	}
	if err := cs.store.SaveTip(ctx, sessionID, questionID, tip); err != nil {
		cs.logger.Error("failed to save tip", zap.String("session_id", sessionID), zap.Int("question_id", questionID), zap.Error(err))
	}
	return tip, nil
}

// SubmitAnswer grades an answer and records it. Answering a question again
// replaces the earlier attempt.
func (cs *CoachingService) SubmitAnswer(ctx context.Context, conn coach.Connection, sessionID string, questionID int, answer string) (*coach.AnsweredQuestion, error) {
	lock := cs.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := cs.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	q, err := sess.ValidateAnswer(questionID, answer)
	if err != nil {
		return nil, err
	}

	grade, err := cs.coach.GradeAnswer(ctx, conn, coach.GradeInput{
		Question:       q.Question,
		Category:       q.Category,
		Answer:         answer,
		Resume:         sess.ResumeText,
		JobDescription: sess.JobDescription,
	})
	if err != nil {
		return nil, err
	}

	item, err := sess.Record(questionID, answer, *grade)
	if err != nil {
		return nil, err
	}
	if err := cs.store.SaveAnswer(ctx, sessionID, position(sess, questionID), item); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	cs.logger.Info("answer graded",
		zap.String("session_id", sessionID),
		zap.Int("question_id", questionID),
		zap.Int("score", grade.Score),
		zap.String("rubric", string(grade.RubricType)),
	)
	return &item, nil
}

func position(sess *session.Session, questionID int) int {
	for i, a := range sess.Answers {
		if a.QuestionID == questionID {
			return i
		}
	}
	return len(sess.Answers)
}

// Followup continues the coaching conversation within a session.
func (cs *CoachingService) Followup(ctx context.Context, conn coach.Connection, sessionID string, history []coach.Message) (string, error) {
	if len(history) == 0 {
		return "", errors.New("followup needs at least one message")
	}
	sess, err := cs.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return cs.coach.CoachFollowup(ctx, conn, history, sess.ResumeText, sess.JobDescription)
}

// Report builds and stores the session report from the answers so far.
func (cs *CoachingService) Report(ctx context.Context, conn coach.Connection, sessionID string) (*coach.SessionReport, error) {
	lock := cs.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := cs.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.ReadyForReport(); err != nil {
		return nil, err
	}

	report, err := cs.coach.BuildSessionReport(ctx, conn, sess.Answers, sess.ResumeText, sess.JobDescription)
	if err != nil {
		return nil, err
	}
	if err := cs.store.SaveReport(ctx, sessionID, report); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	cs.logger.Info("report built",
		zap.String("session_id", sessionID),
		zap.Int("answered", len(sess.Answers)),
		zap.Int("score", report.OverallScore),
	)
	return report, nil
}

// ============================================================================
// Session-less calls
// ============================================================================

func (cs *CoachingService) Chat(ctx context.Context, conn coach.Connection, messages []coach.Message, resume, jobDescription string) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("chat needs at least one message")
	}
	return cs.coach.FreeChat(ctx, conn, messages, resume, jobDescription)
}

func (cs *CoachingService) Transcribe(ctx context.Context, conn coach.Connection, audio []byte, filename string) (string, error) {
	return cs.transcriber.Transcribe(ctx, audio, filename, conn.Credential, conn.Backend)
}
