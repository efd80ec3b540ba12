package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/domain/session"
	"github.com/interviewcoach/backend/internal/retry"
	"github.com/interviewcoach/backend/internal/service"
	"github.com/interviewcoach/backend/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// routingInvoker answers each coaching task with a canned reply picked from
// the prompt's output schema.
type routingInvoker struct {
	mu     sync.Mutex
	counts map[string]int
	tipErr error
}

func (r *routingInvoker) Invoke(_ context.Context, req backend.Request) (string, error) {
	task := taskOf(req.Prompt)
	r.mu.Lock()
	r.counts[task]++
	tipErr := r.tipErr
	r.mu.Unlock()

	switch task {
	case "report":
		return `{"overall_score":78,"overall_grade":"C","tier":"Almost There","headline":"Solid start",
			"top_strengths":["clarity"],"priority_improvements":[{"area":"Impact","issue":"vague","fix":"numbers"}],
			"category_scores":{},"action_plan":["practice"],"personal_note":"Keep going"}`, nil
	case "plan":
		var qs []string
		for i, c := range []string{"Opener", "Behavioral", "Technical", "Closing"} {
			qs = append(qs, fmt.Sprintf(`{"id":%d,"category":%q,"question":"Q%d?","what_great_looks_like":"x","difficulty":"Medium"}`, i+1, c, i+1))
		}
		return `{"candidate_name":"Ada","target_role":"SRE","key_strengths":[],"key_gaps":[],"opening_message":"Hi",
			"question_pool":[` + strings.Join(qs, ",") + `]}`, nil
	case "grade":
		return "```json\n" + `{"score":82,"grade":"B","rubric_scores":{"Situation":20,"Task":20,"Action":22,"Result":20},
			"what_worked":["structure"],"what_missed":[],"coach_reaction":"Nice"}` + "\n```", nil
	case "tip":
		if tipErr != nil {
			return "", tipErr
		}
		return "Lead with impact.", nil
	default:
		return "Here is my advice.", nil
	}
}

func (r *routingInvoker) count(task string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[task]
}

func taskOf(prompt string) string {
	switch {
	case strings.Contains(prompt, "priority_improvements"):
		return "report"
	case strings.Contains(prompt, "question_pool"):
		return "plan"
	case strings.Contains(prompt, "what_worked"):
		return "grade"
	case strings.Contains(prompt, "coaching tip"):
		return "tip"
	default:
		return "chat"
	}
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(_ context.Context, audio []byte, _, _ string, id backend.Identity) (string, error) {
	if id != backend.Groq {
		return "", &backend.UnsupportedBackendError{Backend: id, Feature: "transcription"}
	}
	return fmt.Sprintf("%d bytes", len(audio)), nil
}

var conn = coach.Connection{Backend: backend.Groq, Credential: "gsk", Model: "llama-3.3-70b-versatile"}

func newService(t *testing.T, inv *routingInvoker) (*service.CoachingService, store.Store) {
	t.Helper()
	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "coach.db"))
	require.NoError(t, err)

	c := coach.New(inv, coach.Config{
		Retry: []retry.Option{retry.WithSleep(func(context.Context, time.Duration) error { return nil })},
	})
	svc := service.NewCoachingService(db, c, fakeTranscriber{}, service.Options{TipWorkers: 2})
	t.Cleanup(func() {
		svc.Close()
		db.Close()
	})
	return svc, db
}

func TestStartSession_PersistsAndPrefetchesTips(t *testing.T) {
	ctx := context.Background()
	inv := &routingInvoker{counts: map[string]int{}}
	svc, db := newService(t, inv)

	sess, err := svc.StartSession(ctx, conn, service.StartRequest{ResumeText: "Go developer"})
	require.NoError(t, err)
	assert.Equal(t, session.ModeDocuments, sess.Mode)
	require.Len(t, sess.Plan.Questions, 4)

	require.NoError(t, svc.WaitForTips(ctx, sess.ID))
	assert.Equal(t, 4, inv.count("tip"))

	tip, err := db.GetTip(ctx, sess.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "Lead with impact.", tip)

	tip, err = svc.Tip(ctx, conn, sess.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "Lead with impact.", tip)
	assert.Equal(t, 4, inv.count("tip"))
}

func TestStartSession_FieldMode(t *testing.T) {
	inv := &routingInvoker{counts: map[string]int{}}
	svc, _ := newService(t, inv)

	sess, err := svc.StartSession(context.Background(), conn, service.StartRequest{Field: "Data Engineering", ExperienceLevel: "Senior"})
	require.NoError(t, err)
	assert.Equal(t, session.ModeField, sess.Mode)
	require.NoError(t, svc.WaitForTips(context.Background(), sess.ID))
}

func TestTip_GeneratedOnDemandAfterFailedPrefetch(t *testing.T) {
	ctx := context.Background()
	inv := &routingInvoker{counts: map[string]int{}, tipErr: errors.New("rate limited")}
	svc, _ := newService(t, inv)

	sess, err := svc.StartSession(ctx, conn, service.StartRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.WaitForTips(ctx, sess.ID))

	inv.mu.Lock()
	inv.tipErr = nil
	inv.mu.Unlock()

	tip, err := svc.Tip(ctx, conn, sess.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "Lead with impact.", tip)

	_, err = svc.Tip(ctx, conn, sess.ID, 42)
	assert.ErrorIs(t, err, session.ErrUnknownQuestion)
}

func TestSubmitAnswerAndReport(t *testing.T) {
	ctx := context.Background()
	inv := &routingInvoker{counts: map[string]int{}}
	svc, _ := newService(t, inv)

	sess, err := svc.StartSession(ctx, conn, service.StartRequest{ResumeText: "r", JobDescription: "j"})
	require.NoError(t, err)

	_, err = svc.Report(ctx, conn, sess.ID)
	assert.ErrorIs(t, err, session.ErrNoAnswers)

	_, err = svc.SubmitAnswer(ctx, conn, sess.ID, 2, "   ")
	assert.ErrorIs(t, err, session.ErrEmptyAnswer)

	item, err := svc.SubmitAnswer(ctx, conn, sess.ID, 2, "We cut p99 latency by 40%.")
	require.NoError(t, err)
	assert.Equal(t, 82, item.Grade.Score)
	assert.Equal(t, "Behavioral", item.Category)

	report, err := svc.Report(ctx, conn, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 78, report.OverallScore)
	assert.Equal(t, 82, report.CategoryScores["Behavioral"])

	got, err := svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, 1)
	require.NotNil(t, got.Report)

	_, err = svc.SubmitAnswer(ctx, conn, sess.ID, 2, "Second attempt.")
	require.NoError(t, err)
	got, err = svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Answers, 1)
	assert.Equal(t, "Second attempt.", got.Answers[0].Answer)
	assert.Nil(t, got.Report)

	require.NoError(t, svc.WaitForTips(ctx, sess.ID))
}

func TestSubmitAnswer_UnknownSession(t *testing.T) {
	svc, _ := newService(t, &routingInvoker{counts: map[string]int{}})
	_, err := svc.SubmitAnswer(context.Background(), conn, "missing", 1, "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFollowupChatTranscribe(t *testing.T) {
	ctx := context.Background()
	inv := &routingInvoker{counts: map[string]int{}}
	svc, _ := newService(t, inv)

	sess, err := svc.StartSession(ctx, conn, service.StartRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.WaitForTips(ctx, sess.ID))

	reply, err := svc.Followup(ctx, conn, sess.ID, []coach.Message{{Role: "user", Content: "How was that?"}})
	require.NoError(t, err)
	assert.Equal(t, "Here is my advice.", reply)

	_, err = svc.Followup(ctx, conn, sess.ID, nil)
	assert.Error(t, err)

	reply, err = svc.Chat(ctx, conn, []coach.Message{{Role: "user", Content: "Salary tips?"}}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Here is my advice.", reply)

	text, err := svc.Transcribe(ctx, conn, []byte("abc"), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "3 bytes", text)

	_, err = svc.Transcribe(ctx, coach.Connection{Backend: backend.Anthropic}, []byte("abc"), "a.wav")
	var unsupported *backend.UnsupportedBackendError
	assert.ErrorAs(t, err, &unsupported)
}

func TestListAndDeleteSessions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &routingInvoker{counts: map[string]int{}})

	sess, err := svc.StartSession(ctx, conn, service.StartRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.WaitForTips(ctx, sess.ID))

	list, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "SRE", list[0].TargetRole)

	require.NoError(t, svc.DeleteSession(ctx, sess.ID))
	_, err = svc.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
