// Package session is the host-side aggregate of one coaching session: the
// plan, the graded answers in the order given and the final report.
package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/id"
)

type Mode string

const (
	ModeDocuments Mode = "documents"
	ModeField     Mode = "field"
)

var (
	ErrEmptyAnswer     = errors.New("answer cannot be empty")
	ErrNoAnswers       = errors.New("answer at least one question before requesting a report")
	ErrUnknownQuestion = errors.New("question is not part of this session")
)

// Session is the main domain entity for a coaching session. Credentials are
// deliberately absent: a session can be persisted and shown without them.
type Session struct {
	ID             string
	Backend        backend.Identity
	Model          string
	Mode           Mode
	ResumeText     string
	JobDescription string
	Plan           *coach.SessionPlan
	Answers        []coach.AnsweredQuestion
	Report         *coach.SessionReport
	CreatedAt      time.Time
}

// New creates a session around a freshly built plan.
func New(b backend.Identity, model string, mode Mode, resume, jobDescription string, plan *coach.SessionPlan) *Session {
	return &Session{
		ID:             id.GenerateID(),
		Backend:        b,
		Model:          model,
		Mode:           mode,
		ResumeText:     resume,
		JobDescription: jobDescription,
		Plan:           plan,
		Answers:        []coach.AnsweredQuestion{},
		CreatedAt:      time.Now().UTC(),
	}
}

// Question looks up a planned question.
func (s *Session) Question(questionID int) (coach.Question, error) {
	if s.Plan == nil {
		return coach.Question{}, ErrUnknownQuestion
	}
	q, ok := s.Plan.Question(questionID)
	if !ok {
		return coach.Question{}, fmt.Errorf("question %d: %w", questionID, ErrUnknownQuestion)
	}
	return q, nil
}

// ValidateAnswer checks an answer before it is sent for grading.
func (s *Session) ValidateAnswer(questionID int, answer string) (coach.Question, error) {
	q, err := s.Question(questionID)
	if err != nil {
		return coach.Question{}, err
	}
	if strings.TrimSpace(answer) == "" {
		return coach.Question{}, ErrEmptyAnswer
	}
	return q, nil
}

// Record stores a graded answer. Answering a question again replaces the
// earlier attempt and invalidates any report.
func (s *Session) Record(questionID int, answer string, grade coach.GradeRecord) (coach.AnsweredQuestion, error) {
	q, err := s.ValidateAnswer(questionID, answer)
	if err != nil {
		return coach.AnsweredQuestion{}, err
	}
	item := coach.AnsweredQuestion{
		QuestionID: q.ID,
		Question:   q.Question,
		Category:   q.Category,
		Answer:     strings.TrimSpace(answer),
		Grade:      grade,
	}
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			s.Answers[i] = item
			s.Report = nil
			return item, nil
		}
	}
	s.Answers = append(s.Answers, item)
	s.Report = nil
	return item, nil
}

// NextQuestion returns the first planned question without an answer.
func (s *Session) NextQuestion() (coach.Question, bool) {
	if s.Plan == nil {
		return coach.Question{}, false
	}
	answered := make(map[int]bool, len(s.Answers))
	for _, a := range s.Answers {
		answered[a.QuestionID] = true
	}
	for _, q := range s.Plan.Questions {
		if !answered[q.ID] {
			return q, true
		}
	}
	return coach.Question{}, false
}

// Complete reports whether every planned question has an answer.
func (s *Session) Complete() bool {
	_, pending := s.NextQuestion()
	return s.Plan != nil && !pending
}

// ReadyForReport returns ErrNoAnswers for a session with nothing graded.
// Partial sessions may still be reported on.
func (s *Session) ReadyForReport() error {
	if len(s.Answers) == 0 {
		return ErrNoAnswers
	}
	return nil
}

// CategoryStat aggregates the graded answers of one category.
type CategoryStat struct {
	Category string
	Answered int
	Average  int
	Best     int
	Latest   int
}

// CategoryStats returns per-category statistics ordered by category name.
func (s *Session) CategoryStats() []CategoryStat {
	byCat := map[string]*CategoryStat{}
	totals := map[string]int{}
	for _, a := range s.Answers {
		st, ok := byCat[a.Category]
		if !ok {
			st = &CategoryStat{Category: a.Category}
			byCat[a.Category] = st
		}
		st.Answered++
		st.Latest = a.Grade.Score
		if a.Grade.Score > st.Best {
			st.Best = a.Grade.Score
		}
		totals[a.Category] += a.Grade.Score
	}

	out := make([]CategoryStat, 0, len(byCat))
	for cat, st := range byCat {
		st.Average = (totals[cat] + st.Answered/2) / st.Answered
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
