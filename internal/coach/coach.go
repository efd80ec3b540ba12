// Package coach builds the prompts for each coaching task, sends them through
// the retry controller and turns the model output into typed results.
package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/budget"
	"github.com/interviewcoach/backend/internal/jsonrepair"
	"github.com/interviewcoach/backend/internal/retry"
)

const (
	jsonSystemPrompt = "Return ONLY valid JSON. No markdown."

	noResume         = "No resume provided."
	noJobDescription = "No specific role provided."
)

// ErrEmptyReply is returned when a free-text task gets a blank response.
var ErrEmptyReply = errors.New("the model returned an empty reply")

// Warmer keeps a local model resident between calls. *backend.Adapter
// implements it.
type Warmer interface {
	Warmup(ctx context.Context, id backend.Identity, credential, model string)
}

// Coach runs the coaching tasks. It holds no per-session state and is safe
// for concurrent use when its invoker is.
type Coach struct {
	invoker backend.Invoker
	retry   *retry.Controller
	budgets budget.Table
	warmer  Warmer
	logger  *zap.Logger
}

// Config carries the optional collaborators of a Coach.
type Config struct {
	Budgets budget.Table
	Retry   []retry.Option
	// Warmer defaults to the invoker when it implements Warmer.
	Warmer Warmer
	Logger *zap.Logger
}

// New creates a Coach calling invoker. A zero Config.Budgets uses
// budget.DefaultTable.
func New(invoker backend.Invoker, cfg Config) *Coach {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	budgets := cfg.Budgets
	if budgets.For(budget.ClassCloud, budget.TaskPlan) == (budget.Limits{}) {
		budgets = budget.DefaultTable()
	}
	warmer := cfg.Warmer
	if warmer == nil {
		warmer, _ = invoker.(Warmer)
	}

	opts := append([]retry.Option{retry.WithLogger(logger)}, cfg.Retry...)
	return &Coach{
		invoker: invoker,
		retry:   retry.New(invoker, opts...),
		budgets: budgets,
		warmer:  warmer,
		logger:  logger,
	}
}

// call describes one generation for the shared helpers.
type call struct {
	conn        Connection
	task        budget.Task
	prompt      string
	system      string
	temperature float64
}

func (c *Coach) class(conn Connection) (budget.Class, error) {
	s, err := backend.Lookup(conn.Backend)
	if err != nil {
		return budget.ClassCloud, err
	}
	return s.Class, nil
}

func (c *Coach) request(cl call, class budget.Class) backend.Request {
	return backend.Request{
		Credential:   cl.conn.Credential,
		Backend:      cl.conn.Backend,
		Model:        cl.conn.Model,
		Prompt:       cl.prompt,
		SystemPrompt: cl.system,
		Temperature:  cl.temperature,
		MaxTokens:    c.budgets.For(class, cl.task).MaxTokens,
	}
}

// generateJSON runs cl through the retry controller; decode is called on
// every attempt's output and a decode error triggers the next attempt.
func (c *Coach) generateJSON(ctx context.Context, cl call, decode func(string) error) error {
	class, err := c.class(cl.conn)
	if err != nil {
		return err
	}
	if cl.system == "" {
		cl.system = jsonSystemPrompt
	}
	_, err = c.retry.Call(ctx, c.request(cl, class), decode)
	if err != nil {
		c.logger.Error("task failed",
			zap.String("task", string(cl.task)),
			zap.String("backend", string(cl.conn.Backend)),
			zap.String("model", cl.conn.Model),
			zap.Error(err),
		)
	}
	return err
}

// generateText makes a single call for free-text tasks; their output is used
// verbatim so there is nothing to retry on.
func (c *Coach) generateText(ctx context.Context, cl call) (string, error) {
	class, err := c.class(cl.conn)
	if err != nil {
		return "", err
	}
	text, err := c.invoker.Invoke(ctx, c.request(cl, class))
	if err != nil {
		c.logger.Error("task failed",
			zap.String("task", string(cl.task)),
			zap.String("backend", string(cl.conn.Backend)),
			zap.Error(err),
		)
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// contextBlock trims the resume and job description for task and substitutes
// placeholders for missing ones.
func (c *Coach) contextBlock(class budget.Class, task budget.Task, resume, jobDescription string) (string, string) {
	r, j := c.budgets.TrimContext(class, task, resume, jobDescription)
	if strings.TrimSpace(r) == "" {
		r = noResume
	}
	if strings.TrimSpace(j) == "" {
		j = noJobDescription
	}
	return r, j
}

// UserMessage renders any error from this package for direct display.
func UserMessage(err error) string {
	var (
		malformed *jsonrepair.MalformedOutputError
		plan      *PlanBuildError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &plan):
		return fmt.Sprintf("Could not build your interview plan (%s). Try again, or pick a larger model.", plan.Reason)
	case errors.As(err, &malformed):
		return "The model's reply could not be read after several attempts. Try again, or pick a larger model."
	case errors.Is(err, ErrEmptyReply):
		return "The model returned an empty reply. Try again."
	default:
		return backend.UserMessage(err)
	}
}
