package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/interviewcoach/backend/internal/budget"
	"github.com/interviewcoach/backend/internal/rubric"
)

const (
	followupWindow = 6
	freeChatWindow = 8

	followupSystem = "You are Alex, an experienced warm interview coach. " +
		"Give direct, specific coaching in 2-3 short paragraphs. " +
		"Reference the candidate's actual words. Be encouraging but honest."
	freeChatSystem = "You are Alex, a warm, direct experienced interview coach. " +
		"Give specific, actionable advice in 2-4 paragraphs. " +
		"Reference the candidate's background when available."
	tipSystem = "You are an expert interview coach. Be specific and concise."
)

func lastMessages(messages []Message, n int) []Message {
	if len(messages) > n {
		return messages[len(messages)-n:]
	}
	return messages
}

func transcript(messages []Message, user, coach string) string {
	var sb strings.Builder
	for _, m := range messages {
		role := coach
		if m.Role == "user" {
			role = user
		}
		fmt.Fprintf(&sb, "%s: %s\n\n", role, strings.TrimSpace(m.Content))
	}
	return sb.String()
}

// CoachFollowup continues the coaching conversation about the current answer
// using the last six turns. The reply is used verbatim.
func (c *Coach) CoachFollowup(ctx context.Context, conn Connection, history []Message, resume, jobDescription string) (string, error) {
	class, err := c.class(conn)
	if err != nil {
		return "", err
	}
	r, j := c.contextBlock(class, budget.TaskChat, resume, jobDescription)

	prompt := "RESUME:\n" + r + "\n\nJOB:\n" + j +
		"\n\nCONVERSATION:\n" + transcript(lastMessages(history, followupWindow), "Candidate", "Coach") +
		"Coach Alex:"

	reply, err := c.generateText(ctx, call{conn: conn, task: budget.TaskChat, prompt: prompt, system: followupSystem, temperature: 0.65})
	if err != nil {
		return "", fmt.Errorf("coach followup: %w", err)
	}
	return reply, nil
}

// FreeChat answers an open coaching conversation using the last eight turns.
// Resume and job sections are left out when empty.
func (c *Coach) FreeChat(ctx context.Context, conn Connection, messages []Message, resume, jobDescription string) (string, error) {
	class, err := c.class(conn)
	if err != nil {
		return "", err
	}
	r, j := c.budgets.TrimContext(class, budget.TaskChat, resume, jobDescription)

	var sb strings.Builder
	if strings.TrimSpace(r) != "" {
		sb.WriteString("RESUME:\n" + r + "\n\n")
	}
	if strings.TrimSpace(j) != "" {
		sb.WriteString("JOB:\n" + j + "\n\n")
	}
	sb.WriteString("CONVERSATION:\n")
	sb.WriteString(transcript(lastMessages(messages, freeChatWindow), "You", "Coach Alex"))
	sb.WriteString("Coach Alex:")

	reply, err := c.generateText(ctx, call{conn: conn, task: budget.TaskChat, prompt: sb.String(), system: freeChatSystem, temperature: 0.65})
	if err != nil {
		return "", fmt.Errorf("free chat: %w", err)
	}
	return reply, nil
}

// QuestionTip gives a short coaching tip before the candidate answers. The
// angle depends on the question's rubric type.
func (c *Coach) QuestionTip(ctx context.Context, conn Connection, question, category, resume, jobDescription string) (string, error) {
	class, err := c.class(conn)
	if err != nil {
		return "", err
	}
	r, j := c.contextBlock(class, budget.TaskTip, resume, jobDescription)
	kind := rubric.CategoryType(category)

	prompt := fmt.Sprintf("Question: %s\nCategory: %s\n\n", question, category) +
		"Give a 3-4 sentence coaching tip. Be specific, not generic.\n" +
		kind.TipAngle() + "\n" +
		c.budgets.Brevity(class, budget.TaskTip) +
		"\nRESUME:\n" + r + "\nJOB:\n" + j

	tip, err := c.generateText(ctx, call{conn: conn, task: budget.TaskTip, prompt: prompt, system: tipSystem, temperature: 0.5})
	if err != nil {
		return "", fmt.Errorf("question tip: %w", err)
	}
	return tip, nil
}
