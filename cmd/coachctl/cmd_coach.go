package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/extract"
)

var (
	resumeFile   string
	jdFile       string
	field        string
	level        string
	focusAreas   []string
	questionText string
	categoryName string
	answerText   string
	jsonOutput   bool
)

// planCmd builds a session plan
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build an interview plan from a resume and job description, or for a field",
	RunE:  runPlan,
}

// tipCmd gives a tip for one question
var tipCmd = &cobra.Command{
	Use:   "tip",
	Short: "Get a coaching tip for a question",
	RunE:  runTip,
}

// gradeCmd grades one answer
var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade an answer to a question",
	Long: `Grade an answer with the rubric for its category: openers and closing
questions have their own rubrics, everything else is graded on STAR.
Without --answer the answer is read from stdin.`,
	RunE: runGrade,
}

// practiceCmd runs a whole session in the terminal
var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Run a full practice session: plan, answer each question, get a report",
	Long: `Run a practice session in the terminal. Each answer is one line; an empty
line skips the question and "q" ends the session early. The report covers
the answered questions.`,
	RunE: runPractice,
}

func init() {
	for _, c := range []*cobra.Command{planCmd, tipCmd, gradeCmd, practiceCmd} {
		c.Flags().StringVar(&resumeFile, "resume", "", "Resume text file")
		c.Flags().StringVar(&jdFile, "jd", "", "Job description text file")
		c.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	}
	for _, c := range []*cobra.Command{planCmd, practiceCmd} {
		c.Flags().StringVar(&field, "field", "", "Plan for a field instead of documents, e.g. \"Data Engineering\"")
		c.Flags().StringVar(&level, "level", "", "Experience level for --field")
		c.Flags().StringSliceVar(&focusAreas, "focus", nil, "Focus areas for --field")
	}
	for _, c := range []*cobra.Command{tipCmd, gradeCmd} {
		c.Flags().StringVarP(&questionText, "question", "q", "", "Question text")
		c.Flags().StringVarP(&categoryName, "category", "c", "Behavioral", "Question category")
		_ = c.MarkFlagRequired("question")
	}
	gradeCmd.Flags().StringVarP(&answerText, "answer", "a", "", "Answer text")
}

// readDocument loads an optional resume or job description file.
func readDocument(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > extract.MaxFileSize {
		return "", fmt.Errorf("%s is larger than %d MB", path, extract.MaxFileSize>>20)
	}
	text, err := extract.Extract(path, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

func readDocuments() (string, string, error) {
	resume, err := readDocument(resumeFile)
	if err != nil {
		return "", "", err
	}
	jd, err := readDocument(jdFile)
	if err != nil {
		return "", "", err
	}
	return resume, jd, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// userError turns a coach failure into the message the user should see.
func userError(err error) error {
	return errors.New(coach.UserMessage(err))
}

func runPlan(cmd *cobra.Command, args []string) error {
	conn, err := target()
	if err != nil {
		return err
	}
	resume, jd, err := readDocuments()
	if err != nil {
		return err
	}
	adapter := newAdapter()
	c, err := newCoach(adapter)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	var plan *coach.SessionPlan
	if field != "" {
		plan, err = c.BuildFieldPlan(ctx, conn, field, level, focusAreas)
	} else {
		plan, err = c.BuildSessionPlan(ctx, conn, resume, jd)
	}
	if err != nil {
		return userError(err)
	}
	if jsonOutput {
		return printJSON(cmd, plan)
	}
	printPlan(cmd.OutOrStdout(), plan)
	return nil
}

func runTip(cmd *cobra.Command, args []string) error {
	conn, err := target()
	if err != nil {
		return err
	}
	resume, jd, err := readDocuments()
	if err != nil {
		return err
	}
	c, err := newCoach(newAdapter())
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	tip, err := c.QuestionTip(ctx, conn, questionText, categoryName, resume, jd)
	if err != nil {
		return userError(err)
	}
	if jsonOutput {
		return printJSON(cmd, map[string]string{"tip": tip})
	}
	fmt.Fprintln(cmd.OutOrStdout(), tip)
	return nil
}

func runGrade(cmd *cobra.Command, args []string) error {
	conn, err := target()
	if err != nil {
		return err
	}
	resume, jd, err := readDocuments()
	if err != nil {
		return err
	}
	answer := answerText
	if strings.TrimSpace(answer) == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Your answer:")
		if answer, err = readLine(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	if strings.TrimSpace(answer) == "" {
		return errors.New("answer cannot be empty")
	}
	c, err := newCoach(newAdapter())
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	grade, err := c.GradeAnswer(ctx, conn, coach.GradeInput{
		Question:       questionText,
		Category:       categoryName,
		Answer:         answer,
		Resume:         resume,
		JobDescription: jd,
	})
	if err != nil {
		return userError(err)
	}
	if jsonOutput {
		return printJSON(cmd, grade)
	}
	printGrade(cmd.OutOrStdout(), grade)
	return nil
}

func runPractice(cmd *cobra.Command, args []string) error {
	conn, err := target()
	if err != nil {
		return err
	}
	resume, jd, err := readDocuments()
	if err != nil {
		return err
	}
	c, err := newCoach(newAdapter())
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	out := cmd.OutOrStdout()
	var plan *coach.SessionPlan
	if field != "" {
		plan, err = c.BuildFieldPlan(ctx, conn, field, level, focusAreas)
	} else {
		plan, err = c.BuildSessionPlan(ctx, conn, resume, jd)
	}
	if err != nil {
		return userError(err)
	}
	color.New(color.FgCyan).Fprintln(out, plan.OpeningMessage)

	in := bufio.NewScanner(cmd.InOrStdin())
	in.Buffer(make([]byte, 64*1024), 1<<20)
	var answered []coach.AnsweredQuestion

questions:
	for _, q := range plan.Questions {
		fmt.Fprintln(out)
		color.New(color.Bold).Fprintf(out, "Q%d [%s, %s] ", q.ID, q.Category, q.Difficulty)
		fmt.Fprintln(out, q.Question)
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			break
		}
		answer := strings.TrimSpace(in.Text())
		switch answer {
		case "":
			continue
		case "q", "quit":
			break questions
		}

		grade, err := c.GradeAnswer(ctx, conn, coach.GradeInput{
			Question:       q.Question,
			Category:       q.Category,
			Answer:         answer,
			Resume:         resume,
			JobDescription: jd,
		})
		if err != nil {
			color.New(color.FgRed).Fprintln(out, coach.UserMessage(err))
			continue
		}
		printGrade(out, grade)
		answered = append(answered, coach.AnsweredQuestion{
			QuestionID: q.ID,
			Question:   q.Question,
			Category:   q.Category,
			Answer:     answer,
			Grade:      *grade,
		})
	}
	if err := in.Err(); err != nil {
		return err
	}
	if len(answered) == 0 {
		fmt.Fprintln(out, "\nNo answers, no report.")
		return nil
	}

	report, err := c.BuildSessionReport(ctx, conn, answered, resume, jd)
	if err != nil {
		return userError(err)
	}
	if jsonOutput {
		return printJSON(cmd, report)
	}
	fmt.Fprintln(out)
	printReport(out, report)
	return nil
}
