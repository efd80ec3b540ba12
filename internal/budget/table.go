package budget

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Task names one orchestration call type.
type Task string

const (
	TaskPlan   Task = "plan"
	TaskGrade  Task = "grade"
	TaskTip    Task = "tip"
	TaskChat   Task = "chat"
	TaskReport Task = "report"
)

// Tasks lists every task in a stable order.
var Tasks = []Task{TaskPlan, TaskGrade, TaskTip, TaskChat, TaskReport}

// Limits is the budget for one (class, task) pair. Resume and JobDescription
// are character limits fed to Trim with the class's mode.
type Limits struct {
	Resume         int `yaml:"resume"`
	JobDescription int `yaml:"job_description"`
	MaxTokens      int `yaml:"max_tokens"`
	BrevityWords   int `yaml:"brevity_words"`
}

type key struct {
	class Class
	task  Task
}

// Table is an immutable set of Limits keyed by class and task. The zero
// value has no entries; use DefaultTable or LoadTable.
type Table struct {
	limits map[key]Limits
}

// DefaultTable returns the built-in budgets.
func DefaultTable() Table {
	return Table{limits: map[key]Limits{
		{ClassCloud, TaskPlan}:   {Resume: 3000, JobDescription: 2000, MaxTokens: 1000, BrevityWords: 40},
		{ClassCloud, TaskGrade}:  {Resume: 1000, JobDescription: 600, MaxTokens: 600, BrevityWords: 45},
		{ClassCloud, TaskTip}:    {Resume: 1200, JobDescription: 800, MaxTokens: 300, BrevityWords: 55},
		{ClassCloud, TaskChat}:   {Resume: 1000, JobDescription: 700, MaxTokens: 700},
		{ClassCloud, TaskReport}: {Resume: 800, JobDescription: 600, MaxTokens: 1200, BrevityWords: 55},

		{ClassLocal, TaskPlan}:   {Resume: 1200, JobDescription: 1200, MaxTokens: 800, BrevityWords: 40},
		{ClassLocal, TaskGrade}:  {Resume: 250, JobDescription: 250, MaxTokens: 380, BrevityWords: 45},
		{ClassLocal, TaskTip}:    {Resume: 180, JobDescription: 180, MaxTokens: 220, BrevityWords: 55},
		{ClassLocal, TaskChat}:   {Resume: 350, JobDescription: 350, MaxTokens: 380},
		{ClassLocal, TaskReport}: {Resume: 350, JobDescription: 350, MaxTokens: 800, BrevityWords: 55},
	}}
}

// For returns the limits for class and task, or the zero Limits if the table
// has no entry (which disables trimming).
func (t Table) For(c Class, task Task) Limits {
	return t.limits[key{c, task}]
}

// With returns a copy of t with one entry replaced.
func (t Table) With(c Class, task Task, l Limits) Table {
	next := make(map[key]Limits, len(t.limits)+1)
	for k, v := range t.limits {
		next[k] = v
	}
	next[key{c, task}] = l
	return Table{limits: next}
}

// TrimContext trims a resume and job description for task on class.
func (t Table) TrimContext(c Class, task Task, resume, jobDescription string) (string, string) {
	l := t.For(c, task)
	mode := c.Mode()
	return Trim(resume, l.Resume, mode), Trim(jobDescription, l.JobDescription, mode)
}

// Brevity returns the brevity hint for task on class.
func (t Table) Brevity(c Class, task Task) string {
	return BrevityHint(c, t.For(c, task).BrevityWords)
}

type tableFile struct {
	Cloud map[Task]Limits `yaml:"cloud"`
	Local map[Task]Limits `yaml:"local"`
}

// LoadTable reads budget overrides from a YAML file on top of DefaultTable.
// Only the tasks present in the file are replaced:
//
//	local:
//	  grade: {resume: 400, job_description: 300, max_tokens: 450, brevity_words: 45}
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read budgets file: %w", err)
	}
	return ParseTable(data)
}

// ParseTable is LoadTable for an in-memory document.
func ParseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Table{}, fmt.Errorf("parse budgets file: %w", err)
	}

	t := DefaultTable()
	for class, overrides := range map[Class]map[Task]Limits{ClassCloud: f.Cloud, ClassLocal: f.Local} {
		for task, l := range overrides {
			if !knownTask(task) {
				return Table{}, fmt.Errorf("parse budgets file: unknown task %q", task)
			}
			t = t.With(class, task, l)
		}
	}
	return t, nil
}

func knownTask(task Task) bool {
	for _, known := range Tasks {
		if task == known {
			return true
		}
	}
	return false
}
