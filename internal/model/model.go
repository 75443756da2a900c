package model

import (
	"fmt"
	"time"
)

// QuestionEndMarker is the trimmed line that closes a question block in a pool file.
const QuestionEndMarker = "."

// Question is one exam item parsed from a pool file.
type Question struct {
	PoolID string
	Index  int
	Text   string
}

// ID returns the allocation key of the question.
func (q Question) ID() QuestionID {
	return QuestionID{PoolID: q.PoolID, Index: q.Index}
}

// QuestionID identifies a question by its pool and its position inside that pool.
type QuestionID struct {
	PoolID string `yaml:"pool"`
	Index  int    `yaml:"index"`
}

func (id QuestionID) String() string {
	return fmt.Sprintf("%s:%d", id.PoolID, id.Index)
}

// Pools maps a pool identifier (the source file name) to its ordered question texts.
type Pools map[string][]string

// Total returns the number of questions across all pools.
func (p Pools) Total() int {
	n := 0
	for _, qs := range p {
		n += len(qs)
	}
	return n
}

// Question resolves an id to its parsed question. ok is false if the id is out of range.
func (p Pools) Question(id QuestionID) (Question, bool) {
	qs, found := p[id.PoolID]
	if !found || id.Index < 0 || id.Index >= len(qs) {
		return Question{}, false
	}
	return Question{PoolID: id.PoolID, Index: id.Index, Text: qs[id.Index]}, true
}

// Group is one generated exam variant. Questions are in presentation order.
type Group struct {
	ID        int
	Questions []Question
}

// QuestionIDs returns the ids of the group's questions in presentation order.
func (g Group) QuestionIDs() []QuestionID {
	ids := make([]QuestionID, len(g.Questions))
	for i, q := range g.Questions {
		ids[i] = q.ID()
	}
	return ids
}

// GenerateConfig holds the parameters of a single generation run.
type GenerateConfig struct {
	TestID            string
	NumGroups         int
	QuestionsPerGroup int
	Seed              uint64
	MaxAttempts       int    // 0 means the allocator default
	Course            string // shown in the output header
}

// RunStatus represents the outcome of a generation run.
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// Run is a recorded generation run.
type Run struct {
	ID                string
	TestID            string
	Seed              uint64
	NumGroups         int
	QuestionsPerGroup int
	Status            RunStatus
	CreatedAt         time.Time
	FinishedAt        *time.Time
}

// PoolSource describes a pool file as it was read for a run.
type PoolSource struct {
	PoolID       string
	SHA256       string
	NumQuestions int
}

// RunGroup is the stored allocation of one group.
type RunGroup struct {
	GroupID     int
	QuestionIDs []QuestionID
}
