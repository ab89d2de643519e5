package grading

import (
	"context"
	"strings"
)

// Q is the minimal view of a question needed for grading.
type Q struct {
	Type          string
	Points        float64
	CorrectAnswer string
}

// Result is the outcome of grading a single answer.
type Result struct {
	AutoPoints  float64
	MaxPoints   float64
	NeedsManual bool
}

// Strategy grades a single answer.
type Strategy interface {
	Grade(ctx context.Context, q Q, answer string) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, answer string) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, answer string) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		// unknown types go to a teacher rather than silently scoring zero
		return Result{MaxPoints: q.Points, NeedsManual: true}, nil
	}
	return s.Grade(ctx, q, answer)
}

// NewDefaultGrader installs the built-in strategies. true_false is legacy and
// grades exactly like multiple choice.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"multiple_choice": exactMatchStrategy{},
			"true_false":      exactMatchStrategy{},
			"essay":           essayStrategy{},
		},
	}
}

type exactMatchStrategy struct{}

func (exactMatchStrategy) Grade(_ context.Context, q Q, answer string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	if q.CorrectAnswer != "" && strings.EqualFold(strings.TrimSpace(answer), q.CorrectAnswer) {
		res.AutoPoints = q.Points
	}
	return res, nil
}

type essayStrategy struct{}

func (essayStrategy) Grade(_ context.Context, q Q, _ string) (Result, error) {
	return Result{MaxPoints: q.Points, NeedsManual: true}, nil
}
