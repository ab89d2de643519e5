package grading

import (
	"context"
	"testing"
)

func TestDefaultGrader(t *testing.T) {
	g := NewDefaultGrader()
	ctx := context.Background()

	cases := []struct {
		name   string
		q      Q
		answer string
		want   Result
	}{
		{
			name: "multiple choice correct",
			q:    Q{Type: "multiple_choice", Points: 10, CorrectAnswer: "3/4"},
			answer: "3/4",
			want: Result{AutoPoints: 10, MaxPoints: 10},
		},
		{
			name: "multiple choice trims and ignores case",
			q:    Q{Type: "multiple_choice", Points: 10, CorrectAnswer: "True"},
			answer: "  true ",
			want: Result{AutoPoints: 10, MaxPoints: 10},
		},
		{
			name: "multiple choice wrong",
			q:    Q{Type: "multiple_choice", Points: 10, CorrectAnswer: "3/4"},
			answer: "1/2",
			want: Result{MaxPoints: 10},
		},
		{
			name: "empty key never matches",
			q:    Q{Type: "multiple_choice", Points: 10},
			answer: "",
			want: Result{MaxPoints: 10},
		},
		{
			name: "essay defers to teacher",
			q:    Q{Type: "essay", Points: 10},
			answer: "long prose",
			want: Result{MaxPoints: 10, NeedsManual: true},
		},
		{
			name: "unknown type defers to teacher",
			q:    Q{Type: "matching", Points: 5},
			answer: "a-b",
			want: Result{MaxPoints: 5, NeedsManual: true},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.Grade(ctx, tc.q, tc.answer)
			if err != nil {
				t.Fatalf("grade: %v", err)
			}
			if got != tc.want {
				t.Fatalf("grade = %+v, want %+v", got, tc.want)
			}
		})
	}
}
