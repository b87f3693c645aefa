package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanResume(t *testing.T) {
	cases := []struct {
		name    string
		mode    ResumeMode
		partial int64
		source  int64
		known   bool
		want    resumePlan
	}{
		{"no resume", NoResume, 5, 10, true, resumePlan{}},
		{"restart", ForceRestart, 5, 10, true, resumePlan{}},
		{"absent", ResumeIfPossible, -1, 10, true, resumePlan{}},
		{"empty", ResumeIfPossible, 0, 10, true, resumePlan{}},
		{"partial", ResumeIfPossible, 4, 10, true, resumePlan{offset: 4}},
		{"complete", ResumeIfPossible, 10, 10, true, resumePlan{offset: 10, complete: true}},
		{"larger", ResumeIfPossible, 12, 10, true, resumePlan{}},
		{"unknown size", ResumeIfPossible, 4, 0, false, resumePlan{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, planResume(tc.mode, tc.partial, tc.source, tc.known))
		})
	}
}
