package core_test

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/testutil"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := core.NewTestConfig()
	conf.FrontendBaseURL = "https://school.test"
	logger := new(testutil.Logger)
	core.ParseEmailTemplates(conf, logger)
	require.Empty(t, logger.Entries("error"))

	data := map[string]interface{}{
		"GuardianName":    "Ada",
		"StudentName":     "Alice",
		"SubjectName":     "Mathematics",
		"AssessmentTitle": "Fractions <quiz>",
		"LetterGrade":     "A",
		"Percentage":      90,
	}

	tests := []struct {
		name     string
		msg      core.EmailMessage
		wantText []string
		wantHTML []string
		wantErr  bool
	}{
		{
			name:     "templated",
			msg:      core.EmailMessage{TemplateName: "grade_published", TemplateData: data},
			wantText: []string{"Hello Ada,", "published for Alice", "Fractions <quiz>", "A (90%)", "https://school.test"},
			wantHTML: []string{"<strong>Alice</strong>", "Fractions &lt;quiz&gt;", "A (90%)", `href="https://school.test"`},
		},
		{
			name:     "plain body",
			msg:      core.EmailMessage{BodyStr: "hi"},
			wantText: []string{"hi"},
		},
		{
			name:    "missing template data",
			msg:     core.EmailMessage{TemplateName: "grade_published", TemplateData: map[string]interface{}{}},
			wantErr: true,
		},
		{
			name: "unknown template renders nothing",
			msg:  core.EmailMessage{TemplateName: "nope"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			msg.To = []mail.Address{{Name: "Ada", Address: "ada@example.com"}}

			err := msg.Render()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, s := range tt.wantText {
				assert.Contains(t, msg.TextContent, s)
			}
			for _, s := range tt.wantHTML {
				assert.Contains(t, msg.HTMLContent, s)
			}
			assert.Equal(t, len(tt.wantText)+len(tt.wantHTML) > 0, msg.HasContent())
			assert.True(t, msg.HasRecipients())
		})
	}
}
