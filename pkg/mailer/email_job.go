package mailer

import "fmt"

// EmailJob is the message the API puts on the email queue and the worker
// renders. Jobs carry either a template name with Data, or a literal
// Subject/Text/HTML.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// NewTemplateJob addresses a templated email to to.
func NewTemplateJob(to, template string, data map[string]any) EmailJob {
	return EmailJob{To: to, Template: template, Data: data}
}

// Kind is the notification type carried in Data, falling back to the
// template name. Used for logging and mail tags.
func (j EmailJob) Kind() string {
	if v, ok := j.Data["Type"]; ok && v != nil {
		if s := fmt.Sprintf("%v", v); s != "" {
			return s
		}
	}
	return j.Template
}
