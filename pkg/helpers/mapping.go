package helpers

import (
	"fmt"

	"github.com/oksasatya/healthcare-storefront/pkg/mailer"
	mailtpl "github.com/oksasatya/healthcare-storefront/pkg/mailer/templates"
)

// SubjectForUniversal is the fallback subject when the subject template
// renders empty.
func SubjectForUniversal(data map[string]any) string {
	kind, _ := mailtpl.ParseKind(fmt.Sprintf("%v", data["Type"]))
	app, _ := data["AppName"].(string)
	return kind.Subject(app)
}

func EnsureRecipientAndEmail(job *mailer.EmailJob) {
	if job.Data == nil {
		job.Data = map[string]any{}
	}
	if v, ok := job.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["Email"] = job.To
	}
	if v, ok := job.Data["RecipientEmail"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["RecipientEmail"] = job.To
	}
}

// MapLegacyToUniversal rewrites a job addressed to a single template name
// into the universal template keyed by Data["Type"].
func MapLegacyToUniversal(job *mailer.EmailJob) {
	kind, ok := mailtpl.ParseKind(job.Template)
	if !ok {
		return
	}
	if job.Data == nil {
		job.Data = map[string]any{}
	}
	if v, ok := job.Data["Type"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["Type"] = string(kind)
	}
	job.Template = mailtpl.Universal
}
