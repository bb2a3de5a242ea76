package email

import "html/template"

// Templates are compiled in; keep them short and transactional.
const templateSource = `
{{define "subscription_started"}}
<h2>Welcome aboard!</h2>
<p>Your <strong>{{.PlanType}}</strong> plan ({{.PlanDuration}}) is now active.</p>
<p>Your current period runs until {{.ExpiresAt}}.</p>
{{end}}

{{define "expiry_warning"}}
<h2>Your plan expires soon</h2>
<p>Your <strong>{{.PlanType}}</strong> plan expires in {{.DaysLeft}} days, on {{.ExpiresAt}}.</p>
<p>Renew now to keep your meal plans and saved recipes.</p>
{{end}}

{{define "payment_failed"}}
<h2>We couldn't charge your payment method</h2>
<p>The renewal payment for your <strong>{{.PlanType}}</strong> plan failed.</p>
<p>Please update your payment details to keep your meal plans and recipes.</p>
{{end}}

{{define "subscription_canceled"}}
<h2>Sorry to see you go</h2>
<p>Your <strong>{{.PlanType}}</strong> plan has been canceled.</p>
<p>You keep access until the end of the paid period.</p>
{{end}}
`

func loadTemplates() (*template.Template, error) {
	return template.New("emails").Parse(templateSource)
}
