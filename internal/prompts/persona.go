package prompts

import (
	"strings"
	"text/template"
)

// Default persona used when a tenant has no tone configured.
const DefaultPersona = "You are a friendly and professional phone receptionist. Keep answers short and conversational."

var personaTemplate = template.Must(template.New("persona").Parse(strings.TrimSpace(`
You are the phone receptionist for {{.TenantName}}. Speak in a {{.Tone}} tone.
Keep answers short and conversational; this is a live phone call.
{{- if .BusinessHours}}
Business hours: {{.BusinessHours}}. If the caller asks when the business is open, use these hours.
{{- end}}
`)))

type personaData struct {
	TenantName    string
	Tone          string
	BusinessHours string
}

// BuildPersonaInstruction renders the per-tenant persona prompt. Returns an
// empty string when the tenant has no tone configured, so callers can skip
// the override entirely.
func BuildPersonaInstruction(tenantName, tone, businessHours string) string {
	if tone == "" {
		return ""
	}
	if tenantName == "" {
		tenantName = "the business"
	}

	var b strings.Builder
	err := personaTemplate.Execute(&b, personaData{
		TenantName:    tenantName,
		Tone:          tone,
		BusinessHours: businessHours,
	})
	if err != nil {
		return DefaultPersona
	}
	return strings.TrimSpace(b.String())
}
