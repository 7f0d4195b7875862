package mail

import (
	"bytes"
	"html/template"
)

var verificationResultTmpl = template.Must(template.New("verification_result").Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif">
<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
{{if .Verified}}<p>Your identity has been <strong>verified</strong>. Your profile now shows the verified badge.</p>
{{else}}<p>We could not verify your identity with the photos you sent.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p>You can try again from the app with a clearer document and selfie.</p>{{end}}
<p>ServiAPP</p>
</body></html>`))

// VerificationResultData feeds the verification result email.
type VerificationResultData struct {
	Name     string
	Verified bool
	Reason   string
}

// VerificationResultEmail renders the notification sent after a verification attempt.
func VerificationResultEmail(to string, data VerificationResultData) (Message, error) {
	var buf bytes.Buffer
	if err := verificationResultTmpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	subject := "Your identity verification was not approved"
	if data.Verified {
		subject = "Your identity is verified"
	}
	return Message{
		To:       to,
		Subject:  subject,
		HTMLBody: buf.String(),
		Tag:      "identity-verification",
	}, nil
}
