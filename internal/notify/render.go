package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Defaults are used when a tenant has not customized a template kind.
var Defaults = map[string]Template{
	KindReceived: {
		Kind:    KindReceived,
		Subject: "Solicitud recibida: {{.EventName}}",
		Body: "Hola {{.FirstName}},\n\n" +
			"Recibimos tu solicitud de acreditación para **{{.EventName}}**. " +
			"Te avisaremos cuando sea revisada.\n\n{{.TenantName}}",
	},
	KindApproved: {
		Kind:    KindApproved,
		Subject: "Acreditación aprobada: {{.EventName}}",
		Body: "Hola {{.FirstName}},\n\n" +
			"Tu acreditación para **{{.EventName}}** fue aprobada." +
			"{{if .Zone}} Zona asignada: **{{.Zone}}**.{{end}}\n\n" +
			"{{if .Link}}[Ver credencial]({{.Link}})\n\n{{end}}{{.TenantName}}",
	},
	KindRejected: {
		Kind:    KindRejected,
		Subject: "Acreditación rechazada: {{.EventName}}",
		Body: "Hola {{.FirstName}},\n\n" +
			"Tu solicitud para **{{.EventName}}** no fue aprobada.\n\n" +
			"Motivo: {{.Reason}}\n\n{{.TenantName}}",
	},
	KindInvitation: {
		Kind:    KindInvitation,
		Subject: "Invitación a {{.TenantName}}",
		Body: "Fuiste invitado a administrar acreditaciones de **{{.TenantName}}** con rol {{.Role}}.\n\n" +
			"[Aceptar invitación]({{.Link}})",
	},
	KindMagicLink: {
		Kind:    KindMagicLink,
		Subject: "Tu enlace de acceso",
		Body: "Usa este enlace para ingresar a {{.TenantName}}:\n\n" +
			"[Ingresar]({{.Link}})\n\nEl enlace expira pronto y sirve una sola vez.",
	},
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify))

// CheckTemplate reports whether subject and body parse as templates.
func CheckTemplate(subject, body string) error {
	if _, err := template.New("subject").Option("missingkey=zero").Parse(subject); err != nil {
		return fmt.Errorf("invalid subject template: %w", err)
	}
	if _, err := template.New("body").Option("missingkey=zero").Parse(body); err != nil {
		return fmt.Errorf("invalid body template: %w", err)
	}
	return nil
}

// Render executes a template against data and converts the Markdown body to HTML.
func Render(t Template, data Data) (*Message, error) {
	subject, err := execute("subject", t.Subject, data)
	if err != nil {
		return nil, err
	}
	text, err := execute("body", t.Body, data)
	if err != nil {
		return nil, err
	}

	var html bytes.Buffer
	if err := markdown.Convert([]byte(text), &html); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	return &Message{
		Subject: strings.Join(strings.Fields(subject), " "),
		Text:    text,
		HTML:    html.String(),
	}, nil
}

func execute(name, src string, data Data) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parsing %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing %s template: %w", name, err)
	}
	return buf.String(), nil
}

// Notifier renders a tenant's template, falling back to the default, and
// hands the result to a Mailer.
type Notifier struct {
	repo   Repository
	mailer Mailer
}

// NewNotifier creates a Notifier. repo may be nil to always use defaults.
func NewNotifier(repo Repository, mailer Mailer) *Notifier {
	return &Notifier{repo: repo, mailer: mailer}
}

// Template returns the tenant's template of kind, or the default.
func (n *Notifier) Template(ctx context.Context, tenantID uuid.UUID, kind string) (Template, error) {
	def, ok := Defaults[kind]
	if !ok {
		return Template{}, fmt.Errorf("unknown template kind %q", kind)
	}
	if n.repo == nil || tenantID == uuid.Nil {
		return def, nil
	}

	t, err := n.repo.Get(ctx, tenantID, kind)
	if errors.Is(err, ErrTemplateNotFound) {
		return def, nil
	}
	if err != nil {
		return Template{}, err
	}
	return *t, nil
}

// Compose renders the message of kind addressed to to.
func (n *Notifier) Compose(ctx context.Context, tenantID uuid.UUID, kind, to string, data Data) (*Message, error) {
	t, err := n.Template(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}
	msg, err := Render(t, data)
	if err != nil {
		return nil, err
	}
	msg.To = to
	return msg, nil
}

// Send composes and delivers a single message.
func (n *Notifier) Send(ctx context.Context, tenantID uuid.UUID, kind, to string, data Data) error {
	msg, err := n.Compose(ctx, tenantID, kind, to, data)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, msg)
}

// SendBatch delivers every message through the notifier's mailer.
func (n *Notifier) SendBatch(ctx context.Context, msgs []*Message) error {
	return SendBatch(ctx, n.mailer, msgs)
}
