package templates

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	htmpl "html/template"
	"reflect"
	"strings"
	"sync"
	texttpl "text/template"
	"time"
)

//go:embed *.tmpl
var FS embed.FS

// Universal is the one layout on disk. Every account email renders through
// it and the Kind in the data picks the copy.
const Universal = "universal"

// Kind names one account email. The value travels as Data["Type"].
type Kind string

const (
	LoginNotification Kind = "login_notification"
	ForgotPassword    Kind = "forgot_password"
	PasswordChanged   Kind = "password_changed"
	ProfileUpdated    Kind = "profile_updated"
)

type kindCopy struct {
	subject  string // %s takes the app name
	headline string
	security bool
}

var kinds = map[Kind]kindCopy{
	LoginNotification: {subject: "New login to your %s", headline: "New sign-in to your account", security: true},
	ForgotPassword:    {subject: "Reset your password", headline: "Password reset requested", security: true},
	PasswordChanged:   {subject: "Your password was changed", headline: "Your password was changed", security: true},
	ProfileUpdated:    {subject: "Your profile was updated", headline: "Profile details updated"},
}

// ParseKind accepts any casing. ok is false for names this package does not
// render.
func ParseKind(s string) (k Kind, ok bool) {
	k = Kind(strings.ToLower(strings.TrimSpace(s)))
	_, ok = kinds[k]
	return k, ok
}

// Subject is the subject line for k. An empty appName reads as "account".
func (k Kind) Subject(appName string) string {
	c, ok := kinds[k]
	if !ok {
		return "Notification"
	}
	if !strings.Contains(c.subject, "%s") {
		return c.subject
	}
	if strings.TrimSpace(appName) == "" {
		appName = "account"
	}
	return fmt.Sprintf(c.subject, appName)
}

func (k Kind) Headline() string { return kinds[k].headline }

// Security reports whether the email tells the user what to do if the
// action was not theirs.
func (k Kind) Security() bool { return kinds[k].security }

// Brand is the sender identity printed in every footer.
type Brand struct {
	CompanyName    string `json:"CompanyName"`
	CompanyAddress string `json:"CompanyAddress"`
	AppName        string `json:"AppName"`
	LogoURL        string `json:"LogoURL"`
	SupportURL     string `json:"SupportURL"`
	PrivacyURL     string `json:"PrivacyURL"`
	UnsubscribeURL string `json:"UnsubscribeURL"`
}

// Device is where an account action came from. Location is filled by the
// worker from IP when the producer left it empty.
type Device struct {
	IP        string `json:"IP"`
	UserAgent string `json:"UserAgent"`
	Location  string `json:"Location"`
}

// EmailData is what the universal layout reads. It crosses the queue as a
// flat JSON object inside EmailJob.Data, so the JSON names are the contract
// between the API and the email worker.
type EmailData struct {
	Kind           Kind   `json:"Type"`
	Subject        string `json:"Subject"`
	Headline       string `json:"Headline"`
	SecurityNotice bool   `json:"SecurityNotice"`

	Name           string `json:"Name"`
	Email          string `json:"Email"`
	RecipientEmail string `json:"RecipientEmail"`

	Brand
	Device

	// when the action happened; Time is the display form
	TimeAt time.Time `json:"TimeAt"`
	Time   string    `json:"Time"`

	ResetURL      string    `json:"ResetURL"`
	ExpiresAt     time.Time `json:"ExpiresAt"`
	ExpiresAtText string    `json:"ExpiresAtText"`

	// field label -> new value, profile_updated only
	Changes map[string]string `json:"Changes"`
}

// Map flattens d into the form EmailJob.Data carries.
func (d EmailData) Map() map[string]any {
	b, err := json.Marshal(d)
	if err != nil {
		return map[string]any{"Type": string(d.Kind)}
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

// fallback backs the "default" pipe: {{ .Time | default "-" }}.
func fallback(def, v any) any {
	if v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	}
	if rv := reflect.ValueOf(v); !rv.IsValid() || rv.IsZero() {
		return def
	}
	return v
}

var funcs = map[string]any{
	"default": fallback,
	"upper":   strings.ToUpper,
	"formatTime": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}

// layout is one parsed <name>.{subject,text,html}.tmpl triple.
type layout struct {
	subject *texttpl.Template
	text    *texttpl.Template
	html    *htmpl.Template
}

var (
	layoutsMu sync.Mutex
	layouts   = map[string]*layout{}
)

func loadLayout(name string) (*layout, error) {
	layoutsMu.Lock()
	defer layoutsMu.Unlock()
	if l, ok := layouts[name]; ok {
		return l, nil
	}

	var (
		l   layout
		err error
	)
	if l.subject, err = texttpl.New(name+".subject.tmpl").Funcs(funcs).ParseFS(FS, name+".subject.tmpl"); err != nil {
		return nil, fmt.Errorf("parse %s subject: %w", name, err)
	}
	if l.text, err = texttpl.New(name+".text.tmpl").Funcs(funcs).ParseFS(FS, name+".text.tmpl"); err != nil {
		return nil, fmt.Errorf("parse %s text: %w", name, err)
	}
	if l.html, err = htmpl.New(name+".html.tmpl").Funcs(funcs).ParseFS(FS, name+".html.tmpl"); err != nil {
		return nil, fmt.Errorf("parse %s html: %w", name, err)
	}
	layouts[name] = &l
	return &l, nil
}

// Render produces the subject, plain text and html bodies of layout name.
// Templates are parsed once per name.
func Render(name string, data any) (subject, text, html string, err error) {
	l, err := loadLayout(name)
	if err != nil {
		return "", "", "", err
	}
	var buf bytes.Buffer
	if err := l.subject.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("exec %s subject: %w", name, err)
	}
	subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := l.text.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("exec %s text: %w", name, err)
	}
	text = buf.String()

	buf.Reset()
	if err := l.html.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("exec %s html: %w", name, err)
	}
	return subject, text, buf.String(), nil
}
