package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/deusflow/rundown/internal/news"
	"github.com/deusflow/rundown/internal/subscriber"
)

const (
	DefaultPreferencesBaseURL = "https://giridharrnair.github.io/YourDailyRundown"
	DefaultUnsubscribeBaseURL = "https://yourdailyrundown.azurewebsites.net"
)

// DefaultLabels maps API category names to display names.
var DefaultLabels = map[string]string{
	"realestate": "Real Estate",
	"nyregion":   "New York Region",
	"us":         "U.S.",
}

const emailTemplate = `<p>Hey {{.FirstName}} {{.LastName}}, here is YourDailyRundown!</p>
{{range .Sections}}<h2>{{.Heading}}</h2>

{{range .Articles}}<a href="{{.URL}}">{{.Title}}</a><br/>{{.Content}}<br/><br/>
{{end}}{{end}}
<p>Interested in customizing your experience? Click here to update your preferences and name:
<a href="{{.PreferencesURL}}">Update Preferences</a>.
Rest assured, you won't receive duplicate emails, and all your changes will be seamlessly recorded.</p>

<a href="{{.UnsubscribeURL}}">Want to unsubscribe?</a>
`

type section struct {
	Heading  string
	Articles []news.Article
}

type view struct {
	FirstName      string
	LastName       string
	Sections       []section
	PreferencesURL string
	UnsubscribeURL string
}

// Renderer builds the HTML body of one subscriber's email.
type Renderer struct {
	tmpl           *template.Template
	labels         map[string]string
	preferencesURL string
	unsubscribeURL string
	caser          cases.Caser
}

// NewRenderer merges labels over DefaultLabels. Empty base URLs use the
// defaults.
func NewRenderer(preferencesBaseURL, unsubscribeBaseURL string, labels map[string]string) *Renderer {
	if preferencesBaseURL == "" {
		preferencesBaseURL = DefaultPreferencesBaseURL
	}
	if unsubscribeBaseURL == "" {
		unsubscribeBaseURL = DefaultUnsubscribeBaseURL
	}
	merged := make(map[string]string, len(DefaultLabels)+len(labels))
	for k, v := range DefaultLabels {
		merged[k] = v
	}
	for k, v := range labels {
		merged[k] = v
	}
	return &Renderer{
		tmpl:           template.Must(template.New("digest").Parse(emailTemplate)),
		labels:         merged,
		preferencesURL: strings.TrimRight(preferencesBaseURL, "/"),
		unsubscribeURL: strings.TrimRight(unsubscribeBaseURL, "/"),
		caser:          cases.Title(language.English, cases.NoLower),
	}
}

// Heading returns the display heading for category. Labels keep their
// own casing; raw category names are title-cased from lower case.
func (r *Renderer) Heading(category string) string {
	label, ok := r.labels[category]
	if !ok {
		label = strings.ToLower(category)
	}
	return r.caser.String(label)
}

// Render lists the subscriber's categories in their stored order. A
// category with no articles still gets its heading.
func (r *Renderer) Render(sub subscriber.Subscriber, d news.Digest) (string, error) {
	v := view{
		FirstName:      sub.FirstName,
		LastName:       sub.LastName,
		PreferencesURL: fmt.Sprintf("%s/%s/", r.preferencesURL, sub.ID),
		UnsubscribeURL: fmt.Sprintf("%s/%s/unsubscribe", r.unsubscribeURL, sub.ID),
	}
	for _, category := range sub.Categories {
		v.Sections = append(v.Sections, section{
			Heading:  r.Heading(category),
			Articles: d[category],
		})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

// Subject is the email subject for the given day.
func Subject(day time.Time) string {
	return "Your Daily Rundown - " + day.Format("2006-01-02")
}
