package dispatch

import (
	"bytes"
	"encoding/json"
	"net/url"
	"text/template"
)

var templateFuncs = template.FuncMap{
	"queryescape": url.QueryEscape,
	"json":        toJSON,
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

type templateContext struct {
	Run          *templateRun
	Env          map[string]string
	Notification *templateNotification
}

type templateRun struct {
	ID  string
	Job string
}

type templateNotification struct {
	Registry   string
	EventType  string
	Repository string
	Namespace  string
	Tag        string
	Digest     string
	Pusher     string
	Host       string
}

func newTemplateContext(b *TriggeredBuild) *templateContext {
	n := b.Notification

	return &templateContext{
		Run: &templateRun{
			ID:  b.Run.ID(),
			Job: b.Run.Parent(),
		},
		Env: b.Environment(),
		Notification: &templateNotification{
			Registry:   string(n.Registry()),
			EventType:  n.EventRawType(),
			Repository: n.RepoName(),
			Namespace:  n.Namespace(),
			Tag:        n.Tag(),
			Digest:     n.Digest(),
			Pusher:     n.Pusher(),
			Host:       n.Host(),
		},
	}
}

func renderFunc(b *TriggeredBuild) func(in string) (string, error) {
	templCtx := newTemplateContext(b)

	return func(text string) (string, error) {
		templ, err := template.New("action").Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
		if err != nil {
			return "", err
		}

		var out bytes.Buffer

		if err := templ.Execute(&out, templCtx); err != nil {
			return "", err
		}

		return out.String(), nil
	}
}
