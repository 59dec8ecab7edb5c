package pages

import (
	"bytes"
	"embed"
	"html/template"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/samueltorres/hitcounter/pkg/site"
)

//go:embed templates/*.html
var templateFS embed.FS

// CountPage is the data shown after a visit was counted.
type CountPage struct {
	Visits int64
}

// Ordinal renders the visit number as "1st", "22nd" and so on.
func (p CountPage) Ordinal() string {
	return humanize.Ordinal(int(p.Visits))
}

type Renderer struct {
	templates *template.Template
}

func New() (*Renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "error parsing page templates")
	}
	return &Renderer{templates: t}, nil
}

// Landing writes the landing page. Nothing is written to w if rendering fails.
func (r *Renderer) Landing(w io.Writer, s site.Settings) error {
	return r.render(w, "landing", s)
}

// Count writes the visit count page. Nothing is written to w if rendering fails.
func (r *Renderer) Count(w io.Writer, p CountPage) error {
	return r.render(w, "count", p)
}

func (r *Renderer) render(w io.Writer, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return errors.Wrapf(err, "error rendering %s page", name)
	}
	_, err := buf.WriteTo(w)
	return err
}
