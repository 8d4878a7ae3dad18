// Package render turns catalog records into HTML service cards.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/ziadkadry99/catalogd/internal/catalog"
	"go.uber.org/zap"
)

// Rendered is broadcast after every successful Render.
type Rendered struct {
	Keys  []string
	Cards []catalog.Card
	Count int
	At    time.Time
}

// cardView is a normalized card plus its description converted to HTML.
type cardView struct {
	catalog.Card
	DescriptionHTML template.HTML
}

// Renderer projects services into card markup. It is safe for concurrent use.
type Renderer struct {
	md   goldmark.Markdown
	tmpl *template.Template

	mu        sync.Mutex
	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func(Rendered)
}

// New parses the card templates.
func New() (*Renderer, error) {
	// Raw HTML in descriptions is dropped, not passed through.
	md := goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	)

	tmpl, err := template.New("render").Funcs(template.FuncMap{
		"emptyMessage": func() string { return EmptyMessage },
		"toJSON": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}).Parse(cardsTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing card templates: %w", err)
	}
	return &Renderer{md: md, tmpl: tmpl}, nil
}

// OnRendered registers fn to run after each render, in registration order.
// The returned func removes it.
func (r *Renderer) OnRendered(fn func(Rendered)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, listener{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, l := range r.listeners {
			if l.id == id {
				r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
				return
			}
		}
	}
}

// Render writes one card per named service, or the empty placeholder, and
// then notifies listeners with the rendered card keys.
func (r *Renderer) Render(w io.Writer, services []catalog.Service) error {
	cards := catalog.NormalizeAll(services)
	views := make([]cardView, len(cards))
	keys := make([]string, len(cards))
	for i, c := range cards {
		views[i] = r.view(c)
		keys[i] = Key(c)
	}

	if err := r.tmpl.ExecuteTemplate(w, "cards", views); err != nil {
		return fmt.Errorf("rendering cards: %w", err)
	}

	r.emit(Rendered{Keys: keys, Cards: cards, Count: len(cards), At: time.Now()})
	return nil
}

// RenderDetail writes the expanded view of one card.
func (r *Renderer) RenderDetail(w io.Writer, card catalog.Card) error {
	if err := r.tmpl.ExecuteTemplate(w, "detail", r.view(card)); err != nil {
		return fmt.Errorf("rendering detail: %w", err)
	}
	return nil
}

// Key identifies a card across renders: its id, or its name for records
// that predate ids.
func Key(c catalog.Card) string {
	if c.ID != "" {
		return c.ID
	}
	return c.Name
}

func (r *Renderer) view(c catalog.Card) cardView {
	v := cardView{Card: c}
	if c.Description == "" {
		return v
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(c.Description), &buf); err != nil {
		zap.L().Warn("converting description", zap.String("service", c.Name), zap.Error(err))
		v.DescriptionHTML = template.HTML("<p>" + template.HTMLEscapeString(c.Description) + "</p>")
		return v
	}
	v.DescriptionHTML = template.HTML(buf.String())
	return v
}

func (r *Renderer) emit(ev Rendered) {
	r.mu.Lock()
	ls := append([]listener(nil), r.listeners...)
	r.mu.Unlock()
	for _, l := range ls {
		l.fn(ev)
	}
}
