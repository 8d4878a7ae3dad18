// Package site serves the public services page. Cards are rendered on the
// server; a small script keeps an open page current by listening on the
// catalog websocket and swapping in a freshly rendered fragment.
package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/catalogd/internal/catalog"
	"github.com/ziadkadry99/catalogd/internal/render"
	"go.uber.org/zap"
)

// Paths served by the site.
const (
	FragmentPath = "/services/fragment"
	DetailPrefix = "/services/detail/"
)

// Source supplies the services to show. It must not fail; an empty list
// renders the placeholder.
type Source interface {
	Services(ctx context.Context) []catalog.Service
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) []catalog.Service

// Services calls f.
func (f SourceFunc) Services(ctx context.Context) []catalog.Service { return f(ctx) }

// StoreSource lists the available services of a server-mode store.
func StoreSource(store *catalog.Store) Source {
	return SourceFunc(func(ctx context.Context) []catalog.Service {
		services, err := store.List(ctx, catalog.ListFilter{Status: catalog.StatusAvailable})
		if err != nil {
			zap.L().Warn("listing services for site", zap.Error(err))
			return []catalog.Service{}
		}
		return services
	})
}

// Options configures a Site.
type Options struct {
	Title string
	// SocketPath is the websocket endpoint the page listens on. Empty
	// disables live refresh.
	SocketPath string
}

// Site renders the public services page.
type Site struct {
	source   Source
	renderer *render.Renderer
	bindings *render.Bindings
	page     *template.Template
	opts     Options
	detach   func()
}

type pageData struct {
	Title        string
	Cards        template.HTML
	SocketPath   string
	FragmentPath string
	DetailPrefix string
	Style        template.CSS
	Script       template.JS
}

// New creates a Site. Every render rebinds the detail handlers for the cards
// it produced.
func New(source Source, renderer *render.Renderer, opts Options) (*Site, error) {
	if opts.Title == "" {
		opts.Title = "Our Services"
	}
	page, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}
	s := &Site{
		source:   source,
		renderer: renderer,
		bindings: render.NewBindings(),
		page:     page,
		opts:     opts,
	}
	s.detach = renderer.OnRendered(s.rebind)
	return s, nil
}

// Close stops listening for renders.
func (s *Site) Close() { s.detach() }

// Bindings exposes the detail handler registry.
func (s *Site) Bindings() *render.Bindings { return s.bindings }

// RegisterRoutes mounts the page, the fragment and the detail views.
func (s *Site) RegisterRoutes(r chi.Router) {
	r.Get("/", s.handlePage)
	r.Get("/services", s.handlePage)
	r.Get(FragmentPath, s.handleFragment)
	r.Get(DetailPrefix+"{key}", s.handleDetail)
}

// Cards renders the current card list.
func (s *Site) Cards(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, s.source.Services(ctx)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Site) handlePage(w http.ResponseWriter, r *http.Request) {
	cards, err := s.Cards(r.Context())
	if err != nil {
		zap.L().Error("rendering services page", zap.Error(err))
		http.Error(w, "Unable to load services. Please try again later.", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:        s.opts.Title,
		Cards:        template.HTML(cards),
		SocketPath:   s.opts.SocketPath,
		FragmentPath: FragmentPath,
		DetailPrefix: DetailPrefix,
		Style:        template.CSS(styleContent),
		Script:       template.JS(scriptContent),
	}
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		zap.L().Error("executing page template", zap.Error(err))
		http.Error(w, "Unable to load services. Please try again later.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Site) handleFragment(w http.ResponseWriter, r *http.Request) {
	cards, err := s.Cards(r.Context())
	if err != nil {
		zap.L().Error("rendering services fragment", zap.Error(err))
		http.Error(w, "Unable to load services.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(cards)
}

func (s *Site) handleDetail(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h, ok := s.bindings.Lookup(key)
	if !ok {
		http.Error(w, "Service not found", http.StatusNotFound)
		return
	}
	h.ServeHTTP(w, r)
}

// rebind replaces the detail handler of every rendered card and drops
// handlers of cards that are gone.
func (s *Site) rebind(ev render.Rendered) {
	handlers := make(map[string]http.Handler, len(ev.Cards))
	for i, card := range ev.Cards {
		handlers[ev.Keys[i]] = s.detailHandler(card)
	}
	s.bindings.Replace(handlers)
}

func (s *Site) detailHandler(card catalog.Card) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := s.renderer.RenderDetail(&buf, card); err != nil {
			zap.L().Error("rendering service detail", zap.String("service", card.Name), zap.Error(err))
			http.Error(w, "Unable to load service.", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	})
}
