package httpserver

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"wanderlust/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = []string{"index", "new", "show", "edit", "about", "signup", "login", "notfound", "error"}

// page is the data every template receives.
type page struct {
	Title    string
	Listings []domain.Listing
	Detail   domain.ListingDetail
	Form     listingForm
	Review   reviewForm
	Email    string
	Errors   map[string]string
	Error    string
}

// listingForm echoes submitted values back into a re-rendered form.
type listingForm struct {
	Title, Description, Price, Image, Location string
}

type reviewForm struct {
	Rating, Comment string
}

func formFromListing(l domain.Listing) listingForm {
	return listingForm{
		Title:       l.Title,
		Description: l.Description,
		Price:       strconv.FormatFloat(l.Price, 'f', -1, 64),
		Image:       l.Image,
		Location:    l.Location,
	}
}

type views struct{ t map[string]*template.Template }

var funcs = template.FuncMap{
	"price": formatPrice,
	"date":  func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"stars": func(n int) string {
		if n < 0 {
			n = 0
		}
		return strings.Repeat("★", n) + strings.Repeat("☆", max(0, 5-n))
	},
}

func loadViews() (*views, error) {
	v := &views{t: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		v.t[name] = t
	}
	return v, nil
}

// render buffers the page; a template error becomes a plain 500.
func (v *views) render(w http.ResponseWriter, status int, name string, p page) {
	t, ok := v.t[name]
	if !ok {
		log.Error().Str("view", name).Msg("unknown view")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		log.Error().Err(err).Str("view", name).Msg("render failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debug().Err(err).Str("view", name).Msg("write page failed")
	}
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// formatPrice renders 1500 as "1,500" and 12.5 as "12.50".
func formatPrice(p float64) string {
	whole, frac, _ := strings.Cut(strconv.FormatFloat(p, 'f', 2, 64), ".")
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "00" {
		b.WriteString("." + frac)
	}
	return b.String()
}
