package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"wanderlust/internal/app"
	"wanderlust/internal/domain"
)

const (
	msgEmailUsed   = "Email already used."
	msgInvalidCred = "Invalid credentials."
	msgUnavailable = "The service is temporarily unavailable. Please try again shortly."
)

// Pinger reports whether the entity store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Listings *app.ListingService
	Accounts *app.AccountService
	Store    Pinger

	views *views
}

// MountHandlers registers every page route. It fails only when the embedded
// templates do not parse.
func (s *Server) MountHandlers(h *Handlers) error {
	v, err := loadViews()
	if err != nil {
		return err
	}
	h.views = v

	s.mux.Get("/health", h.health)
	s.mux.Handle("/static/*", staticHandler())

	s.mux.Get("/", h.index)
	s.mux.Route("/listings", func(r chi.Router) {
		r.Get("/", h.index)
		r.Post("/", h.create)
		r.Get("/new", h.newForm)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.show)
			r.Get("/edit", h.editForm)
			r.Put("/", h.update)
			r.Patch("/", h.update)
			r.Delete("/", h.destroy)
			r.Post("/review", h.addReview)
			r.Post("/reviews", h.addReview)
		})
	})
	s.mux.Get("/about", h.about)
	s.mux.Get("/signup", h.signupForm)
	s.mux.Post("/signup", h.signup)
	s.mux.Get("/login", h.loginForm)
	s.mux.Post("/login", h.login)

	s.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.views.render(w, http.StatusNotFound, "notfound", page{Title: "Not found"})
	})
	return nil
}

// ---- listings ----

func (h *Handlers) index(w http.ResponseWriter, r *http.Request) {
	ls, err := h.Listings.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.views.render(w, http.StatusOK, "index", page{Title: "All listings", Listings: ls})
}

func (h *Handlers) newForm(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, http.StatusOK, "new", page{Title: "New listing"})
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	in, form, err := decodeListing(w, r)
	if err == nil {
		_, err = h.Listings.Create(r.Context(), in)
	}
	if fe, ok := invalid(err); ok {
		h.views.render(w, http.StatusBadRequest, "new", page{Title: "New listing", Form: form, Errors: fe})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/listings", http.StatusSeeOther)
}

func (h *Handlers) show(w http.ResponseWriter, r *http.Request) {
	d, err := h.Listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.views.render(w, http.StatusOK, "show", page{Title: d.Title, Detail: d})
}

func (h *Handlers) editForm(w http.ResponseWriter, r *http.Request) {
	d, err := h.Listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.views.render(w, http.StatusOK, "edit", page{Title: "Edit " + d.Title, Detail: d, Form: formFromListing(d.Listing)})
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in, form, err := decodeListing(w, r)
	if err == nil {
		_, err = h.Listings.Update(r.Context(), id, in)
	}
	if fe, ok := invalid(err); ok {
		p := page{Title: "Edit listing", Form: form, Errors: fe}
		p.Detail.ID = id
		h.views.render(w, http.StatusBadRequest, "edit", p)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/listings/"+id, http.StatusSeeOther)
}

func (h *Handlers) destroy(w http.ResponseWriter, r *http.Request) {
	res, err := h.Listings.DeleteCascade(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.CleanupErr != nil {
		log.Warn().Str("request_id", chimw.GetReqID(r.Context())).Str("listing", res.Listing.ID).
			Msg("listing removed with review cleanup pending")
	}
	http.Redirect(w, r, "/listings", http.StatusSeeOther)
}

func (h *Handlers) addReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in, form, err := decodeReview(w, r)
	if err == nil {
		_, err = h.Listings.AddReview(r.Context(), id, in)
	}
	if fe, ok := invalid(err); ok {
		d, gerr := h.Listings.Get(r.Context(), id)
		if gerr != nil {
			h.fail(w, r, gerr)
			return
		}
		h.views.render(w, http.StatusBadRequest, "show", page{Title: d.Title, Detail: d, Review: form, Errors: fe})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/listings/"+id, http.StatusSeeOther)
}

// ---- static pages ----

func (h *Handlers) about(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, http.StatusOK, "about", page{Title: "About"})
}

// ---- accounts ----

func (h *Handlers) signupForm(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, http.StatusOK, "signup", page{Title: "Sign up"})
}

func (h *Handlers) signup(w http.ResponseWriter, r *http.Request) {
	email, password, err := decodeCredentials(w, r)
	if err == nil {
		_, err = h.Accounts.Signup(r.Context(), email, password)
	}
	p := page{Title: "Sign up", Email: email}
	switch fe, isInvalid := invalid(err); {
	case err == nil:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case isInvalid:
		p.Errors = fe
		h.views.render(w, http.StatusBadRequest, "signup", p)
	case errors.Is(err, domain.ErrDuplicateEmail):
		p.Error = msgEmailUsed
		h.views.render(w, http.StatusConflict, "signup", p)
	default:
		h.fail(w, r, err)
	}
}

func (h *Handlers) loginForm(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, http.StatusOK, "login", page{Title: "Log in"})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	email, password, err := decodeCredentials(w, r)
	if err == nil {
		_, err = h.Accounts.Login(r.Context(), email, password)
	}
	switch {
	case err == nil:
		http.Redirect(w, r, "/listings", http.StatusSeeOther)
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.views.render(w, http.StatusUnauthorized, "login", page{Title: "Log in", Email: email, Error: msgInvalidCred})
	default:
		h.fail(w, r, err)
	}
}

// ---- health ----

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, body := http.StatusOK, map[string]string{"status": "ok", "storage": "up"}
	if err := h.Store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("health: storage ping failed")
		status, body = http.StatusServiceUnavailable, map[string]string{"status": "degraded", "storage": "down"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("write health response failed")
	}
}

// ---- errors ----

func invalid(err error) (map[string]string, bool) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Fields, true
	}
	return nil, false
}

// fail renders the page for err. Internal error text never reaches the client.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	ev := log.Error()
	status, p := http.StatusInternalServerError, page{Title: "Error"}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.views.render(w, http.StatusNotFound, "notfound", page{Title: "Not found"})
		return
	case errors.Is(err, errBadBody):
		status, p.Error = http.StatusBadRequest, "The submitted form could not be read."
		ev = log.Info()
	case errors.Is(err, domain.ErrStorageUnavailable):
		status, p.Error = http.StatusServiceUnavailable, msgUnavailable
		ev = log.Warn()
	}
	ev.Err(err).
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")
	h.views.render(w, status, "error", p)
}
