package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	httpserver "wanderlust/internal/adapters/http_server"
	"wanderlust/internal/adapters/password"
	"wanderlust/internal/app"
	"wanderlust/internal/domain"
	"wanderlust/internal/storage/memory"
)

type downPinger struct{}

func (downPinger) Ping(context.Context) error {
	return domain.Unavailable("ping", errors.New("connection refused"))
}

func newRouter(t *testing.T, pinger httpserver.Pinger) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	if pinger == nil {
		pinger = store
	}
	srv := httpserver.New(httpserver.Options{})
	err := srv.MountHandlers(&httpserver.Handlers{
		Listings: app.NewListingService(store, nil, time.Minute),
		Accounts: app.NewAccountService(store, password.Bcrypt{Cost: bcrypt.MinCost}),
		Store:    pinger,
	})
	if err != nil {
		t.Fatalf("MountHandlers: %v", err)
	}
	return srv.Mux(), store
}

func do(h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func doJSON(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func expectRedirect(t *testing.T, rr *httptest.ResponseRecorder, to string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != to {
		t.Fatalf("expected redirect to %s, got %s", to, loc)
	}
}

func cabinForm() url.Values {
	return url.Values{
		"listing[title]":       {"Cabin"},
		"listing[description]": {"Cozy"},
		"listing[price]":       {"100"},
		"listing[location]":    {"Hills"},
	}
}

func onlyListingID(t *testing.T, store *memory.Store) string {
	t.Helper()
	ls, _ := store.ListListings(context.Background())
	if len(ls) != 1 {
		t.Fatalf("expected one listing, got %d", len(ls))
	}
	return ls[0].ID
}

func TestListingReviewDeleteFlow(t *testing.T) {
	h, store := newRouter(t, nil)

	expectRedirect(t, do(h, http.MethodPost, "/listings", cabinForm()), "/listings")
	id := onlyListingID(t, store)

	rr := do(h, http.MethodGet, "/listings", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Cabin") {
		t.Fatalf("index: %d", rr.Code)
	}

	expectRedirect(t, do(h, http.MethodPost, "/listings/"+id+"/review", url.Values{
		"review[rating]":  {"5"},
		"review[comment]": {"Great"},
	}), "/listings/"+id)

	rr = do(h, http.MethodGet, "/listings/"+id, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Great") {
		t.Fatalf("show: %d, body lacks review", rr.Code)
	}
	if store.ReviewCount() != 1 {
		t.Fatalf("expected 1 review, got %d", store.ReviewCount())
	}

	expectRedirect(t, do(h, http.MethodPost, "/listings/"+id+"?_method=DELETE", url.Values{}), "/listings")

	if rr := do(h, http.MethodGet, "/listings/"+id, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
	if store.ReviewCount() != 0 {
		t.Fatalf("reviews must be cascaded, have %d", store.ReviewCount())
	}
}

func TestCreateListing_Invalid(t *testing.T) {
	h, store := newRouter(t, nil)

	for name, mutate := range map[string]func(url.Values){
		"missing title":  func(v url.Values) { v.Del("listing[title]") },
		"negative price": func(v url.Values) { v.Set("listing[price]", "-1") },
		"text price":     func(v url.Values) { v.Set("listing[price]", "cheap") },
		"infinite price": func(v url.Values) { v.Set("listing[price]", "Inf") },
		"NaN price":      func(v url.Values) { v.Set("listing[price]", "NaN") },
		"blank location": func(v url.Values) { v.Set("listing[location]", "   ") },
	} {
		t.Run(name, func(t *testing.T) {
			form := cabinForm()
			mutate(form)
			rr := do(h, http.MethodPost, "/listings", form)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
	if ls, _ := store.ListListings(context.Background()); len(ls) != 0 {
		t.Fatalf("no listing should be stored, got %d", len(ls))
	}
}

func TestCreateListing_JSONAndDefaultImage(t *testing.T) {
	h, store := newRouter(t, nil)
	rr := doJSON(h, http.MethodPost, "/listings",
		`{"listing":{"title":"Loft","description":"Bright","price":250,"location":"Downtown"}}`)
	expectRedirect(t, rr, "/listings")

	ls, _ := store.ListListings(context.Background())
	if len(ls) != 1 || ls[0].Price != 250 || ls[0].Image != domain.DefaultListingImage {
		t.Fatalf("unexpected stored listing: %+v", ls)
	}
}

func TestUpdateListing_FormFieldOverride(t *testing.T) {
	h, store := newRouter(t, nil)
	expectRedirect(t, do(h, http.MethodPost, "/listings", cabinForm()), "/listings")
	id := onlyListingID(t, store)

	if rr := do(h, http.MethodGet, "/listings/"+id+"/edit", nil); rr.Code != http.StatusOK {
		t.Fatalf("edit form: %d", rr.Code)
	}

	form := cabinForm()
	form.Set("listing[title]", "Big Cabin")
	form.Set("_method", "PUT")
	expectRedirect(t, do(h, http.MethodPost, "/listings/"+id, form), "/listings/"+id)

	d, _ := store.FindListingByID(context.Background(), id)
	if d.Title != "Big Cabin" {
		t.Fatalf("title not updated: %q", d.Title)
	}

	form.Set("listing[price]", "-3")
	if rr := do(h, http.MethodPost, "/listings/"+id, form); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if rr := do(h, http.MethodPut, "/listings/missing", cabinForm()); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestMissingListingPages(t *testing.T) {
	h, store := newRouter(t, nil)
	review := url.Values{"review[rating]": {"5"}, "review[comment]": {"Great"}}

	for _, tc := range []struct {
		method, path string
		form         url.Values
	}{
		{http.MethodGet, "/listings/nope", nil},
		{http.MethodGet, "/listings/nope/edit", nil},
		{http.MethodDelete, "/listings/nope", nil},
		{http.MethodPost, "/listings/nope/review", review},
		{http.MethodGet, "/no/such/page", nil},
	} {
		if rr := do(h, tc.method, tc.path, tc.form); rr.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, rr.Code)
		}
	}
	if store.ReviewCount() != 0 {
		t.Fatalf("no review should be stored")
	}
}

func TestAddReview_Invalid(t *testing.T) {
	h, store := newRouter(t, nil)
	expectRedirect(t, do(h, http.MethodPost, "/listings", cabinForm()), "/listings")
	id := onlyListingID(t, store)

	for _, rating := range []string{"0", "6", "x", ""} {
		rr := do(h, http.MethodPost, "/listings/"+id+"/review", url.Values{
			"review[rating]":  {rating},
			"review[comment]": {"ok"},
		})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("rating %q: expected 400, got %d", rating, rr.Code)
		}
	}
	rr := do(h, http.MethodPost, "/listings/"+id+"/review", url.Values{
		"review[rating]":  {"4"},
		"review[comment]": {"   "},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank comment: expected 400, got %d", rr.Code)
	}
	if store.ReviewCount() != 0 {
		t.Fatalf("invalid reviews must not be stored")
	}
}

func TestSignupAndLogin(t *testing.T) {
	h, store := newRouter(t, nil)

	expectRedirect(t, do(h, http.MethodPost, "/signup", url.Values{
		"user[email]":    {"A@Example.com "},
		"user[password]": {"pw1"},
	}), "/login")

	rr := do(h, http.MethodPost, "/signup", url.Values{
		"user[email]":    {"a@example.com"},
		"user[password]": {"pw2"},
	})
	if rr.Code != http.StatusConflict || !strings.Contains(rr.Body.String(), "Email already used.") {
		t.Fatalf("duplicate signup: %d", rr.Code)
	}
	if got := store.UserEmails(); len(got) != 1 {
		t.Fatalf("expected one user, got %v", got)
	}

	if rr := do(h, http.MethodPost, "/signup", url.Values{"email": {"not-an-email"}, "password": {"x"}}); rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid signup: expected 400, got %d", rr.Code)
	}

	long := url.Values{"user[email]": {"long@example.com"}, "user[password]": {strings.Repeat("p", domain.MaxPasswordBytes+1)}}
	if rr := do(h, http.MethodPost, "/signup", long); rr.Code != http.StatusBadRequest {
		t.Fatalf("overlong password: expected 400, got %d", rr.Code)
	}
	if got := store.UserEmails(); len(got) != 1 {
		t.Fatalf("overlong password must not create a user, got %v", got)
	}

	expectRedirect(t, do(h, http.MethodPost, "/login", url.Values{
		"user[email]":    {"a@example.com"},
		"user[password]": {"pw1"},
	}), "/listings")

	for _, creds := range []url.Values{
		{"user[email]": {"a@example.com"}, "user[password]": {"wrong"}},
		{"user[email]": {"nobody@example.com"}, "user[password]": {"pw1"}},
	} {
		rr := do(h, http.MethodPost, "/login", creds)
		if rr.Code != http.StatusUnauthorized || !strings.Contains(rr.Body.String(), "Invalid credentials.") {
			t.Fatalf("bad login: %d", rr.Code)
		}
	}

	rr = doJSON(h, http.MethodPost, "/login", `{"user":{"email":"a@example.com","password":"pw1"}}`)
	expectRedirect(t, rr, "/listings")
}

func TestStaticPages(t *testing.T) {
	h, _ := newRouter(t, nil)
	for _, p := range []string{"/", "/listings/new", "/about", "/signup", "/login", "/static/style.css"} {
		if rr := do(h, http.MethodGet, p, nil); rr.Code != http.StatusOK {
			t.Fatalf("GET %s: %d", p, rr.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		pinger httpserver.Pinger
		code   int
		status string
	}{
		{"up", nil, http.StatusOK, "ok"},
		{"down", downPinger{}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newRouter(t, tt.pinger)
			rr := do(h, http.MethodGet, "/health", nil)
			if rr.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rr.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.status {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}
