package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"wanderlust/internal/domain"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("malformed request body")

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// fields flattens a form or JSON body into name -> value. JSON bodies may
// nest the payload under group ({"listing": {...}}) or send it flat.
func fields(w http.ResponseWriter, r *http.Request, group string) (map[string]string, error) {
	if isJSON(r) {
		return jsonFields(io.LimitReader(r.Body, maxBodyBytes), group)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadBody, err)
	}
	out := map[string]string{}
	prefix := group + "["
	for k := range r.PostForm {
		if !strings.Contains(k, "[") {
			out[k] = r.PostForm.Get(k)
		}
	}
	// bracketed keys win over plain ones
	for k := range r.PostForm {
		if strings.HasPrefix(k, prefix) && strings.HasSuffix(k, "]") {
			out[k[len(prefix):len(k)-1]] = r.PostForm.Get(k)
		}
	}
	return out, nil
}

func jsonFields(body io.Reader, group string) (map[string]string, error) {
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadBody, err)
	}
	if inner, ok := raw[group].(map[string]any); ok {
		raw = inner
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		}
	}
	return out, nil
}

// decodeListing returns the input plus the raw values for re-rendering.
// A price that is present but not a number is a validation error.
func decodeListing(w http.ResponseWriter, r *http.Request) (domain.ListingInput, listingForm, error) {
	f, err := fields(w, r, "listing")
	if err != nil {
		return domain.ListingInput{}, listingForm{}, err
	}
	form := listingForm{
		Title:       f["title"],
		Description: f["description"],
		Price:       strings.TrimSpace(f["price"]),
		Image:       f["image"],
		Location:    f["location"],
	}
	in := domain.ListingInput{
		Title:       form.Title,
		Description: form.Description,
		Image:       form.Image,
		Location:    form.Location,
	}
	if form.Price != "" {
		p, err := strconv.ParseFloat(strings.ReplaceAll(form.Price, ",", ""), 64)
		if err != nil || math.IsInf(p, 0) || math.IsNaN(p) {
			return in, form, &domain.ValidationError{Fields: map[string]string{"price": "must be a number"}}
		}
		in.Price = &p
	}
	return in, form, nil
}

func decodeReview(w http.ResponseWriter, r *http.Request) (domain.ReviewInput, reviewForm, error) {
	f, err := fields(w, r, "review")
	if err != nil {
		return domain.ReviewInput{}, reviewForm{}, err
	}
	form := reviewForm{Rating: strings.TrimSpace(f["rating"]), Comment: f["comment"]}
	in := domain.ReviewInput{Comment: form.Comment}
	if form.Rating != "" {
		n, err := strconv.Atoi(form.Rating)
		if err != nil {
			return in, form, &domain.ValidationError{Fields: map[string]string{"rating": "must be between 1 and 5"}}
		}
		in.Rating = n
	}
	return in, form, nil
}

// decodeCredentials accepts user[email]/user[password] or plain email/password.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (email, password string, err error) {
	f, err := fields(w, r, "user")
	if err != nil {
		return "", "", err
	}
	return f["email"], f["password"], nil
}
