package app

import (
	"math"
	"strconv"
	"strings"

	"wanderlust/internal/domain"
)

/********** alias registry for seed fixtures **********/

var listingAliases = map[string][]string{
	"title":       {"title", "name", "listing.title"},
	"description": {"description", "summary", "listing.description"},
	"image":       {"image", "image.url", "imageUrl", "image_url", "listing.image"},
	"location":    {"location", "city", "address.city", "listing.location"},
	"country":     {"country", "address.country"},
	"price":       {"price", "price.value", "rate", "listing.price"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the trimmed string at path or "".
func lookupStr(m map[string]any, path string) string {
	if s, ok := lookupAny(m, path).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// firstNonEmpty: first non-empty string for a named alias set.
func firstNonEmpty(m map[string]any, key string) string {
	for _, p := range listingAliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "1,200").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
				return &f
			}
		}
	}
	return nil
}

// firstImage accepts image strings, {url: ...} objects and arrays of either.
func firstImage(m map[string]any) string {
	if s := firstNonEmpty(m, "image"); s != "" {
		return s
	}
	raw, ok := lookupAny(m, "images").([]any)
	if !ok {
		return ""
	}
	for _, it := range raw {
		switch t := it.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case map[string]any:
			if s := lookupStr(t, "url"); s != "" {
				return s
			}
		}
	}
	return ""
}

/********** listing mapper **********/

func mapListing(raw map[string]any) domain.ListingInput {
	loc := firstNonEmpty(raw, "location")
	if country := firstNonEmpty(raw, "country"); country != "" && !strings.Contains(loc, country) {
		if loc == "" {
			loc = country
		} else {
			loc = loc + ", " + country
		}
	}
	return domain.ListingInput{
		Title:       firstNonEmpty(raw, "title"),
		Description: firstNonEmpty(raw, "description"),
		Price:       getFloatFlexible(raw, listingAliases["price"]...),
		Image:       firstImage(raw),
		Location:    loc,
	}
}
