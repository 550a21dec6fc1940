// ABOUTME: Tests for the city capability against a fake Wikipedia server
// ABOUTME: Covers summary formatting, title variations, and not-found handling

package city

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestCapability(t *testing.T, handler http.HandlerFunc) *Capability {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func call(t *testing.T, c *Capability, args string) string {
	t.Helper()
	result, err := c.Operations()["get_city_info"](context.Background(), json.RawMessage(args))
	if err != nil {
		t.Fatalf("get_city_info: %v", err)
	}
	return result
}

func TestGetCityInfo_Success(t *testing.T) {
	c := newTestCapability(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Ankara" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "MultiDomainChatbot") {
			t.Errorf("missing user agent, got %q", ua)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"title":       "Ankara",
			"extract":     "Ankara is the capital of Turkey.",
			"coordinates": map[string]float64{"lat": 39.93, "lon": 32.85},
			"content_urls": map[string]any{
				"desktop": map[string]string{"page": "https://en.wikipedia.org/wiki/Ankara"},
			},
		})
	})

	result := call(t, c, `{"city_name":"ankara"}`)
	for _, want := range []string{"**Ankara**", "capital of Turkey", "39.9300", "Read more on Wikipedia"} {
		if !strings.Contains(result, want) {
			t.Errorf("result missing %q:\n%s", want, result)
		}
	}
}

func TestGetCityInfo_TitleVariationFallback(t *testing.T) {
	var paths []string
	c := newTestCapability(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/Springfield,_United_States" {
			json.NewEncoder(w).Encode(map[string]any{
				"title":   "Springfield, United States",
				"extract": "A city in the United States.",
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	result := call(t, c, `{"city_name":"springfield"}`)
	if !strings.Contains(result, "Springfield, United States") {
		t.Errorf("fallback variation not used:\n%s", result)
	}
	if len(paths) < 3 || paths[0] != "/Springfield" || paths[1] != "/Springfield_city" {
		t.Errorf("unexpected lookup order: %v", paths)
	}
}

func TestGetCityInfo_NotFound(t *testing.T) {
	c := newTestCapability(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	result := call(t, c, `{"city_name":"xyzzy"}`)
	if !strings.Contains(result, "couldn't find information about 'Xyzzy'") {
		t.Errorf("unexpected not-found message:\n%s", result)
	}
}

func TestGetCityInfo_ServerError(t *testing.T) {
	c := newTestCapability(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	result := call(t, c, `{"city_name":"Ankara"}`)
	if !strings.Contains(result, "encountered an error") {
		t.Errorf("unexpected error message:\n%s", result)
	}
}

func TestGetCityInfo_EmptyName(t *testing.T) {
	c := New("")
	result := call(t, c, `{"city_name":"  "}`)
	if result != "Please provide a valid city name." {
		t.Errorf("result = %q", result)
	}
}

func TestGetCityInfo_LongExtractTruncated(t *testing.T) {
	c := newTestCapability(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"title":   "Ankara",
			"extract": strings.Repeat("x", 600),
		})
	})

	result := call(t, c, `{"city_name":"Ankara"}`)
	if !strings.Contains(result, "...") {
		t.Error("long extract not truncated")
	}
	if strings.Contains(result, strings.Repeat("x", 501)) {
		t.Error("extract exceeds truncation bound")
	}
}

func TestGetCityInfo_TruncationKeepsValidUTF8(t *testing.T) {
	c := newTestCapability(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"title":   "Zürich",
			"extract": strings.Repeat("ü", 600),
		})
	})

	result := call(t, c, `{"city_name":"Zürich"}`)
	if !strings.Contains(result, strings.Repeat("ü", 497)+"...") {
		t.Error("extract not truncated on a rune boundary")
	}
	if !utf8.ValidString(result) {
		t.Errorf("invalid UTF-8 in result:\n%s", result)
	}
}
