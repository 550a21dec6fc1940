// ABOUTME: City capability backed by the Wikipedia page summary API
// ABOUTME: Falls back through title variations when the exact page is missing

package city

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/canuysal/multidomain-chatbot-challenge/internal/capability"
)

// DefaultBaseURL is the Wikipedia REST summary endpoint.
const DefaultBaseURL = "https://en.wikipedia.org/api/rest_v1/page/summary"

const userAgent = "MultiDomainChatbot/1.0 (https://example.com/contact)"

// Capability answers city questions with Wikipedia page summaries.
type Capability struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates the city capability. An empty baseURL uses Wikipedia.
func New(baseURL string) *Capability {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Capability{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default().With("component", "capability.city"),
	}
}

func (c *Capability) Name() string { return "city" }

func (c *Capability) Description() string {
	return "General information about cities from Wikipedia"
}

func (c *Capability) Schemas() []capability.OperationSchema {
	return []capability.OperationSchema{{
		Name:        "get_city_info",
		Description: "Get general information about a city using Wikipedia",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"city_name": {
					"type": "string",
					"description": "Name of the city to get information about"
				}
			},
			"required": ["city_name"]
		}`),
	}}
}

func (c *Capability) Operations() map[string]capability.Handler {
	return map[string]capability.Handler{
		"get_city_info": c.getCityInfo,
	}
}

type summaryResponse struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	Coordinates struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coordinates"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func (c *Capability) getCityInfo(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		CityName string `json:"city_name"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing arguments: %w", err)
	}
	name := strings.TrimSpace(params.CityName)
	if name == "" {
		return "Please provide a valid city name.", nil
	}
	name = titleCase(name)

	summary, status, err := c.fetchSummary(ctx, name)
	if err != nil {
		return "", err
	}
	if status == http.StatusOK {
		return formatSummary(summary), nil
	}
	if status != http.StatusNotFound {
		return fmt.Sprintf("Sorry, I encountered an error while searching for '%s'. Please try again later.", name), nil
	}

	// The exact title is missing; try common disambiguations.
	variations := []string{
		name + "_city",
		name + ",_United_States",
		name + ",_UK",
	}
	for _, variation := range variations {
		summary, status, err = c.fetchSummary(ctx, variation)
		if err != nil {
			continue
		}
		if status == http.StatusOK {
			return formatSummary(summary), nil
		}
	}
	return fmt.Sprintf("Sorry, I couldn't find information about '%s' on Wikipedia. Please check the spelling or try a more specific name.", name), nil
}

func (c *Capability) fetchSummary(ctx context.Context, title string) (*summaryResponse, int, error) {
	pageTitle := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+pageTitle, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("contacting Wikipedia: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	var summary summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding summary: %w", err)
	}
	return &summary, resp.StatusCode, nil
}

func formatSummary(s *summaryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏙️ **%s**\n\n", s.Title)

	if extract := s.Extract; extract != "" {
		b.WriteString(truncate(extract, 500))
		b.WriteString("\n\n")
	}
	if s.Coordinates.Lat != 0 || s.Coordinates.Lon != 0 {
		fmt.Fprintf(&b, "📍 **Location**: %.4f°, %.4f°\n", s.Coordinates.Lat, s.Coordinates.Lon)
	}
	if page := s.ContentURLs.Desktop.Page; page != "" {
		fmt.Fprintf(&b, "🔗 [Read more on Wikipedia](%s)", page)
	}
	return strings.TrimSpace(b.String())
}

// truncate shortens s to at most max runes, appending an ellipsis.
// Cutting on runes keeps multi-byte text valid.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// titleCase uppercases the first letter of each space-separated word so
// lookups match Wikipedia's article naming.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
