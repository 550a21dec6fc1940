// ABOUTME: Research capability backed by the Semantic Scholar graph API
// ABOUTME: Searches papers on a topic and fetches per-paper details

package research

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

	"github.com/canuysal/multidomain-chatbot-challenge/internal/capability"
)

// DefaultBaseURL is the Semantic Scholar graph API root.
const DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

const (
	userAgent    = "MultiDomainChatbot/1.0 (research-assistant)"
	searchLimit  = 5
	searchFields = "title,authors,year,abstract,citationCount,url,publicationDate"
	detailFields = "title,authors,year,abstract,citationCount,referenceCount,publicationDate,venue,fieldsOfStudy,url"
)

// Capability searches academic literature.
type Capability struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates the research capability. An empty baseURL uses Semantic Scholar.
func New(baseURL string) *Capability {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Capability{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     slog.Default().With("component", "capability.research"),
	}
}

func (c *Capability) Name() string { return "research" }

func (c *Capability) Description() string {
	return "Academic paper search and details via Semantic Scholar"
}

func (c *Capability) Schemas() []capability.OperationSchema {
	return []capability.OperationSchema{
		{
			Name:        "search_research",
			Description: "Search for academic research papers and information on a topic",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"topic": {
						"type": "string",
						"description": "Research topic or subject to search for"
					}
				},
				"required": ["topic"]
			}`),
		},
		{
			Name:        "get_paper_details",
			Description: "Get detailed information about a specific paper by its Semantic Scholar ID",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"paper_id": {
						"type": "string",
						"description": "Semantic Scholar paper ID"
					}
				},
				"required": ["paper_id"]
			}`),
		},
	}
}

func (c *Capability) Operations() map[string]capability.Handler {
	return map[string]capability.Handler{
		"search_research":   c.searchResearch,
		"get_paper_details": c.getPaperDetails,
	}
}

type paper struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Year     int    `json:"year"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
	CitationCount  int      `json:"citationCount"`
	ReferenceCount int      `json:"referenceCount"`
	Venue          string   `json:"venue"`
	FieldsOfStudy  []string `json:"fieldsOfStudy"`
	URL            string   `json:"url"`
}

type searchResponse struct {
	Data []paper `json:"data"`
}

func (c *Capability) searchResearch(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing arguments: %w", err)
	}
	topic := strings.TrimSpace(params.Topic)
	if topic == "" {
		return "Please provide a valid research topic.", nil
	}

	query := url.Values{}
	query.Set("query", topic)
	query.Set("limit", fmt.Sprintf("%d", searchLimit))
	query.Set("fields", searchFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/paper/search?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("contacting research service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		io.Copy(io.Discard, resp.Body)
		return fmt.Sprintf("Invalid search query for '%s'. Please try a different search term.", topic), nil
	case http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return "Research service is temporarily unavailable due to rate limiting. Please try again later.", nil
	case http.StatusInternalServerError:
		io.Copy(io.Discard, resp.Body)
		return "Research service is temporarily unavailable. Please try again later.", nil
	default:
		io.Copy(io.Discard, resp.Body)
		return fmt.Sprintf("Sorry, I encountered an error while searching for research on '%s'. Please try again later.", topic), nil
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decoding search response: %w", err)
	}
	return formatSearchResults(data.Data, topic), nil
}

func (c *Capability) getPaperDetails(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		PaperID string `json:"paper_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing arguments: %w", err)
	}
	paperID := strings.TrimSpace(params.PaperID)
	if paperID == "" {
		return "Please provide a valid paper ID.", nil
	}

	query := url.Values{}
	query.Set("fields", detailFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/paper/"+url.PathEscape(paperID)+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("contacting research service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Sprintf("Could not retrieve details for paper ID: %s", paperID), nil
	}

	var p paper
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return "", fmt.Errorf("decoding paper details: %w", err)
	}
	return formatPaperDetails(&p), nil
}

func formatSearchResults(papers []paper, topic string) string {
	if len(papers) == 0 {
		return fmt.Sprintf("No research papers found for '%s'. Please try a different search term or check the spelling.", topic)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📚 **Research Results for '%s'**\n\n", topic)
	fmt.Fprintf(&b, "Found %d relevant papers:\n\n", len(papers))

	totalCitations := 0
	for i, p := range papers {
		totalCitations += p.CitationCount

		title := p.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "**%d. %s**\n", i+1, title)

		if len(p.Authors) > 0 {
			names := make([]string, 0, 4)
			for _, a := range p.Authors[:min(len(p.Authors), 3)] {
				names = append(names, a.Name)
			}
			if len(p.Authors) > 3 {
				names = append(names, fmt.Sprintf("... and %d others", len(p.Authors)-3))
			}
			fmt.Fprintf(&b, "👥 *Authors*: %s\n", strings.Join(names, ", "))
		}

		if p.Year != 0 {
			fmt.Fprintf(&b, "📅 *Year*: %d", p.Year)
		}
		if p.CitationCount != 0 {
			fmt.Fprintf(&b, " | 📊 *Citations*: %d", p.CitationCount)
		}
		if p.Year != 0 || p.CitationCount != 0 {
			b.WriteString("\n")
		}

		if p.Abstract != "" {
			fmt.Fprintf(&b, "📄 *Abstract*: %s\n", truncate(p.Abstract, 200))
		}
		if p.URL != "" {
			fmt.Fprintf(&b, "🔗 [Read Paper](%s)\n", p.URL)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "📈 **Summary**: %d papers with %d total citations", len(papers), totalCitations)
	return strings.TrimSpace(b.String())
}

func formatPaperDetails(p *paper) string {
	title := p.Title
	if title == "" {
		title = "Untitled"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📄 **%s**\n\n", title)

	if len(p.Authors) > 0 {
		names := make([]string, 0, len(p.Authors))
		for _, a := range p.Authors {
			names = append(names, a.Name)
		}
		fmt.Fprintf(&b, "👥 **Authors**: %s\n", strings.Join(names, ", "))
	}
	if p.Year != 0 {
		fmt.Fprintf(&b, "📅 **Year**: %d\n", p.Year)
	}
	if p.Venue != "" {
		fmt.Fprintf(&b, "📖 **Venue**: %s\n", p.Venue)
	}
	if len(p.FieldsOfStudy) > 0 {
		fmt.Fprintf(&b, "🏷️ **Fields**: %s\n", strings.Join(p.FieldsOfStudy, ", "))
	}
	fmt.Fprintf(&b, "📊 **Citations**: %d\n", p.CitationCount)
	fmt.Fprintf(&b, "📚 **References**: %d\n\n", p.ReferenceCount)

	if p.Abstract != "" {
		fmt.Fprintf(&b, "📄 **Abstract**:\n%s\n\n", p.Abstract)
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "🔗 [Read Full Paper](%s)", p.URL)
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
