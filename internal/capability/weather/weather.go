// ABOUTME: Weather capability backed by the OpenWeatherMap current weather API
// ABOUTME: Serves deterministic mock data when no real API key is configured

package weather

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

// DefaultBaseURL is the OpenWeatherMap current weather endpoint.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// placeholderKey is treated as "no key configured" so local setups fall
// back to mock data instead of burning failed requests.
const placeholderKey = "test-weather-key"

// Capability reports current weather conditions per city.
type Capability struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates the weather capability. An empty baseURL uses OpenWeatherMap.
func New(apiKey, baseURL string) *Capability {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Capability{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default().With("component", "capability.weather"),
	}
}

func (c *Capability) Name() string { return "weather" }

func (c *Capability) Description() string {
	return "Current weather conditions for cities via OpenWeatherMap"
}

func (c *Capability) Schemas() []capability.OperationSchema {
	return []capability.OperationSchema{{
		Name:        "get_weather",
		Description: "Get current weather conditions for a specific city",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"city_name": {
					"type": "string",
					"description": "Name of the city to get weather for"
				}
			},
			"required": ["city_name"]
		}`),
	}}
}

func (c *Capability) Operations() map[string]capability.Handler {
	return map[string]capability.Handler{
		"get_weather": c.getWeather,
	}
}

type weatherResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  int      `json:"humidity"`
		Pressure  int      `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (c *Capability) getWeather(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		CityName string `json:"city_name"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parsing arguments: %w", err)
	}
	city := strings.TrimSpace(params.CityName)
	if city == "" {
		return "Please provide a valid city name.", nil
	}

	if c.apiKey == "" || c.apiKey == placeholderKey {
		c.logger.Info("no API key configured, returning mock weather", "city", city)
		return mockWeather(city), nil
	}

	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("contacting weather service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return "Weather service authentication failed. Please check the API key configuration.", nil
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return fmt.Sprintf("Sorry, I couldn't find weather information for '%s'. Please check the spelling or try a different city name.", city), nil
	case http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return "Weather service is temporarily unavailable due to rate limiting. Please try again later.", nil
	default:
		io.Copy(io.Discard, resp.Body)
		return fmt.Sprintf("Sorry, I encountered an error while fetching weather for '%s'. Please try again later.", city), nil
	}

	var data weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decoding weather response: %w", err)
	}
	return formatWeather(&data), nil
}

func formatWeather(data *weatherResponse) string {
	var b strings.Builder
	b.WriteString("🌤️ **Weather in ")
	if data.Name != "" {
		b.WriteString(data.Name)
	} else {
		b.WriteString("Unknown")
	}
	if data.Sys.Country != "" {
		b.WriteString(", " + data.Sys.Country)
	}
	b.WriteString("**\n\n")

	if data.Main.Temp != nil {
		fmt.Fprintf(&b, "🌡️ **Temperature**: %.1f°C", *data.Main.Temp)
		if data.Main.FeelsLike != nil {
			fmt.Fprintf(&b, " (feels like %.1f°C)", *data.Main.FeelsLike)
		}
		b.WriteString("\n")
	}

	description := "Unknown"
	if len(data.Weather) > 0 && data.Weather[0].Description != "" {
		description = data.Weather[0].Description
	}
	fmt.Fprintf(&b, "☁️ **Condition**: %s\n", titleWords(description))

	if data.Main.Humidity > 0 {
		fmt.Fprintf(&b, "💧 **Humidity**: %d%%\n", data.Main.Humidity)
	}
	if data.Main.Pressure > 0 {
		fmt.Fprintf(&b, "📊 **Pressure**: %d hPa\n", data.Main.Pressure)
	}
	if data.Wind.Speed > 0 {
		fmt.Fprintf(&b, "💨 **Wind Speed**: %g m/s\n", data.Wind.Speed)
	}
	return strings.TrimSpace(b.String())
}

func mockWeather(city string) string {
	return fmt.Sprintf(`🌤️ **Weather in %s** (Mock Data)

🌡️ **Temperature**: 22.5°C (feels like 24.0°C)
☁️ **Condition**: Partly Cloudy
💧 **Humidity**: 65%%
📊 **Pressure**: 1013 hPa
💨 **Wind Speed**: 3.2 m/s

⚠️ This is mock data. To get real weather information, please configure the OpenWeatherMap API key.`, city)
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
