// Command launcher bridges an Alfred workflow script filter to the retrieval
// service: it routes the query, renders documentation hits as Alfred items,
// and answers general queries straight from the local Ollama instance.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/johnyohanyoon/alfred-ai/models"
)

const maxTitleChars = 80

type alfredItem struct {
	Title     string            `json:"title"`
	Subtitle  string            `json:"subtitle,omitempty"`
	Arg       string            `json:"arg,omitempty"`
	CopyText  string            `json:"copytext,omitempty"`
	LargeText string            `json:"largetext,omitempty"`
	Icon      map[string]string `json:"icon,omitempty"`
}

type scriptFilterOutput struct {
	Items []alfredItem `json:"items"`
}

type launcher struct {
	serviceURL string
	ollamaHost string
	model      string
	client     *http.Client
}

func main() {
	if len(os.Args) < 2 || strings.TrimSpace(os.Args[1]) == "" {
		emit(scriptFilterOutput{Items: []alfredItem{{
			Title:    "Empty query",
			Subtitle: "Please enter a query",
		}}})
		return
	}
	query := os.Args[1]

	l := &launcher{
		serviceURL: getenv("ALFRED_AI_URL", "http://localhost:8080"),
		ollamaHost: getenv("OLLAMA_HOST", "http://localhost:11434"),
		model:      getenv("ALFRED_LAUNCHER_MODEL", "llama3.1"),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	emit(l.process(query))
}

func (l *launcher) process(query string) scriptFilterOutput {
	decision, results, err := l.route(query)
	if err != nil {
		// The service being down should not break the workflow; fall
		// back to answering directly.
		decision = models.RouteDecision{Target: models.RouteGeneral, Reason: fmt.Sprintf("routing failed: %v", err)}
	}

	if decision.Target == models.RouteDocumentation {
		return formatDocumentation(results, query, decision.Reason)
	}

	answer, err := l.generate(query)
	if err != nil {
		return scriptFilterOutput{Items: []alfredItem{{
			Title:    fmt.Sprintf("Error: %v", err),
			Subtitle: "Failed to process query",
			Arg:      err.Error(),
		}}}
	}
	return formatGeneral(answer, query, decision.Reason)
}

type routeResponse struct {
	Decision models.RouteDecision  `json:"decision"`
	Results  []models.SearchResult `json:"results"`
}

func (l *launcher) route(query string) (models.RouteDecision, []models.SearchResult, error) {
	body, _ := json.Marshal(map[string]string{"query": query})
	resp, err := l.client.Post(l.serviceURL+"/api/route", "application/json", bytes.NewReader(body))
	if err != nil {
		return models.RouteDecision{}, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.RouteDecision{}, nil, fmt.Errorf("route endpoint answered %d", resp.StatusCode)
	}
	var out routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.RouteDecision{}, nil, err
	}
	return out.Decision, out.Results, nil
}

func (l *launcher) generate(query string) (string, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"model":  l.model,
		"prompt": query,
		"stream": false,
		"options": map[string]float64{
			"temperature": 0.7,
			"top_p":       0.9,
		},
	})
	resp, err := l.client.Post(l.ollamaHost+"/api/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama answered %d", resp.StatusCode)
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	answer := strings.TrimSpace(out.Response)
	if answer == "" {
		answer = "No response from AI"
	}
	return answer, nil
}

func formatDocumentation(results []models.SearchResult, query, reason string) scriptFilterOutput {
	if len(results) == 0 {
		return scriptFilterOutput{Items: []alfredItem{{
			Title:    "No documentation found",
			Subtitle: fmt.Sprintf("No results for: %s", query),
			Arg:      fmt.Sprintf("No documentation found for: %s", query),
			Icon:     map[string]string{"path": "info.png"},
		}}}
	}

	if len(results) > 3 {
		results = results[:3]
	}
	items := make([]alfredItem, 0, len(results))
	for _, r := range results {
		items = append(items, alfredItem{
			Title:     truncate(r.Text),
			Subtitle:  fmt.Sprintf("Source: %s (Score: %.2f)", r.Source, r.Score),
			Arg:       r.Text,
			CopyText:  r.Text,
			LargeText: r.Text,
			Icon:      map[string]string{"path": "doc.png"},
		})
	}
	items[0].Subtitle = fmt.Sprintf("Routed to documentation (%s)", reason)
	return scriptFilterOutput{Items: items}
}

func formatGeneral(answer, query, reason string) scriptFilterOutput {
	return scriptFilterOutput{Items: []alfredItem{{
		Title:     truncate(answer),
		Subtitle:  fmt.Sprintf("Routed to general AI (%s)", reason),
		Arg:       answer,
		CopyText:  answer,
		LargeText: answer,
		Icon:      map[string]string{"path": "ai.png"},
	}}}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxTitleChars {
		return s
	}
	return string(r[:maxTitleChars]) + "..."
}

func emit(out scriptFilterOutput) {
	_ = json.NewEncoder(os.Stdout).Encode(out)
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
