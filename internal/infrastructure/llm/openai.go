package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tenderwatch/internal/config"
	"tenderwatch/internal/domain"
	"tenderwatch/internal/ports"
)

const candidatePrompt = `You are a procurement-monitoring assistant. You receive the text of a
tender listing page. Find every tender announcement related to the given
topics and return a JSON array. Each element must have exactly these keys:
"title", "url", "date", "category", "description", "matched_keywords".
Use "" for anything missing. Category is "esg" or "credit_rating".
Return only the JSON array, nothing else.`

const detailPrompt = `You are a procurement-monitoring assistant. You receive the text of a
single tender's detail page plus the basic listing info. Return one JSON
object with exactly these keys: "title", "description", "deadline",
"publication_date", "requirements", "contact", "additional_info".
"requirements" is an array of strings. "contact" is an object with keys
"organization", "person", "phone", "email", "address". Dates stay as the
page prints them. Use "" or [] for anything missing.
Return only the JSON object, nothing else.`

// maxPageChars caps how much page text goes into one completion request.
const maxPageChars = 48000

// OpenAIClassifier implements ports.Classifier against OpenAI-compatible
// chat-completion APIs.
type OpenAIClassifier struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier builds a classifier from configuration.
func NewOpenAIClassifier(cfg config.OpenAIConfig) *OpenAIClassifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClassifier{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ClassifyCandidates asks the model for tender announcements on a listing
// page. A response that is not a usable JSON array comes back as a
// *ports.ParseError so callers can fall back to heuristics.
func (c *OpenAIClassifier) ClassifyCandidates(ctx context.Context, pageText string, esgKeywords, creditKeywords []string) ([]domain.CandidateTender, error) {
	user := fmt.Sprintf("Topics:\nESG keywords: %s\nCredit rating keywords: %s\n\nPage text:\n%s",
		strings.Join(esgKeywords, ", "),
		strings.Join(creditKeywords, ", "),
		clip(pageText, maxPageChars))

	content, err := c.chat(ctx, candidatePrompt, user)
	if err != nil {
		return nil, err
	}

	raw, ok := extractJSONArray(content)
	if !ok {
		return nil, &ports.ParseError{Reason: "no JSON array in model output"}
	}

	var items []candidateJSON
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, &ports.ParseError{Reason: "malformed candidate array: " + err.Error()}
	}

	candidates := make([]domain.CandidateTender, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Title) == "" {
			continue
		}
		candidates = append(candidates, domain.CandidateTender{
			Title:           strings.TrimSpace(it.Title),
			URL:             strings.TrimSpace(it.URL),
			Date:            strings.TrimSpace(it.Date),
			Category:        domain.Category(strings.TrimSpace(it.Category)),
			Description:     strings.TrimSpace(it.Description),
			ClaimedKeywords: it.MatchedKeywords,
		})
	}
	return candidates, nil
}

// ClassifyDetail asks the model to structure one tender's detail page.
func (c *OpenAIClassifier) ClassifyDetail(ctx context.Context, pageText string, basic domain.ValidatedTender) (domain.DetailExtraction, error) {
	user := fmt.Sprintf("Known listing info:\ntitle: %s\nurl: %s\ncategory: %s\n\nDetail page text:\n%s",
		basic.Title, basic.URL, basic.Category, clip(pageText, maxPageChars))

	content, err := c.chat(ctx, detailPrompt, user)
	if err != nil {
		return domain.DetailExtraction{}, err
	}

	raw, ok := extractJSONObject(content)
	if !ok {
		return domain.DetailExtraction{}, &ports.ParseError{Reason: "no JSON object in model output"}
	}

	var item detailJSON
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return domain.DetailExtraction{}, &ports.ParseError{Reason: "malformed detail object: " + err.Error()}
	}

	return domain.DetailExtraction{
		Title:           strings.TrimSpace(item.Title),
		Description:     strings.TrimSpace(item.Description),
		Deadline:        strings.TrimSpace(item.Deadline),
		PublicationDate: strings.TrimSpace(item.PublicationDate),
		Requirements:    strings.TrimSpace(strings.Join(item.Requirements, "\n")),
		Contact: domain.ContactInfo{
			Organization: strings.TrimSpace(item.Contact.Organization),
			Person:       strings.TrimSpace(item.Contact.Person),
			Phone:        strings.TrimSpace(item.Contact.Phone),
			Email:        strings.TrimSpace(item.Contact.Email),
			Address:      strings.TrimSpace(item.Contact.Address),
		},
		Additional: strings.TrimSpace(item.Additional),
	}, nil
}

// chat performs one completion round trip and returns the assistant message.
func (c *OpenAIClassifier) chat(ctx context.Context, system, user string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("openai client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("openai client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type candidateJSON struct {
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	Date            string   `json:"date"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	MatchedKeywords []string `json:"matched_keywords"`
}

type detailJSON struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Deadline        string   `json:"deadline"`
	PublicationDate string   `json:"publication_date"`
	Requirements    []string `json:"requirements"`
	Contact         struct {
		Organization string `json:"organization"`
		Person       string `json:"person"`
		Phone        string `json:"phone"`
		Email        string `json:"email"`
		Address      string `json:"address"`
	} `json:"contact"`
	Additional string `json:"additional_info"`
}

// extractJSONArray pulls the outermost JSON array out of a model reply that
// may be wrapped in prose or a ```json fence.
func extractJSONArray(s string) (string, bool) {
	return extractDelimited(stripFences(s), '[', ']')
}

// extractJSONObject does the same for a single object.
func extractJSONObject(s string) (string, bool) {
	return extractDelimited(stripFences(s), '{', '}')
}

func extractDelimited(s string, open, closing byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, closing)
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
