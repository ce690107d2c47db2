package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/avetrano/matrixflow/internal/logging"
	"github.com/avetrano/matrixflow/internal/model"
)

const defaultModel = "gemini-2.0-flash"

// digestDepth caps how much of the tree goes into the analysis prompt.
const digestDepth = 4

const extractPrompt = `Read this utility bill. Respond with JSON only, no prose:
{"provider": "<company name>", "type": "Luce" or "Gas"}
Use an empty string for any field you cannot determine.`

// Gemini talks to the Gemini API for both collaborators.
type Gemini struct {
	client *genai.Client
	model  string
	log    logging.Logger
}

func NewGemini(ctx context.Context, apiKey string, log logging.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  defaultModel,
		log:    log.With("module", "ai"),
	}, nil
}

// ExtractBill sends the document inline and parses the structured reply.
func (g *Gemini) ExtractBill(ctx context.Context, document []byte, mimeType string) (*Extraction, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(extractPrompt),
			genai.NewPartFromBytes(document, mimeType),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("bill extraction: %w", err)
	}

	extraction, err := parseExtraction(resp.Text())
	if err != nil {
		g.log.Warn(ctx, "unparseable extraction reply", "err", err)
		return nil, err
	}
	return extraction, nil
}

// Summarize sends a pruned digest of the tree and returns the model's
// narrative as-is.
func (g *Gemini) Summarize(ctx context.Context, node *model.MatrixNode) (string, error) {
	digest, err := json.Marshal(networkDigest(node, digestDepth))
	if err != nil {
		return "", fmt.Errorf("encode network digest: %w", err)
	}

	prompt := "You are an analyst for a membership network organised as a 10-wide matrix.\n" +
		"Summarise the health of this network in a few short paragraphs: growth, depth,\n" +
		"utility activation rate, and any branch that looks stalled. Data:\n" + string(digest)

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, nil)
	if err != nil {
		return "", fmt.Errorf("network analysis: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("network analysis: empty reply")
	}
	return text, nil
}

// parseExtraction decodes the model reply, tolerating markdown code fences
// and unknown type spellings.
func parseExtraction(reply string) (*Extraction, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw struct {
		Provider string `json:"provider"`
		Type     string `json:"type"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("decode extraction reply: %w", err)
	}

	e := &Extraction{Provider: strings.TrimSpace(raw.Provider)}
	switch strings.ToLower(strings.TrimSpace(raw.Type)) {
	case "luce", "power", "electricity", "electric":
		e.Type = model.UtilityTypePower
	case "gas":
		e.Type = model.UtilityTypeGas
	}
	return e, nil
}

// digestNode is the prompt-facing view of a subtree. No credentials, no
// attachment payloads.
type digestNode struct {
	Username       string        `json:"username"`
	Level          int           `json:"level"`
	Joined         string        `json:"joined"`
	TotalDownline  int           `json:"totalDownline"`
	TotalUtilities int           `json:"totalUtilities"`
	Utilities      []string      `json:"utilities,omitempty"`
	Children       []*digestNode `json:"children,omitempty"`
}

// networkDigest flattens a matrix subtree into prompt-safe form, pruning
// below maxDepth levels under the given node. Aggregated counters on the cut
// nodes still reflect the full subtree.
func networkDigest(node *model.MatrixNode, maxDepth int) *digestNode {
	if node == nil {
		return nil
	}
	d := &digestNode{
		Username:       node.Username,
		Level:          node.Level,
		Joined:         node.JoinedAt.Format("2006-01-02"),
		TotalDownline:  node.TotalDownline,
		TotalUtilities: node.TotalUtilities,
	}
	for _, u := range node.Utilities {
		d.Utilities = append(d.Utilities, fmt.Sprintf("%s/%s (%s)", u.Type, u.Provider, u.Status))
	}
	if maxDepth <= 0 {
		return d
	}
	for _, child := range node.Children {
		d.Children = append(d.Children, networkDigest(child, maxDepth-1))
	}
	return d
}
