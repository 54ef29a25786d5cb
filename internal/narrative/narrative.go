// Package narrative produces the optional AI-written summary attached to a
// report. It is a single prompt-and-response call with no retry or caching;
// failures degrade to an empty narrative.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/omirall/mobilitat/internal/domain"
)

// Generator writes a short maintenance narrative for the given assets.
type Generator interface {
	Summarize(ctx context.Context, assets []domain.Asset, reportType domain.ReportType) (string, error)
}

// Disabled is used when no API key is configured.
type Disabled struct{}

func (Disabled) Summarize(context.Context, []domain.Asset, domain.ReportType) (string, error) {
	return "", nil
}

type Anthropic struct {
	client *anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		client: anthropic.NewClient(apiKey),
		model:  model,
	}
}

func (a *Anthropic) Summarize(ctx context.Context, assets []domain.Asset, reportType domain.ReportType) (string, error) {
	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(buildPrompt(assets, reportType)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate narrative: %w", err)
	}
	for _, content := range resp.Content {
		if text := content.GetText(); text != "" {
			return text, nil
		}
	}
	return "", nil
}

// buildPrompt renders one line per asset so the model sees type, state, and
// location without any image payloads.
func buildPrompt(assets []domain.Asset, reportType domain.ReportType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a concise %s report narrative for a municipal street-asset inventory.\n", reportType)
	b.WriteString("Summarize overall condition, call out dangerous or missing elements, and suggest priorities.\n")
	b.WriteString("Assets (type | state | last painted | location):\n")
	for _, a := range assets {
		place := a.Location.Address
		if place == "" {
			place = strings.TrimSpace(a.Location.Street + " " + a.Location.Number)
		}
		if place == "" {
			place = a.Location.Neighborhood
		}
		fmt.Fprintf(&b, "- %s | %s | %s | %s\n", a.AssetType, a.State, a.LastPaintedDate, place)
	}
	return b.String()
}
