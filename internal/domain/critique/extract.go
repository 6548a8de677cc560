package critique

import (
	"regexp"
	"strings"

	"github.com/bytedance/sonic"

	"photoscore-server/internal/platform/errors"
)

// fenceRE strips markdown code fences that models wrap around JSON despite
// being told not to.
var fenceRE = regexp.MustCompile("```json\n?|```")

// geminiEnvelope is the subset of the generateContent response we read.
type geminiEnvelope struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Outcome is the terminal state of one gateway invocation (one call, or two
// under fallback): the last HTTP status and raw body, plus the response text
// when the provider already extracted it from its own envelope.
type Outcome struct {
	StatusCode int
	Body       []byte
	Text       string
}

// Succeeded reports whether the final upstream status was in the 2xx range.
func (o *Outcome) Succeeded() bool {
	return o.StatusCode >= 200 && o.StatusCode < 300
}

// Extract normalises a model outcome into a strict AnalysisResult. Upstream
// failures propagate as kind "upstream" without parsing; a reply whose text
// is not valid schema JSON fails as kind "parse" and never invents a result.
func Extract(outcome *Outcome) (*AnalysisResult, error) {
	if outcome == nil {
		return nil, errors.New(errors.KindUpstream, "extract", "missing model outcome")
	}
	if !outcome.Succeeded() {
		return nil, errors.New(errors.KindUpstream, "extract", "upstream call failed")
	}

	text := outcome.Text
	if text == "" {
		var envelope geminiEnvelope
		if err := sonic.Unmarshal(outcome.Body, &envelope); err != nil {
			return nil, errors.Wrap(errors.KindParse, "extract", "malformed response envelope", err)
		}
		if len(envelope.Candidates) > 0 && len(envelope.Candidates[0].Content.Parts) > 0 {
			text = envelope.Candidates[0].Content.Parts[0].Text
		}
	}

	jsonText := strings.TrimSpace(fenceRE.ReplaceAllString(text, ""))
	if jsonText == "" {
		return nil, errors.New(errors.KindParse, "extract", "empty response text")
	}

	result, err := DecodeResult(jsonText)
	if err != nil {
		return nil, errors.Wrap(errors.KindParse, "extract", "response text is not a valid result", err)
	}
	return result, nil
}
