package critique

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// AnalysisRequest is the validated input to the pipeline. Identity fields are
// opaque pass-through context; the pipeline only forwards them to the sidecar
// record.
type AnalysisRequest struct {
	RequestID          string
	ImageBytes         []byte
	ImageBase64        string
	DiagnosticsEnabled bool

	Name      string
	Contact   string
	Timestamp string
	Consent   bool
	ClientID  string
	VisitorID string
	IP        string
	UserAgent string
	Lang      string
	Referrer  string
}

// ValidationDetail is the diagnostics-only breakdown behind the validity
// decision. Present only when diagnostics mode was requested.
type ValidationDetail struct {
	IsRealPhotograph          bool     `json:"isRealPhotograph"`
	NumFaces                  int      `json:"numFaces"`
	IsSinglePerson            bool     `json:"isSinglePerson"`
	AIGeneratedLikelihood     float64  `json:"aiGeneratedLikelihood"`
	IllustrationLikelihood    float64  `json:"illustrationLikelihood"`
	CelebrityLikelihood       float64  `json:"celebrityLikelihood"`
	GroupPhotoLikelihood      float64  `json:"groupPhotoLikelihood"`
	FaceOcclusionSeverity     float64  `json:"faceOcclusionSeverity"`
	ImageQualityScore         int      `json:"imageQualityScore"`
	ExcessiveFilterLikelihood float64  `json:"excessiveFilterLikelihood"`
	Reasons                   []string `json:"reasons"`
}

// AnalysisResult is the normalised caller-facing result. Exactly one variant
// is populated: the invalid variant carries Reason, the valid variant carries
// all three scores and all four critiques.
type AnalysisResult struct {
	IsValid bool   `json:"isValid"`
	Reason  string `json:"reason,omitempty"`

	FigureScore     *int   `json:"figureScore,omitempty"`
	BackgroundScore *int   `json:"backgroundScore,omitempty"`
	VibeScore       *int   `json:"vibeScore,omitempty"`

	FigureCritique     string `json:"figureCritique,omitempty"`
	BackgroundCritique string `json:"backgroundCritique,omitempty"`
	VibeCritique       string `json:"vibeCritique,omitempty"`
	FinalCritique      string `json:"finalCritique,omitempty"`

	Validation *ValidationDetail `json:"validation,omitempty"`
}

// DecodeResult parses model output text into an AnalysisResult and fails
// closed: any missing required field, non-integer score or score outside
// [0,100] rejects the payload instead of trusting the prompt contract.
func DecodeResult(text string) (*AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty result text")
	}

	var result AnalysisResult
	if err := sonic.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// Validate enforces the variant invariants from the result schema.
func (r *AnalysisResult) Validate() error {
	if !r.IsValid {
		if strings.TrimSpace(r.Reason) == "" {
			return fmt.Errorf("invalid result missing reason")
		}
		if r.FigureScore != nil || r.BackgroundScore != nil || r.VibeScore != nil {
			return fmt.Errorf("invalid result must not carry scores")
		}
		return nil
	}

	scores := map[string]*int{
		"figureScore":     r.FigureScore,
		"backgroundScore": r.BackgroundScore,
		"vibeScore":       r.VibeScore,
	}
	for name, score := range scores {
		if score == nil {
			return fmt.Errorf("valid result missing %s", name)
		}
		if *score < 0 || *score > 100 {
			return fmt.Errorf("%s out of range: %d", name, *score)
		}
	}

	critiques := map[string]string{
		"figureCritique":     r.FigureCritique,
		"backgroundCritique": r.BackgroundCritique,
		"vibeCritique":       r.VibeCritique,
		"finalCritique":      r.FinalCritique,
	}
	for name, critique := range critiques {
		if strings.TrimSpace(critique) == "" {
			return fmt.Errorf("valid result missing %s", name)
		}
	}
	return nil
}
