package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/llm"
	"github.com/simd-personal/Inno-Supps/redact"
)

// Analysis is the structured review of a call transcript.
type Analysis struct {
	Highlights []string `json:"highlights"`
	Objections []string `json:"objections"`
	Actions    []string `json:"actions"`
	Coaching   []string `json:"coaching"`
}

func emptyAnalysis() Analysis {
	return Analysis{Highlights: []string{}, Objections: []string{}, Actions: []string{}, Coaching: []string{}}
}

// AnalyzeTranscript extracts highlights, objections, next actions and
// coaching points from a call transcript.
func (k *Kit) AnalyzeTranscript(ctx context.Context, transcript string) (Analysis, error) {
	if k.mock {
		return Analysis{
			Highlights: []string{"Prospect showed interest in pricing", "Mentioned budget constraints", "Wants to see a demo"},
			Objections: []string{"Price is too high", "Need to check with team"},
			Actions:    []string{"Send pricing information", "Schedule demo call", "Follow up in 1 week"},
			Coaching:   []string{"Address price objection with value proposition", "Ask about decision-making process"},
		}, nil
	}
	if err := k.requireLLM(); err != nil {
		return Analysis{}, err
	}

	var out Analysis
	o, err := k.completeJSON(ctx, "analyze_transcript", llm.Request{
		Prompt: fmt.Sprintf(`Analyze this call transcript and extract key insights.

Transcript: %s

Return a JSON object with:
- highlights: list of key points mentioned
- objections: list of objections raised
- actions: list of next steps
- coaching: list of coaching recommendations`, transcript),
		Temperature: llm.Temp(0.3),
	}, &out)
	if err != nil {
		return Analysis{}, err
	}
	if o != outcomeOK {
		return emptyAnalysis(), nil
	}
	return out, nil
}

// NicheReport writes a markdown market report for the keywords.
func (k *Kit) NicheReport(ctx context.Context, keywords []string, region, sizeRange string) (string, error) {
	if len(keywords) == 0 {
		return "", innosupps.Invalid("generate_niche_report: at least one keyword is required")
	}
	if region == "" {
		region = "US"
	}
	if sizeRange == "" {
		sizeRange = "1-50"
	}
	joined := strings.Join(keywords, ", ")

	if k.mock {
		return fmt.Sprintf(`# Niche Market Report: %[1]s

## Executive Summary
This report analyzes the market opportunity for %[1]s in the %[2]s region, focusing on companies with %[3]s employees.

## Market Size
- Total Addressable Market: $2.8B
- Serviceable Addressable Market: $450M
- Serviceable Obtainable Market: $45M

## Key Insights
1. High growth potential in this niche
2. Limited competition in the %[3]s segment
3. Strong demand for automation solutions

## Recommendations
- Focus on %[4]s as primary offering
- Target companies in %[2]s with %[3]s employees
- Develop partnerships with key industry players
`, joined, region, sizeRange, keywords[0]), nil
	}
	if err := k.requireLLM(); err != nil {
		return "", err
	}

	out, err := k.llm.Complete(ctx, llm.Request{
		Prompt: fmt.Sprintf(`Generate a comprehensive niche market report for:
- Keywords: %s
- Region: %s
- Company size: %s employees

Include an executive summary, market size and growth, competitive landscape,
target customer analysis, revenue opportunities, implementation strategy and
risk assessment. Format as a detailed markdown report.`, joined, region, sizeRange),
		Temperature: llm.Temp(0.5),
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return fmt.Sprintf("# Niche Report: %s\n\nError generating report: %v", joined, err), nil
	}
	return out, nil
}

// Plan is a generated growth plan.
type Plan struct {
	PlanMD string         `json:"plan_md"`
	KPIs   map[string]any `json:"kpis_json"`
}

// GrowthPlan writes a twelve-month plan from business inputs such as
// company_name, current_revenue, team_size, growth_rate and their target_
// counterparts.
func (k *Kit) GrowthPlan(ctx context.Context, inputs map[string]any) (Plan, error) {
	if k.mock {
		target := num(inputs, "target_revenue")
		return Plan{
			PlanMD: fmt.Sprintf(`# Growth Plan for %s

## Current State
- Revenue: $%s
- Team Size: %s employees
- Growth Rate: %s%%

## 12-Month Goals
- Target Revenue: $%s
- Target Team Size: %s employees
- Target Growth Rate: %s%%

## Key Strategies
1. **Sales & Marketing**: Implement automated lead generation
2. **Product Development**: Focus on customer feedback integration
3. **Operations**: Streamline processes and improve efficiency
4. **Team Building**: Hire key roles and develop existing talent

## Next Steps
1. Implement CRM system
2. Launch marketing campaigns
3. Optimize sales process
4. Scale team strategically
`,
				str(inputs, "company_name", "Your Company"),
				commas(num(inputs, "current_revenue")),
				fmtNum(num(inputs, "team_size")),
				fmtNum(num(inputs, "growth_rate")),
				commas(target),
				fmtNum(num(inputs, "target_team_size")),
				fmtNum(num(inputs, "target_growth_rate")),
			),
			KPIs: map[string]any{
				"monthly_revenue":           target / 12,
				"customer_acquisition_cost": 150,
				"lifetime_value":            5000,
				"churn_rate":                0.05,
				"growth_rate":               num(inputs, "target_growth_rate"),
			},
		}, nil
	}
	if err := k.requireLLM(); err != nil {
		return Plan{}, err
	}

	encoded, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return Plan{}, fmt.Errorf("generate_growth_plan: encode inputs: %w", err)
	}

	var out Plan
	o, err := k.completeJSON(ctx, "generate_growth_plan", llm.Request{
		Prompt: fmt.Sprintf(`Generate a comprehensive 12-month growth plan based on these inputs:

%s

Return a JSON object with:
- plan_md: detailed markdown growth plan
- kpis_json: key performance indicators and targets`, encoded),
		Temperature: llm.Temp(0.6),
	}, &out)
	if err != nil {
		return Plan{}, err
	}
	switch o {
	case outcomeUnparseable:
		return Plan{PlanMD: "# Growth Plan\n\nError generating plan: invalid response format", KPIs: map[string]any{}}, nil
	case outcomeUpstream:
		return Plan{PlanMD: "# Growth Plan\n\nError generating plan: provider unavailable", KPIs: map[string]any{}}, nil
	}
	if out.KPIs == nil {
		out.KPIs = map[string]any{}
	}
	return out, nil
}

// RedactText masks personal data in text.
func (k *Kit) RedactText(text string) string { return redact.Text(text) }

func num(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// commas renders the integer part of f with thousands separators.
func commas(f float64) string {
	s := strconv.FormatInt(int64(f), 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
