package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/provider"
)

// EnrichedScore is the score given to a prospect after enrichment.
const EnrichedScore = 85

// NicheInputs parameterizes a niche research run.
type NicheInputs struct {
	Keywords  []string `json:"keywords"`
	Region    string   `json:"region,omitempty"`
	SizeRange string   `json:"size_range,omitempty"`
}

// NicheResearchArgs is the payload of run_niche_research.
type NicheResearchArgs struct {
	ResearchInputs NicheInputs `json:"research_inputs"`
}

// NicheResearchResult is stored on a finished run_niche_research job.
type NicheResearchResult struct {
	Status          string   `json:"status"`
	ResearchBriefID string   `json:"research_brief_id"`
	ReportLength    int      `json:"report_length"`
	Keywords        []string `json:"keywords"`
}

func (js *Jobs) nicheResearch(ctx context.Context, args NicheResearchArgs) (any, error) {
	in := args.ResearchInputs
	if in.Region == "" {
		in.Region = "US"
	}
	if in.SizeRange == "" {
		in.SizeRange = "1-50"
	}

	report, err := js.deps.Kit.NicheReport(ctx, in.Keywords, in.Region, in.SizeRange)
	if err != nil {
		return nil, fmt.Errorf("niche report: %w", err)
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}

	brief := &crm.ResearchBrief{
		Entity:      js.entity(),
		ID:          id.NewBriefID(),
		WorkspaceID: workspace(ctx),
		Inputs:      raw,
		OutputMD:    report,
	}
	if err := js.deps.CRM.InsertResearchBrief(ctx, brief); err != nil {
		return nil, fmt.Errorf("insert research brief: %w", err)
	}

	return NicheResearchResult{
		Status:          StatusSuccess,
		ResearchBriefID: brief.ID.String(),
		ReportLength:    len(report),
		Keywords:        in.Keywords,
	}, nil
}

// GrowthPlanArgs is the payload of create_growth_plan. Recognised inputs
// are company_name, current_revenue, team_size, growth_rate and their
// target_ counterparts.
type GrowthPlanArgs struct {
	PlanInputs map[string]any `json:"plan_inputs"`
}

// GrowthPlanResult is stored on a finished create_growth_plan job.
type GrowthPlanResult struct {
	Status       string         `json:"status"`
	GrowthPlanID string         `json:"growth_plan_id"`
	PlanLength   int            `json:"plan_length"`
	KPIs         map[string]any `json:"kpis"`
}

func (js *Jobs) growthPlan(ctx context.Context, args GrowthPlanArgs) (any, error) {
	inputs := args.PlanInputs
	if inputs == nil {
		inputs = map[string]any{}
	}

	plan, err := js.deps.Kit.GrowthPlan(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("growth plan: %w", err)
	}
	rawIn, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}
	rawKPIs, err := json.Marshal(plan.KPIs)
	if err != nil {
		return nil, fmt.Errorf("encode kpis: %w", err)
	}

	gp := &crm.GrowthPlan{
		Entity:      js.entity(),
		ID:          id.NewPlanID(),
		WorkspaceID: workspace(ctx),
		Inputs:      rawIn,
		PlanMD:      plan.PlanMD,
		KPIs:        rawKPIs,
	}
	if err := js.deps.CRM.InsertGrowthPlan(ctx, gp); err != nil {
		return nil, fmt.Errorf("insert growth plan: %w", err)
	}

	return GrowthPlanResult{
		Status:       StatusSuccess,
		GrowthPlanID: gp.ID.String(),
		PlanLength:   len(plan.PlanMD),
		KPIs:         plan.KPIs,
	}, nil
}

// EnrichArgs is the payload of enrich_prospect_data.
type EnrichArgs struct {
	ProspectID string `json:"prospect_id"`
}

// Enrichment is the data merged onto a prospect.
type Enrichment struct {
	Person  *provider.Person  `json:"person,omitempty"`
	Company *provider.Company `json:"company,omitempty"`
}

// EnrichResult is stored on a finished enrich_prospect_data job.
type EnrichResult struct {
	Status     string     `json:"status"`
	ProspectID string     `json:"prospect_id"`
	Enrichment Enrichment `json:"enrichment_data"`
	Score      float64    `json:"score"`
}

// enrichProspect looks the prospect and their employer up, then stores the
// enrichment with a fixed score.
func (js *Jobs) enrichProspect(ctx context.Context, args EnrichArgs) (any, error) {
	ws := workspace(ctx)
	pid, err := id.ParseProspectID(args.ProspectID)
	if err != nil {
		return nil, innosupps.Invalid("prospect_id %q: %v", args.ProspectID, err)
	}
	p, err := js.deps.CRM.GetProspect(ctx, ws, pid)
	if err != nil {
		return nil, permanent(err)
	}

	var enr Enrichment
	if name := fullName(p); name != "" {
		person, err := js.deps.Kit.EnrichPerson(ctx, name, p.Company)
		if err != nil {
			return nil, fmt.Errorf("enrich person: %w", err)
		}
		enr.Person = person
	}
	if domain := companyDomain(p); domain != "" {
		company, err := js.deps.Kit.CompanyProfile(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("company profile: %w", err)
		}
		enr.Company = company
	}

	raw, err := json.Marshal(enr)
	if err != nil {
		return nil, fmt.Errorf("encode enrichment: %w", err)
	}
	now := js.deps.Now().UTC()
	p.Enrichment = raw
	p.Score = EnrichedScore
	p.EnrichedAt = &now
	p.Touch(now)
	if err := js.deps.CRM.UpdateProspect(ctx, p); err != nil {
		return nil, fmt.Errorf("update prospect: %w", err)
	}

	return EnrichResult{
		Status:     StatusSuccess,
		ProspectID: p.ID.String(),
		Enrichment: enr,
		Score:      EnrichedScore,
	}, nil
}

func fullName(p *crm.Prospect) string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// companyDomain prefers the email domain and falls back to the company
// name squashed into a .com domain.
func companyDomain(p *crm.Prospect) string {
	if _, domain, ok := strings.Cut(p.Email, "@"); ok && domain != "" {
		return strings.ToLower(domain)
	}
	if p.Company == "" {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(p.Company, " ", "")) + ".com"
}
