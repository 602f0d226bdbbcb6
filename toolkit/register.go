package toolkit

import (
	"context"

	"github.com/simd-personal/Inno-Supps/provider"
	"github.com/simd-personal/Inno-Supps/tool"
)

// Tool names.
const (
	ToolClassifyIntent      = "classify_intent"
	ToolDraftEmail          = "draft_email"
	ToolCalendarFindSlots   = "calendar_find_slots"
	ToolCalendarBook        = "calendar_book"
	ToolFetchCompanyProfile = "fetch_company_profile"
	ToolEnrichPerson        = "enrich_person"
	ToolAnalyzeTranscript   = "analyze_transcript"
	ToolNicheReport         = "generate_niche_report"
	ToolGrowthPlan          = "generate_growth_plan"
	ToolRedactText          = "redact_text"
)

// Tools returns the static descriptors of every kit method.
func (k *Kit) Tools() []tool.Tool {
	return []tool.Tool{
		tool.New(tool.Schema{
			Name:        ToolClassifyIntent,
			Description: "Classify the intent of an email to determine response type and urgency",
			Params:      []tool.Param{tool.Required("email_text", tool.String, "The email content to classify")},
			Returns:     tool.Object,
		}, func(ctx context.Context, in struct {
			EmailText string `json:"email_text"`
		}) (any, error) {
			return k.ClassifyIntent(ctx, in.EmailText)
		}),

		tool.New(tool.Schema{
			Name:        ToolDraftEmail,
			Description: "Draft an email based on context and style",
			Params: []tool.Param{
				tool.Required("context", tool.Object, "Prospect info, campaign details and topic"),
				tool.Optional("style", tool.String, "professional, casual, urgent or follow_up", "professional"),
			},
			Returns: tool.Object,
		}, func(ctx context.Context, in struct {
			Context map[string]any `json:"context"`
			Style   string         `json:"style"`
		}) (any, error) {
			return k.DraftEmail(ctx, in.Context, in.Style)
		}),

		tool.New(tool.Schema{
			Name:        ToolCalendarFindSlots,
			Description: "Find available calendar slots based on preferences",
			Params:      []tool.Param{tool.Optional("preferences", tool.Object, "days and limit", map[string]any{})},
			Returns:     tool.Array,
		}, func(ctx context.Context, in struct {
			Preferences map[string]any `json:"preferences"`
		}) (any, error) {
			return k.FindSlots(ctx, in.Preferences)
		}),

		tool.New(tool.Schema{
			Name:        ToolCalendarBook,
			Description: "Book a calendar slot with a prospect",
			Params: []tool.Param{
				tool.Required("prospect_email", tool.String, "Email of the prospect"),
				tool.Required("slot", tool.Object, "Slot with start, end and link"),
			},
			Returns: tool.Object,
		}, func(ctx context.Context, in struct {
			ProspectEmail string        `json:"prospect_email"`
			Slot          provider.Slot `json:"slot"`
		}) (any, error) {
			return k.BookSlot(ctx, in.ProspectEmail, in.Slot)
		}),

		tool.New(tool.Schema{
			Name:        ToolFetchCompanyProfile,
			Description: "Fetch company profile information",
			Params:      []tool.Param{tool.Required("domain", tool.String, "Company domain, e.g. example.com")},
			Returns:     tool.Object,
		}, func(ctx context.Context, in struct {
			Domain string `json:"domain"`
		}) (any, error) {
			return k.CompanyProfile(ctx, in.Domain)
		}),

		tool.New(tool.Schema{
			Name:        ToolEnrichPerson,
			Description: "Enrich person information",
			Params: []tool.Param{
				tool.Required("name", tool.String, "Person's name"),
				tool.Required("company", tool.String, "Company name"),
			},
			Returns: tool.Object,
		}, func(ctx context.Context, in struct {
			Name    string `json:"name"`
			Company string `json:"company"`
		}) (any, error) {
			return k.EnrichPerson(ctx, in.Name, in.Company)
		}),

		tool.New(tool.Schema{
			Name:        ToolAnalyzeTranscript,
			Description: "Analyze call transcript for insights",
			Params:      []tool.Param{tool.Required("transcript_text", tool.String, "The call transcript")},
			Returns:     tool.Object,
		}, func(ctx context.Context, in struct {
			TranscriptText string `json:"transcript_text"`
		}) (any, error) {
			return k.AnalyzeTranscript(ctx, in.TranscriptText)
		}),

		tool.New(tool.Schema{
			Name:        ToolNicheReport,
			Description: "Generate a niche market report",
			Params: []tool.Param{
				tool.Required("keywords", tool.Array, "Keywords describing the niche"),
				tool.Optional("region", tool.String, "Geographic region", "US"),
				tool.Optional("size_range", tool.String, "Company size range", "1-50"),
			},
			Returns: tool.String,
		}, func(ctx context.Context, in struct {
			Keywords  []string `json:"keywords"`
			Region    string   `json:"region"`
			SizeRange string   `json:"size_range"`
		}) (any, error) {
			return k.NicheReport(ctx, in.Keywords, in.Region, in.SizeRange)
		}),

		tool.New(tool.Schema{
			Name:        ToolGrowthPlan,
			Description: "Generate a twelve-month growth plan",
			Params:      []tool.Param{tool.Required("inputs_json", tool.Object, "Business inputs: revenue, team size, goals")},
			Returns:     tool.Object,
		}, func(ctx context.Context, in struct {
			Inputs map[string]any `json:"inputs_json"`
		}) (any, error) {
			return k.GrowthPlan(ctx, in.Inputs)
		}),

		tool.New(tool.Schema{
			Name:        ToolRedactText,
			Description: "Mask emails, phone numbers, card numbers and SSNs in text",
			Params:      []tool.Param{tool.Required("text", tool.String, "Text to redact")},
			Returns:     tool.String,
		}, func(_ context.Context, in struct {
			Text string `json:"text"`
		}) (any, error) {
			return k.RedactText(in.Text), nil
		}),
	}
}

// Register installs every kit tool into reg.
func Register(reg *tool.Registry, k *Kit) error {
	for _, t := range k.Tools() {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
