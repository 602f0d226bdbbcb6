package toolkit

import (
	"context"
	"fmt"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/provider"
)

// CompanyProfile looks a company up by its domain.
func (k *Kit) CompanyProfile(ctx context.Context, domain string) (*provider.Company, error) {
	if domain == "" {
		return nil, innosupps.Invalid("fetch_company_profile: domain is required")
	}
	e, err := k.enricher()
	if err != nil {
		return nil, err
	}
	c, err := e.Company(ctx, domain)
	if err != nil {
		return nil, innosupps.Upstream("enrichment", err)
	}
	return c, nil
}

// EnrichPerson looks a person up by name and employer.
func (k *Kit) EnrichPerson(ctx context.Context, name, company string) (*provider.Person, error) {
	if name == "" {
		return nil, innosupps.Invalid("enrich_person: name is required")
	}
	e, err := k.enricher()
	if err != nil {
		return nil, err
	}
	p, err := e.Person(ctx, name, company)
	if err != nil {
		return nil, innosupps.Upstream("enrichment", err)
	}
	return p, nil
}

func (k *Kit) enricher() (provider.Enricher, error) {
	if k.mock {
		return provider.MockEnricher{}, nil
	}
	if k.providers.Enricher == nil {
		return nil, innosupps.Upstream("enrichment", fmt.Errorf("no enrichment provider configured"))
	}
	return k.providers.Enricher, nil
}
