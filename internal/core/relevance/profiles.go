package relevance

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// Expectation weights one entity type inside a profile. Strong
// expectations produce a mismatch warning when absent.
type Expectation struct {
	Entity domain.EntityType `yaml:"entity"`
	Weight float64           `yaml:"weight"`
	Strong bool              `yaml:"strong"`
}

// Profile lists what a context expects to see and what argues against it.
type Profile struct {
	Expect []Expectation `yaml:"expect"`
	Reject []Expectation `yaml:"reject"`
}

func (p Profile) maxPositive() float64 {
	total := 0.0
	for _, e := range p.Expect {
		total += e.Weight
	}
	return total
}

func (p Profile) maxNegative() float64 {
	total := 0.0
	for _, e := range p.Reject {
		total += e.Weight
	}
	return total
}

func (p Profile) validate() error {
	for _, list := range [][]Expectation{p.Expect, p.Reject} {
		for _, e := range list {
			if e.Entity == "" {
				return errors.New("entity type is required")
			}
			if e.Weight <= 0 {
				return fmt.Errorf("entity %s: weight must be positive", e.Entity)
			}
		}
	}
	return nil
}

type Profiles map[domain.DocumentContext]Profile

func DefaultProfiles() Profiles {
	return Profiles{
		domain.ContextExpenseReceipt: {
			Expect: []Expectation{
				{Entity: domain.EntityTotalAmount, Weight: 3, Strong: true},
				{Entity: domain.EntityVendorName, Weight: 2, Strong: true},
				{Entity: domain.EntityDate, Weight: 2, Strong: true},
				{Entity: domain.EntityTaxAmount, Weight: 1},
				{Entity: domain.EntityLineItem, Weight: 1},
			},
			Reject: []Expectation{
				{Entity: domain.EntityJobTitle, Weight: 2},
				{Entity: domain.EntityContractParty, Weight: 2},
				{Entity: domain.EntitySignature, Weight: 1},
			},
		},
		domain.ContextInvoice: {
			Expect: []Expectation{
				{Entity: domain.EntityInvoiceNumber, Weight: 3, Strong: true},
				{Entity: domain.EntityTotalAmount, Weight: 2, Strong: true},
				{Entity: domain.EntityVendorName, Weight: 2},
				{Entity: domain.EntityDueDate, Weight: 1},
				{Entity: domain.EntityDate, Weight: 1},
				{Entity: domain.EntityTaxAmount, Weight: 1},
				{Entity: domain.EntityPaymentTerms, Weight: 1},
			},
			Reject: []Expectation{
				{Entity: domain.EntityJobTitle, Weight: 2},
				{Entity: domain.EntitySignature, Weight: 1},
			},
		},
		domain.ContextBusinessCard: {
			Expect: []Expectation{
				{Entity: domain.EntityPersonName, Weight: 3, Strong: true},
				{Entity: domain.EntityPhone, Weight: 2},
				{Entity: domain.EntityEmail, Weight: 2},
				{Entity: domain.EntityJobTitle, Weight: 2},
				{Entity: domain.EntityCompanyName, Weight: 1},
				{Entity: domain.EntityWebsite, Weight: 1},
				{Entity: domain.EntityAddress, Weight: 1},
			},
			Reject: []Expectation{
				{Entity: domain.EntityTotalAmount, Weight: 3},
				{Entity: domain.EntityTaxAmount, Weight: 2},
				{Entity: domain.EntityLineItem, Weight: 2},
				{Entity: domain.EntityInvoiceNumber, Weight: 2},
			},
		},
		domain.ContextContract: {
			Expect: []Expectation{
				{Entity: domain.EntityContractParty, Weight: 3, Strong: true},
				{Entity: domain.EntitySignature, Weight: 2, Strong: true},
				{Entity: domain.EntityDate, Weight: 1},
				{Entity: domain.EntityCompanyName, Weight: 1},
				{Entity: domain.EntityPaymentTerms, Weight: 1},
			},
			Reject: []Expectation{
				{Entity: domain.EntityLineItem, Weight: 2},
				{Entity: domain.EntityJobTitle, Weight: 1},
			},
		},
		domain.ContextVendorDocument: {
			Expect: []Expectation{
				{Entity: domain.EntityVendorName, Weight: 3, Strong: true},
				{Entity: domain.EntityTaxID, Weight: 2},
				{Entity: domain.EntityAddress, Weight: 1},
				{Entity: domain.EntityEmail, Weight: 1},
				{Entity: domain.EntityPhone, Weight: 1},
				{Entity: domain.EntityWebsite, Weight: 1},
			},
			Reject: []Expectation{
				{Entity: domain.EntityJobTitle, Weight: 1},
			},
		},
		domain.ContextCustomerDocument: {
			Expect: []Expectation{
				{Entity: domain.EntityCompanyName, Weight: 2, Strong: true},
				{Entity: domain.EntityAddress, Weight: 2},
				{Entity: domain.EntityPersonName, Weight: 1},
				{Entity: domain.EntityEmail, Weight: 1},
				{Entity: domain.EntityPhone, Weight: 1},
			},
			Reject: []Expectation{
				{Entity: domain.EntityLineItem, Weight: 1},
			},
		},
		domain.ContextGenericBusiness: {
			Expect: []Expectation{
				{Entity: domain.EntityCompanyName, Weight: 1},
				{Entity: domain.EntityDate, Weight: 1},
				{Entity: domain.EntityEmail, Weight: 1},
				{Entity: domain.EntityPhone, Weight: 1},
				{Entity: domain.EntityAddress, Weight: 1},
			},
		},
	}
}

type profilesFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles reads YAML overrides and merges them onto the defaults. A
// context listed in the file replaces its default profile entirely.
func LoadProfiles(path string) (Profiles, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read relevance profiles: %w", err)
	}
	return ParseProfiles(raw)
}

func ParseProfiles(raw []byte) (Profiles, error) {
	var file profilesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode relevance profiles: %w", err)
	}

	profiles := DefaultProfiles()
	for name, profile := range file.Profiles {
		ctx, err := domain.ParseDocumentContext(name)
		if err != nil {
			return nil, fmt.Errorf("relevance profile %q: %w", name, err)
		}
		if err := profile.validate(); err != nil {
			return nil, fmt.Errorf("relevance profile %q: %w", name, err)
		}
		profiles[ctx] = profile
	}
	return profiles, nil
}
