// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"strings"
)

type formEntry struct {
	keywords []string
	name     string
	url      string
	note     string
}

type referralEntry struct {
	name string
	url  string
	note string
}

// formsByJurisdiction is ordered; the first entry whose keyword appears in
// the issue wins, and the last entry of each list is the fallback.
var formsByJurisdiction = map[string][]formEntry{
	"ON": {
		{keywords: []string{"n12", "own use", "personal use"}, name: "Form T2/T5 (Landlord and Tenant Board)", url: "https://tribunalsontario.ca/ltb/forms/", note: "Tenants disputing an N12 notice respond at the eviction hearing; file a T5 if the landlord gave the notice in bad faith."},
		{keywords: []string{"rent increase", "raise", "raising rent", "above guideline"}, name: "Form T1 Tenant Application for a Rebate", url: "https://tribunalsontario.ca/ltb/forms/", note: "Use when a landlord collected an illegal rent increase."},
		{keywords: []string{"repair", "maintenance", "mould", "mold", "heat"}, name: "Form T6 Tenant Application about Maintenance", url: "https://tribunalsontario.ca/ltb/forms/", note: "Use when the landlord has not kept the unit in good repair."},
		{keywords: []string{"evict", "eviction", "n4", "arrears"}, name: "Form T2 Application about Tenant Rights", url: "https://tribunalsontario.ca/ltb/forms/", note: "Use when the landlord interfered with reasonable enjoyment or harassed the tenant."},
		{name: "Landlord and Tenant Board forms index", url: "https://tribunalsontario.ca/ltb/forms/", note: "Browse all tenant and landlord application forms."},
	},
	"BC": {
		{keywords: []string{"dispute", "evict", "eviction", "notice to end"}, name: "Application for Dispute Resolution (RTB-12)", url: "https://www2.gov.bc.ca/gov/content/housing-tenancy/residential-tenancies/forms", note: "Tenants have 15 days to dispute most notices to end tenancy."},
		{keywords: []string{"repair", "maintenance"}, name: "Tenant's Request for Repairs (RTB-46)", url: "https://www2.gov.bc.ca/gov/content/housing-tenancy/residential-tenancies/forms", note: "Send to the landlord before applying for a repair order."},
		{name: "Residential Tenancy Branch forms", url: "https://www2.gov.bc.ca/gov/content/housing-tenancy/residential-tenancies/forms", note: "Browse all Residential Tenancy Branch forms."},
	},
	"AB": {
		{keywords: []string{"evict", "eviction", "deposit", "dispute"}, name: "RTDRS Application Form", url: "https://www.alberta.ca/residential-tenancy-dispute-resolution-service", note: "The Residential Tenancy Dispute Resolution Service hears most landlord and tenant disputes."},
		{name: "Alberta landlord and tenant forms", url: "https://www.alberta.ca/landlord-and-tenant-forms", note: "Browse all provincial tenancy forms."},
	},
}

var referralsByJurisdiction = map[string][]referralEntry{
	"ON": {
		{name: "Law Society Referral Service", url: "https://lso.ca/public-resources/finding-a-lawyer-or-paralegal/law-society-referral-service", note: "Free 30-minute consultation with a lawyer or licensed paralegal."},
		{name: "Legal Aid Ontario", url: "https://www.legalaid.on.ca/", note: "Eligibility depends on income."},
	},
	"BC": {
		{name: "Access Pro Bono", url: "https://accessprobono.ca/", note: "Free legal clinics and summary advice."},
		{name: "Lawyer Referral Service (Canadian Bar Association, BC Branch)", url: "https://www.cbabc.org/for-the-public/lawyer-referral-service", note: "30-minute consultation for a flat fee."},
	},
	"AB": {
		{name: "Law Society of Alberta Lawyer Referral", url: "https://www.lawsociety.ab.ca/public/lawyer-referral/", note: "Up to 30 minutes free consultation."},
		{name: "Legal Aid Alberta", url: "https://www.legalaid.ab.ca/", note: "Eligibility depends on income."},
	},
}

var nationalReferral = referralEntry{
	name: "Canadian Bar Association lawyer referral directory",
	url:  "https://www.cba.org/For-The-Public/Find-a-Lawyer",
	note: "Lists the referral service for each province and territory.",
}

// Directory answers lookups from built-in provincial tables. It makes no
// network calls.
type Directory struct{}

// NewDirectory returns the built-in directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// FindOfficialForm implements FormFinder.
func (d *Directory) FindOfficialForm(ctx context.Context, issue, jurisdiction string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	code := strings.ToUpper(strings.TrimSpace(jurisdiction))
	entries, ok := formsByJurisdiction[code]
	if !ok {
		return "", fmt.Errorf("no form directory for jurisdiction %q", jurisdiction)
	}

	lower := strings.ToLower(issue)
	chosen := entries[len(entries)-1]
	for _, e := range entries {
		if matchesAny(lower, e.keywords) {
			chosen = e
			break
		}
	}
	return fmt.Sprintf("%s (%s). %s Download: %s", chosen.name, code, chosen.note, chosen.url), nil
}

// FindLawyerReferral implements ReferralFinder. The province is read from
// the trailing ", XX" or the full province name in location.
func (d *Directory) FindLawyerReferral(ctx context.Context, location, topic string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	entries := []referralEntry{nationalReferral}
	if code := provinceOf(location); code != "" {
		entries = referralsByJurisdiction[code]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Referral services near %s", strings.TrimSpace(location))
	if topic != "" {
		fmt.Fprintf(&b, " for %s matters", strings.ToLower(topic))
	}
	b.WriteString(":")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n- %s: %s %s", e.name, e.note, e.url)
	}
	return b.String(), nil
}

var provinceNames = map[string]string{
	"ontario":          "ON",
	"british columbia": "BC",
	"alberta":          "AB",
}

func provinceOf(location string) string {
	loc := strings.TrimSpace(location)
	if i := strings.LastIndex(loc, ","); i >= 0 {
		code := strings.ToUpper(strings.TrimSpace(loc[i+1:]))
		if _, ok := referralsByJurisdiction[code]; ok {
			return code
		}
	}
	lower := strings.ToLower(loc)
	for name, code := range provinceNames {
		if strings.Contains(lower, name) {
			return code
		}
	}
	return ""
}

func matchesAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

var _ Finder = (*Directory)(nil)
