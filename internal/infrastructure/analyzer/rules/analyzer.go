package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/kirillkom/document-intelligence/internal/core/dedup"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const (
	ProviderName = "rules"

	maxEntitiesPerType = 10
	maxLineRunes       = 200
)

// Analyzer is a local ContentAnalyzer: it extracts the text layer and runs
// pattern matchers over it. It never calls out of process.
type Analyzer struct {
	extractor ports.TextExtractor
}

func NewAnalyzer(extractor ports.TextExtractor) *Analyzer {
	return &Analyzer{extractor: extractor}
}

func (a *Analyzer) Analyze(ctx context.Context, fileBytes []byte, mimeType string) (*domain.ContentAnalysis, error) {
	text, err := a.extractor.Extract(ctx, fileBytes, mimeType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrContentAnalysisUnavailable, "rules analyze", fmt.Errorf("%s has no text layer", mimeType))
	}

	entities := ExtractEntities(text)
	return &domain.ContentAnalysis{
		RawText:    text,
		Entities:   entities,
		Confidence: overallConfidence(text, entities),
		Provider:   ProviderName,
	}, nil
}

var (
	amountPattern  = `[$€£]?\s?\d{1,3}(?:[,\s]\d{3})*(?:[.,]\d{2})|[$€£]\s?\d+`
	reAmount       = regexp.MustCompile(amountPattern)
	reEmail        = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	reWebsite      = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[a-z0-9\-]+(?:\.[a-z0-9\-]+)+(?:/[^\s]*)?`)
	rePhone        = regexp.MustCompile(`\+?\(?\d[\d\s().\-]{7,}\d`)
	reTotalKw      = regexp.MustCompile(`(?i)\b(?:total|grand total|amount due|balance due|total due)\b`)
	reTaxKw        = regexp.MustCompile(`(?i)\b(?:tax|vat|gst|hst|sales tax)\b`)
	reTaxIDKw      = regexp.MustCompile(`(?i)\b(?:tax\s*id|vat\s*(?:no|number|id|reg)|ein|tin|abn|inn)\b\.?\s*[:#]?\s*([A-Z0-9][A-Z0-9\-]{4,})`)
	reLineItem     = regexp.MustCompile(`^\s*(?:\d+\s*[x×]\s*)?[A-Za-z][A-Za-z0-9 &'\-]{2,40}?\s+(?:` + amountPattern + `)\s*$`)
	reInvoiceNo    = regexp.MustCompile(`(?i)\b(?:invoice|inv)\s*(?:no\.?|number|num|#)?\s*[:#]?\s*([A-Z]{0,4}[-/]?\d[A-Z0-9\-/]{1,20})`)
	reDueKw        = regexp.MustCompile(`(?i)\b(?:due date|payment due|due by|due on|due)\b`)
	rePaymentTerms = regexp.MustCompile(`(?i)\b(?:net\s?\d{1,3}|due on receipt|payment terms?\s*:?\s*[^\n]{3,60})`)
	reSignature    = regexp.MustCompile(`(?i)\b(?:signature|signed by|authori[sz]ed signatory|in witness whereof)\b|/s/`)
	reBetween      = regexp.MustCompile(`(?i)\bbetween\s+(.{2,80}?)\s*(?:\([^)]*\))?\s*,?\s+and\s+(.{2,80}?)\s*(?:\([^)]*\)|[,.;]|$)`)
	rePartyLabel   = regexp.MustCompile(`(?i)^\s*(?:party\s*[ab12]?|client|contractor|provider|customer|supplier|licensor|licensee)\s*:\s*(.{2,80})$`)
	reVendorLabel  = regexp.MustCompile(`(?i)^\s*(?:vendor|from|sold by|bill from|merchant|supplier)\s*:\s*(.{2,80})$`)
	reAddress      = regexp.MustCompile(`(?i)\b\d{1,6}\s+[a-z0-9 .'\-]{2,40}\b(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|way|place|pl|suite|square|sq)\b\.?`)
	reCompany      = regexp.MustCompile(`\b[A-Z][\w&'.\-]*(?:\s+[A-Z][\w&'.\-]*){0,4}\s+(?i:inc|llc|ltd|limited|gmbh|corp|corporation|co|company|plc|ag|sa|bv|llp)\b\.?`)

	reDates = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}[/.]\d{1,2}[/.]\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{4}\b`),
	}
)

var jobTitleWords = []string{
	"ceo", "cto", "cfo", "coo", "cio", "founder", "co-founder", "president", "vice president", "vp",
	"director", "manager", "engineer", "consultant", "head of", "officer", "partner", "developer",
	"designer", "analyst", "architect", "account executive", "sales representative", "attorney",
	"accountant", "specialist", "coordinator", "administrator",
}

// nameStopwords are capitalized words that commonly open non-name lines.
var nameStopwords = map[string]struct{}{
	"invoice": {}, "receipt": {}, "total": {}, "subtotal": {}, "tax": {}, "date": {}, "due": {},
	"amount": {}, "balance": {}, "payment": {}, "terms": {}, "thank": {}, "you": {}, "bill": {},
	"ship": {}, "to": {}, "from": {}, "agreement": {}, "contract": {}, "page": {}, "description": {},
	"qty": {}, "quantity": {}, "price": {}, "cash": {}, "card": {}, "change": {}, "order": {},
	"the": {}, "and": {}, "of": {}, "for": {}, "services": {}, "service": {}, "street": {}, "avenue": {},
}

type collector struct {
	seen map[domain.EntityType]map[string]struct{}
	out  []domain.Entity
}

func (c *collector) add(t domain.EntityType, value string, confidence float64) {
	value = strings.Trim(strings.TrimSpace(value), ",;:")
	if value == "" {
		return
	}
	key := dedup.NormalizeEntityValue(t, value)
	if key == "" {
		return
	}
	if c.seen[t] == nil {
		c.seen[t] = make(map[string]struct{})
	}
	if _, ok := c.seen[t][key]; ok || len(c.seen[t]) >= maxEntitiesPerType {
		return
	}
	c.seen[t][key] = struct{}{}
	c.out = append(c.out, domain.Entity{Type: t, Value: value, Confidence: confidence})
}

func (c *collector) has(t domain.EntityType) bool {
	return len(c.seen[t]) > 0
}

// ExtractEntities runs every pattern over text. Output order follows the
// order of discovery, which is deterministic for a given text.
func ExtractEntities(text string) []domain.Entity {
	c := &collector{seen: make(map[domain.EntityType]map[string]struct{})}
	lines := splitLines(text)

	for _, line := range lines {
		extractContact(c, line)
		extractFinancial(c, line)
		extractDates(c, line)
		extractContractCues(c, line)
		if reAddress.MatchString(line) {
			c.add(domain.EntityAddress, line, 0.75)
		}
		if m := reTaxIDKw.FindStringSubmatch(line); m != nil {
			c.add(domain.EntityTaxID, m[1], 0.85)
		}
	}
	if m := reBetween.FindStringSubmatch(strings.Join(lines, " ")); m != nil {
		c.add(domain.EntityContractParty, m[1], 0.8)
		c.add(domain.EntityContractParty, m[2], 0.8)
	}

	extractOrganizations(c, lines)
	extractPeople(c, lines)
	return c.out
}

func extractContact(c *collector, line string) {
	for _, m := range reEmail.FindAllString(line, -1) {
		c.add(domain.EntityEmail, m, 0.95)
	}
	for _, m := range reWebsite.FindAllString(line, -1) {
		c.add(domain.EntityWebsite, m, 0.85)
	}
	lower := strings.ToLower(line)
	labelled := strings.Contains(lower, "tel") || strings.Contains(lower, "phone") ||
		strings.Contains(lower, "mobile") || strings.Contains(lower, "cell")
	for _, m := range phoneCandidates(line) {
		digits := countDigits(m)
		if digits < 9 || digits > 15 || looksLikeDate(m) {
			continue
		}
		conf := 0.7
		if labelled {
			conf = 0.9
		}
		c.add(domain.EntityPhone, m, conf)
	}
	if isJobTitleLine(line) {
		c.add(domain.EntityJobTitle, line, 0.75)
	}
}

func extractFinancial(c *collector, line string) {
	amount := reAmount.FindAllString(line, -1)
	switch {
	case len(amount) > 0 && reTotalKw.MatchString(line):
		c.add(domain.EntityTotalAmount, amount[len(amount)-1], 0.9)
	case len(amount) > 0 && reTaxKw.MatchString(line) && !reTaxIDKw.MatchString(line):
		c.add(domain.EntityTaxAmount, amount[len(amount)-1], 0.85)
	case reLineItem.MatchString(line) && !strings.Contains(strings.ToLower(line), "subtotal"):
		c.add(domain.EntityLineItem, line, 0.6)
	}
	if m := reInvoiceNo.FindStringSubmatch(line); m != nil && countDigits(m[1]) > 0 {
		c.add(domain.EntityInvoiceNumber, m[1], 0.9)
	}
	if m := rePaymentTerms.FindString(line); m != "" {
		c.add(domain.EntityPaymentTerms, m, 0.8)
	}
}

func extractDates(c *collector, line string) {
	due := reDueKw.MatchString(line)
	for _, re := range reDates {
		for _, m := range re.FindAllString(line, -1) {
			if due {
				c.add(domain.EntityDueDate, m, 0.85)
				continue
			}
			c.add(domain.EntityDate, m, 0.85)
		}
	}
}

func extractContractCues(c *collector, line string) {
	if reSignature.MatchString(line) {
		c.add(domain.EntitySignature, line, 0.75)
	}
	if m := rePartyLabel.FindStringSubmatch(line); m != nil {
		c.add(domain.EntityContractParty, m[1], 0.8)
	}
}

// extractOrganizations finds company names by legal suffix, and the vendor
// either from an explicit label or the header line of a priced document.
func extractOrganizations(c *collector, lines []string) {
	for _, line := range lines {
		if m := reVendorLabel.FindStringSubmatch(line); m != nil {
			c.add(domain.EntityVendorName, m[1], 0.85)
		}
		if m := reCompany.FindString(line); m != "" {
			c.add(domain.EntityCompanyName, m, 0.8)
		}
	}

	priced := c.has(domain.EntityTotalAmount) || c.has(domain.EntityInvoiceNumber)
	if !priced || c.has(domain.EntityVendorName) {
		return
	}
	for _, line := range lines {
		if m := reCompany.FindString(line); m != "" {
			c.add(domain.EntityVendorName, m, 0.75)
			return
		}
	}
	for _, line := range lines {
		if isHeaderCandidate(line) {
			c.add(domain.EntityVendorName, line, 0.6)
			return
		}
	}
}

// extractPeople looks for short lines of capitalized words. Names next to a
// job title or contact detail score higher.
func extractPeople(c *collector, lines []string) {
	contactCard := c.has(domain.EntityJobTitle) || c.has(domain.EntityEmail) || c.has(domain.EntityPhone)
	for i, line := range lines {
		if !isNameLine(line) {
			continue
		}
		conf := 0.45
		if contactCard {
			conf = 0.65
		}
		if neighbourIsJobTitle(lines, i) {
			conf = 0.85
		}
		c.add(domain.EntityPersonName, line, conf)
	}
}

func neighbourIsJobTitle(lines []string, i int) bool {
	for _, j := range []int{i - 1, i + 1} {
		if j >= 0 && j < len(lines) && isJobTitleLine(lines[j]) {
			return true
		}
	}
	return false
}

func isJobTitleLine(line string) bool {
	if len(strings.Fields(line)) > 6 || reAmount.MatchString(line) {
		return false
	}
	lower := " " + strings.ToLower(line) + " "
	for _, w := range jobTitleWords {
		if strings.Contains(lower, " "+w+" ") || strings.Contains(lower, " "+w+",") {
			return true
		}
	}
	return false
}

func isNameLine(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 3 || isJobTitleLine(line) || reCompany.MatchString(line) {
		return false
	}
	for _, w := range words {
		w = strings.TrimSuffix(w, ".")
		if _, stop := nameStopwords[strings.ToLower(w)]; stop {
			return false
		}
		runes := []rune(w)
		if len(runes) == 0 || !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes[1:] {
			if !unicode.IsLetter(r) && r != '-' && r != '\'' {
				return false
			}
		}
	}
	return true
}

func isHeaderCandidate(line string) bool {
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > 5 || countDigits(line) > 0 {
		return false
	}
	first := strings.ToLower(strings.Trim(words[0], ":#"))
	_, stop := nameStopwords[first]
	return !stop
}

func overallConfidence(text string, entities []domain.Entity) float64 {
	if len([]rune(strings.TrimSpace(text))) < 30 {
		return 0.3
	}
	types := make(map[domain.EntityType]struct{}, len(entities))
	for _, e := range entities {
		types[e.Type] = struct{}{}
	}
	conf := 0.5 + 0.05*float64(len(types))
	if conf > 0.9 {
		conf = 0.9
	}
	return conf
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > maxLineRunes {
			line = string(r[:maxLineRunes])
		}
		out = append(out, line)
	}
	return out
}

// phoneCandidates skips identifier lines whose digit runs look like phones.
func phoneCandidates(line string) []string {
	if reTaxIDKw.MatchString(line) || reInvoiceNo.MatchString(line) {
		return nil
	}
	return rePhone.FindAllString(line, -1)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func looksLikeDate(s string) bool {
	for _, re := range reDates {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
