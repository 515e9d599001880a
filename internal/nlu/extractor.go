// Package nlu implements the deterministic language layer: regex-based
// entity extraction, topic scoring and complete-request detection. Nothing
// in here is statistical; the same input always yields the same output.
package nlu

import (
	"regexp"
	"strings"
)

// Entity types produced by Extract.
const (
	EntityOrderNumber     = "order_number"
	EntityProductName     = "product_name"
	EntityOrderedProduct  = "ordered_product"
	EntityReceivedProduct = "received_product"
	EntityDeliveryIssue   = "delivery_issue"
	EntityDate            = "date"
	EntityEmail           = "email"
	EntityPhone           = "phone"
	EntityIssueType       = "issue_type"
)

type entityPattern struct {
	entityType string
	patterns   []*regexp.Regexp
}

// entityPatterns is an ordered table; within a type, earlier patterns are
// more specific and run first.
var entityPatterns = []entityPattern{
	{EntityOrderNumber, compileAll(
		`#(\d{3,8})`,
		`order\s*#?\s*(\d{3,8})`,
		`\border\s+(\d{3,8})\b`,
		`\b([A-Z]{2,3}\d{4,6})\b`,
	)},
	{EntityProductName, compileAll(
		`product\s+([A-Za-z0-9\s]+?)(?:\s|$)`,
		`item\s+([A-Za-z0-9\s]+?)(?:\s|$)`,
		`([A-Za-z]+\s*\d+[A-Za-z]*)`,
		`(apples?|bananas?|oranges?|grapes?|strawberr(?:y|ies)|laptop|phone|tablet|headphones?|shoes?|shirt|dress|book|chair|table)`,
	)},
	{EntityOrderedProduct, compileAll(
		`ordered\s+([A-Za-z\s]+?)(?:\s|$)`,
		`bought\s+([A-Za-z\s]+?)(?:\s|$)`,
		`purchased\s+([A-Za-z\s]+?)(?:\s|$)`,
		`supposed\s+to\s+get\s+([A-Za-z\s]+?)(?:\s|$)`,
		`expected\s+([A-Za-z\s]+?)(?:\s|$)`,
		`wanted\s+([A-Za-z\s]+?)(?:\s|$)`,
	)},
	{EntityReceivedProduct, compileAll(
		`got\s+([A-Za-z\s]+?)(?:\s|$)`,
		`received\s+([A-Za-z\s]+?)(?:\s|$)`,
		`delivered\s+([A-Za-z\s]+?)(?:\s|$)`,
		`sent\s+me\s+([A-Za-z\s]+?)(?:\s|$)`,
		`came\s+with\s+([A-Za-z\s]+?)(?:\s|$)`,
		`instead\s+of\s+.*got\s+([A-Za-z\s]+?)(?:\s|$)`,
	)},
	{EntityDeliveryIssue, compileAll(
		`(delayed|late|missing|lost|damaged|broken|wrong|incorrect)`,
		`(not.*delivered|never.*arrived|still.*waiting)`,
	)},
	{EntityDate, compileAll(
		`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`,
		`(today|tomorrow|yesterday)`,
		`(\d{1,2}\s+(?:days?|weeks?|months?)\s+ago)`,
		`(next\s+week|last\s+week|this\s+week)`,
	)},
	{EntityEmail, compileAll(
		`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`,
	)},
	{EntityPhone, compileAll(
		`(\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4})`,
	)},
	{EntityIssueType, compileAll(
		`(refund|return|exchange|replacement|cancel|billing|account|technical|login|password)`,
	)},
}

// productLike entity types get the extra stop-word filter below.
var productLike = map[string]bool{
	EntityProductName:     true,
	EntityOrderedProduct:  true,
	EntityReceivedProduct: true,
}

var productStopWords = map[string]bool{
	"the": true, "and": true, "but": true,
	"got": true, "item": true, "product": true,
}

func compileAll(exprs ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		res = append(res, regexp.MustCompile(`(?i)`+e))
	}
	return res
}

// Extract runs every entity pattern against the message and returns the
// deduplicated capture-group matches per entity type. Product-like matches
// are lower-cased and must be at least three characters and not a filler
// word; everything else is returned as matched.
func Extract(message string) map[string][]string {
	entities := make(map[string][]string)
	for _, ep := range entityPatterns {
		var matches []string
		seen := make(map[string]bool)
		for _, re := range ep.patterns {
			for _, m := range re.FindAllStringSubmatch(message, -1) {
				val := strings.TrimSpace(m[1])
				if val == "" {
					continue
				}
				if productLike[ep.entityType] {
					val = strings.ToLower(val)
					if len(val) <= 2 || productStopWords[val] {
						continue
					}
				}
				if !seen[val] {
					seen[val] = true
					matches = append(matches, val)
				}
			}
		}
		if len(matches) > 0 {
			entities[ep.entityType] = matches
		}
	}
	return entities
}

var (
	slotDigitsRe     = regexp.MustCompile(`(\d+)`)
	slotCustomerIDRe = regexp.MustCompile(`CUST\d+`)
)

// OrderIDSlot is the permissive slot-filling extractor: the first run of
// digits anywhere in the message, so "45", "ORD45" and "#45" all fill the
// slot. Deliberately looser than the order_number entity patterns.
func OrderIDSlot(message string) string {
	return slotDigitsRe.FindString(message)
}

// CustomerIDSlot finds a CUST-prefixed customer id, case-insensitively.
func CustomerIDSlot(message string) string {
	return slotCustomerIDRe.FindString(strings.ToUpper(message))
}
