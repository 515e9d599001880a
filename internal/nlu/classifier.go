package nlu

import (
	"regexp"
	"sort"
	"strings"
)

// Topics produced by the multi-intent scorer. These are coarse conversation
// topics, distinct from the workflow intents the dialogue manager locks onto.
const (
	TopicOrderTracking   = "order_tracking"
	TopicOrderResolution = "order_resolution"
	TopicProduct         = "product"
	TopicSupport         = "support"
	TopicGeneral         = "general"
)

// Scoring thresholds. A topic is detected at or above detectThreshold; a
// secondary topic below highConfidence is kept only within secondaryMargin
// of the top score; when nothing clears lowConfidenceFloor the scorer
// defaults to general.
const (
	detectThreshold    = 0.3
	highConfidence     = 0.6
	secondaryMargin    = 0.4
	lowConfidenceFloor = 0.2
	defaultGeneralConf = 0.3
)

type topicConfig struct {
	keywords []string
	patterns []*regexp.Regexp
	weight   float64
}

var topicConfigs = map[string]topicConfig{
	TopicOrderTracking: {
		keywords: []string{"track", "tracking", "status", "where is", "when will", "delivery", "shipment", "shipped", "delivered", "eta", "arrive"},
		patterns: compileAll(
			`track.*order`, `order.*status`, `where.*is.*order`, `delivery.*status`,
			`shipment.*info`, `when.*will.*arrive`, `tracking.*number`, `order.*arrive`,
		),
		weight: 1.0,
	},
	TopicOrderResolution: {
		keywords: []string{"cancel", "refund", "return", "replacement", "wrong", "damaged", "broken", "delayed", "late", "problem", "issue"},
		patterns: compileAll(
			`cancel.*order`, `refund.*order`, `return.*order`, `wrong.*item`,
			`damaged.*order`, `delayed.*delivery`, `late.*package`, `problem.*order`,
		),
		weight: 1.0,
	},
	TopicProduct: {
		keywords: []string{"product", "item", "buy", "purchase", "price", "cost", "available", "stock", "specs", "features", "compare"},
		patterns: compileAll(
			`how much.*cost`, `price.*of`, `buy.*product`, `product.*info`,
			`in.*stock`, `available.*product`,
		),
		weight: 1.0,
	},
	TopicSupport: {
		keywords: []string{"refund", "return", "account", "billing", "payment", "technical", "problem", "issue", "help", "support", "login", "password", "reset", "exchange", "wrong", "incorrect", "damaged", "broken"},
		patterns: compileAll(
			`need.*help`, `technical.*problem`, `account.*issue`, `billing.*question`,
			`refund.*request`, `return.*item`, `want.*refund`, `money.*back`,
			`wrong.*item`, `got.*wrong`, `received.*wrong`,
		),
		weight: 1.0,
	},
	TopicGeneral: {
		keywords: []string{"hello", "hi", "hey", "thanks", "thank you", "goodbye", "bye", "what", "how", "why", "when", "internet", "wifi"},
		patterns: compileAll(
			`^(hi|hello|hey)`, `thank.*you`, `good.*(morning|afternoon|evening)`,
			`how.*are.*you`, `internet.*not.*working`, `wifi.*problem`,
		),
		weight: 0.8,
	},
}

// entityTopicBoosts maps an extracted entity type to the topic it raises.
var entityTopicBoosts = map[string]string{
	EntityOrderNumber:     TopicOrderTracking,
	EntityDeliveryIssue:   TopicOrderResolution,
	EntityProductName:     TopicProduct,
	EntityOrderedProduct:  TopicSupport,
	EntityReceivedProduct: TopicSupport,
	EntityEmail:           TopicSupport,
	EntityPhone:           TopicSupport,
	EntityIssueType:       TopicSupport,
}

// ScoreAll computes a raw confidence score per topic: keyword hits weighted
// by position (earlier words count more), 1.5x weight per pattern hit,
// normalized by message length and clamped to [0, 1].
func ScoreAll(message string) map[string]float64 {
	lower := strings.ToLower(strings.TrimSpace(message))
	words := strings.Fields(lower)

	scores := make(map[string]float64, len(topicConfigs))
	for topic, cfg := range topicConfigs {
		score := 0.0

		keywordSet := make(map[string]bool, len(cfg.keywords))
		for _, k := range cfg.keywords {
			keywordSet[k] = true
		}
		for i, w := range words {
			if keywordSet[w] {
				positionWeight := 1.0 - (float64(i)/float64(len(words)))*0.3
				score += cfg.weight * positionWeight
			}
		}

		for _, re := range cfg.patterns {
			if re.MatchString(lower) {
				score += cfg.weight * 1.5
			}
		}

		if n := len(words); n > 0 {
			norm := float64(n) / 5.0
			if norm < 1 {
				norm = 1
			}
			score /= norm
		}
		scores[topic] = clamp01(score)
	}
	return scores
}

// DetectTopics scores the message, applies entity boosts (+0.3 per matched
// entity type, capped at 1.0) and returns the detected topics ordered by
// confidence, plus their confidence scores. A weak secondary topic is
// dropped when it trails the leader by more than the margin. When nothing
// scores, the result defaults to general with a nominal confidence.
func DetectTopics(message string, entities map[string][]string) ([]string, map[string]float64) {
	scores := ScoreAll(message)

	for entityType, values := range entities {
		topic, ok := entityTopicBoosts[entityType]
		if !ok || len(values) == 0 {
			continue
		}
		scores[topic] = clamp01(scores[topic] + 0.3)
	}

	type scored struct {
		topic string
		score float64
	}
	ranked := make([]scored, 0, len(scores))
	for t, s := range scores {
		ranked = append(ranked, scored{t, s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].topic < ranked[j].topic
	})

	var detected []string
	confidences := make(map[string]float64)
	for _, r := range ranked {
		if r.score < detectThreshold {
			break
		}
		if len(detected) >= 1 && r.score < highConfidence && r.score < ranked[0].score-secondaryMargin {
			break
		}
		detected = append(detected, r.topic)
		confidences[r.topic] = r.score
	}

	if len(detected) == 0 || maxValue(confidences) < lowConfidenceFloor {
		return []string{TopicGeneral}, map[string]float64{TopicGeneral: defaultGeneralConf}
	}
	return detected, confidences
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxValue(m map[string]float64) float64 {
	max := 0.0
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

// CompleteRequest is the outcome of scanning one message for a full,
// immediately-actionable support request.
type CompleteRequest struct {
	OrderID    string
	Issue      string
	Resolution string
	IsComplete bool
	IsTracking bool
}

// Issue and resolution values produced by DetectCompleteRequest.
const (
	IssueWrongItem = "wrong_item"
	IssueDelivery  = "delivery"
	IssueDamaged   = "damaged"
	IssueGeneral   = "general"
	IssueCancel    = "cancel"
	IssueTracking  = "tracking"

	ResolutionRefund      = "refund"
	ResolutionReplacement = "replacement"
	ResolutionCancel      = "cancel"
	ResolutionTracking    = "tracking"
)

var trackingKeywords = []string{"track", "tracking", "status", "where is", "when will", "delivery", "shipment", "shipped", "delivered", "eta", "arrive"}

var supportIndicators = []string{"refund", "replacement", "cancel", "wrong", "damaged", "delayed", "broken", "return"}

var orderIDPatterns = compileAll(
	`order\s*#?\s*([A-Z0-9]{3,8})`,
	`#([A-Z0-9]{3,8})`,
	`\b(\d{4,8})\b`,
	`\b([A-Z]{2,3}\d{4,6})\b`,
)

// orderIDStopWords are words the loose alphanumeric patterns can capture
// that are never order ids.
var orderIDStopWords = map[string]bool{
	"is": true, "my": true, "the": true, "and": true, "but": true,
	"got": true, "want": true, "need": true, "status": true,
	"arrive": true, "delivery": true, "order": true, "track": true,
	"where": true, "when": true, "will": true,
}

// ExtractOrderID scans the message with the strict order-id patterns,
// rejecting stop words and letter-only captures. Returns "" when no
// plausible id is present.
func ExtractOrderID(message string) string {
	for _, re := range orderIDPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		id := m[1]
		if orderIDStopWords[strings.ToLower(id)] {
			continue
		}
		if isAllDigits(id) || (len(id) >= 3 && hasDigit(id)) {
			return id
		}
	}
	return ""
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// DetectCompleteRequest decides whether a single message already carries
// everything needed to act on it.
//
// Tracking short-circuits first: any tracking keyword plus an extractable
// order id is complete on its own, no issue or resolution required. For the
// rest, a message without a support indicator is never complete. Refund and
// replacement need an order id and a resolution; a missing issue is inferred
// as general. Cancel needs only an order id; it is its own issue.
func DetectCompleteRequest(message string) CompleteRequest {
	lower := strings.ToLower(message)

	if containsAny(lower, trackingKeywords) {
		if id := ExtractOrderID(message); id != "" {
			return CompleteRequest{
				OrderID:    id,
				Issue:      IssueTracking,
				Resolution: ResolutionTracking,
				IsComplete: true,
				IsTracking: true,
			}
		}
	}

	if !containsAny(lower, supportIndicators) {
		return CompleteRequest{}
	}

	req := CompleteRequest{OrderID: ExtractOrderID(message)}

	switch {
	case containsAny(lower, []string{"got wrong", "received wrong", "wrong item", "instead of", "but got", "sent wrong", "incorrect"}):
		req.Issue = IssueWrongItem
	case containsAny(lower, []string{"delayed", "late", "not arrived", "hasn't arrived", "delivery", "shipping"}):
		req.Issue = IssueDelivery
	case containsAny(lower, []string{"damaged", "broken", "defective", "not working"}):
		req.Issue = IssueDamaged
	}

	switch {
	case containsAny(lower, []string{"refund", "money back", "want refund", "need refund"}):
		req.Resolution = ResolutionRefund
	case containsAny(lower, []string{"replacement", "replace", "new one", "send another"}):
		req.Resolution = ResolutionReplacement
	case containsAny(lower, []string{"cancel", "cancellation", "cancel order"}):
		req.Resolution = ResolutionCancel
	}

	switch req.Resolution {
	case ResolutionRefund, ResolutionReplacement:
		if req.Issue == "" && req.OrderID != "" {
			req.Issue = IssueGeneral
		}
		req.IsComplete = req.OrderID != "" && req.Issue != "" && req.Resolution != ""
	case ResolutionCancel:
		req.Issue = IssueCancel
		req.IsComplete = req.OrderID != ""
	}

	return req
}
