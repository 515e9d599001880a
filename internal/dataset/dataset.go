// Package dataset loads and queries the reference data every workflow
// answer is built from: the customer/order dataset and the FAQ dataset.
// Both are JSON files on disk; a store can hot-reload them when they change.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// File names the store expects inside its dataset directory.
const (
	OrdersFile = "customer_order_dataset.json"
	FAQFile    = "ai_customer_support_data.json"
)

// Order is one purchase inside a customer record.
type Order struct {
	OrderID     string `json:"order_id"`
	Product     string `json:"product"`
	Platform    string `json:"platform"`
	Status      string `json:"status"`
	PaymentMode string `json:"payment_mode"`
	Amount      int    `json:"amount"`
}

// Customer is one record in the customer/order dataset.
type Customer struct {
	CustomerID string  `json:"customer_id"`
	Name       string  `json:"name"`
	Orders     []Order `json:"orders"`
}

// FAQ is one entry in the FAQ dataset.
type FAQ struct {
	Category string `json:"category"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// OrderRecord is an order flattened together with its owning customer, the
// shape lookups return.
type OrderRecord struct {
	Order
	CustomerID   string
	CustomerName string
}

// CustomerProfile summarizes one customer across all their orders.
type CustomerProfile struct {
	CustomerID  string
	Name        string
	TotalOrders int
	TotalAmount int

	// Status counts, bucketed by substring match on the raw status.
	Delivered int
	InTransit int
	Returned  int
	Pending   int

	// Payment mode counts.
	COD    int
	Card   int
	UPI    int
	Wallet int

	// Platform name -> order count, plus the names in stable order.
	Platforms     map[string]int
	PlatformNames []string

	Orders []Order
}

// Store holds the loaded datasets behind a read-write lock so queries stay
// cheap and a reload swaps everything at once.
type Store struct {
	dir string

	mu        sync.RWMutex
	customers []Customer
	orders    map[string]OrderRecord // exact order id -> record
	ordersNum map[string]OrderRecord // digit run of order id -> record
	faqs      []FAQ
	byCat     map[string][]FAQ
}

// Load reads both dataset files from dir and returns a ready store.
func Load(dir string) (*Store, error) {
	s := &Store{dir: dir}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads both files and swaps the in-memory data. On any error the
// previous data is kept untouched.
func (s *Store) Reload() error {
	var customers []Customer
	if err := readJSON(filepath.Join(s.dir, OrdersFile), &customers); err != nil {
		return fmt.Errorf("load orders dataset: %w", err)
	}
	var faqs []FAQ
	if err := readJSON(filepath.Join(s.dir, FAQFile), &faqs); err != nil {
		return fmt.Errorf("load faq dataset: %w", err)
	}

	orders := make(map[string]OrderRecord)
	ordersNum := make(map[string]OrderRecord)
	for _, c := range customers {
		for _, o := range c.Orders {
			rec := OrderRecord{Order: o, CustomerID: c.CustomerID, CustomerName: c.Name}
			orders[o.OrderID] = rec
			if num := digitRun(o.OrderID); num != "" {
				ordersNum[num] = rec
			}
		}
	}

	byCat := make(map[string][]FAQ)
	for _, f := range faqs {
		key := strings.ToLower(f.Category)
		byCat[key] = append(byCat[key], f)
	}

	s.mu.Lock()
	s.customers = customers
	s.orders = orders
	s.ordersNum = ordersNum
	s.faqs = faqs
	s.byCat = byCat
	s.mu.Unlock()
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

var digitRunRe = regexp.MustCompile(`\d+`)

func digitRun(s string) string {
	return digitRunRe.FindString(s)
}

// OrderByID looks up an order by id. It tries the exact id first, then
// matches on the numeric portion, so "45", "ORD45" and "#45" all find the
// same order.
func (s *Store) OrderByID(orderID string) (OrderRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := strings.TrimSpace(orderID)
	if rec, ok := s.orders[id]; ok {
		return rec, true
	}
	if num := digitRun(id); num != "" {
		if rec, ok := s.ordersNum[num]; ok {
			return rec, true
		}
	}
	return OrderRecord{}, false
}

// CustomerByID builds the profile summary for a customer id.
func (s *Store) CustomerByID(customerID string) (CustomerProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.CustomerID != customerID {
			continue
		}
		p := CustomerProfile{
			CustomerID:  c.CustomerID,
			Name:        c.Name,
			TotalOrders: len(c.Orders),
			Platforms:   make(map[string]int),
			Orders:      append([]Order(nil), c.Orders...),
		}
		for _, o := range c.Orders {
			p.TotalAmount += o.Amount

			status := strings.ToLower(o.Status)
			switch {
			case strings.Contains(status, "delivered"):
				p.Delivered++
			case strings.Contains(status, "transit"), strings.Contains(status, "shipping"):
				p.InTransit++
			case strings.Contains(status, "returned"):
				p.Returned++
			default:
				p.Pending++
			}

			payment := strings.ToLower(o.PaymentMode)
			switch {
			case strings.Contains(payment, "cod"):
				p.COD++
			case strings.Contains(payment, "card"):
				p.Card++
			case strings.Contains(payment, "upi"):
				p.UPI++
			case strings.Contains(payment, "wallet"):
				p.Wallet++
			}

			p.Platforms[o.Platform]++
		}
		for name := range p.Platforms {
			p.PlatformNames = append(p.PlatformNames, name)
		}
		sort.Strings(p.PlatformNames)
		return p, true
	}
	return CustomerProfile{}, false
}

// faqCategoryKeywords drive the rule-based category match. The list is
// ordered: on a keyword-count tie the earlier category wins.
var faqCategoryKeywords = []struct {
	name     string
	keywords []string
}{
	{"orders", []string{"order", "track", "tracking", "purchase", "buy", "bought", "placed"}},
	{"returns & refunds", []string{"return", "refund", "exchange", "money back", "cancel"}},
	{"billing", []string{"bill", "payment", "charge", "invoice", "cost", "price", "money", "charged"}},
	{"delivery", []string{"delivery", "shipping", "deliver", "ship", "arrive", "when will"}},
	{"account & login", []string{"account", "login", "password", "sign in", "register"}},
	{"technical issues", []string{"error", "bug", "not working", "broken", "issue", "problem"}},
	{"general queries", []string{"help", "support", "question", "how to", "what is", "contact"}},
	{"offers & discounts", []string{"coupon", "discount", "offer", "promo", "code"}},
	{"payments", []string{"payment", "pay", "failed", "deducted"}},
}

// FAQAnswer matches a free-form question against the FAQ dataset: pick the
// category with the most keyword hits, then the entry with the largest word
// overlap with the question, falling back to the category's first entry.
// Returns false when no category keyword matches at all.
func (s *Store) FAQAnswer(question string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(question))

	bestCategory := ""
	maxMatches := 0
	for _, cat := range faqCategoryKeywords {
		matches := 0
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > maxMatches {
			maxMatches = matches
			bestCategory = cat.name
		}
	}
	if bestCategory == "" {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.byCat[bestCategory]
	if len(entries) == 0 {
		return "", false
	}

	questionWords := wordSet(lower)
	var best *FAQ
	bestScore := 0
	for i := range entries {
		common := 0
		for w := range wordSet(strings.ToLower(entries[i].Question)) {
			if questionWords[w] {
				common++
			}
		}
		if common > bestScore {
			bestScore = common
			best = &entries[i]
		}
	}
	if best == nil {
		best = &entries[0]
	}
	return best.Answer, true
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}
