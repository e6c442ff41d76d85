package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCatalogInvariant(t *testing.T) {
	catalog, err := NewCatalog(nil)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	for _, p := range catalog.List() {
		if p.EffectiveTokens != p.BaseTokens+p.BonusTokens {
			t.Errorf("package %q: effective %d != base %d + bonus %d", p.ID, p.EffectiveTokens, p.BaseTokens, p.BonusTokens)
		}
	}
}

func TestValidatePackagesRejectsBrokenTotals(t *testing.T) {
	broken := []TokenPackage{
		{ID: "x", Name: "X", BaseTokens: 100, BonusTokens: 10, EffectiveTokens: 120, Price: 9.99},
	}
	if err := ValidatePackages(broken); err == nil {
		t.Fatalf("ValidatePackages() should reject inconsistent totals")
	}
	if _, err := NewCatalog(broken); err == nil {
		t.Fatalf("NewCatalog() should reject inconsistent totals")
	}
}

func TestValidatePackagesRejectsDuplicates(t *testing.T) {
	dup := []TokenPackage{
		{ID: "a", Name: "A", BaseTokens: 1, EffectiveTokens: 1, Price: 1},
		{ID: "a", Name: "B", BaseTokens: 1, EffectiveTokens: 1, Price: 1},
	}
	if err := ValidatePackages(dup); err == nil {
		t.Fatalf("ValidatePackages() should reject duplicate ids")
	}
}

func TestPriceToCents(t *testing.T) {
	cases := []struct {
		price float64
		want  int64
	}{
		{9.99, 999},
		{99.99, 9999},
		{449.99, 44999},
		{0.1, 10},
	}
	for _, tc := range cases {
		if got := priceToCents(tc.price); got != tc.want {
			t.Errorf("priceToCents(%v) = %d, want %d", tc.price, got, tc.want)
		}
	}
}

func TestMockLinkerCarriesPackageAmount(t *testing.T) {
	link, err := MockLinker{}.CreateLink(context.Background(), PurchaseIntent{
		Package: TokenPackage{ID: "pro", BaseTokens: 1000, BonusTokens: 150, EffectiveTokens: 1150, Price: 99.99},
	})
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if !strings.Contains(link.URL, "pro") || !strings.Contains(link.URL, "9999") {
		t.Fatalf("link url = %q", link.URL)
	}
}

func TestPagerClampingAndWindow(t *testing.T) {
	// 45 items, 20 per page: pages 1..3.
	p := NewPager(1, 20, 45)
	if p.TotalPages() != 3 {
		t.Fatalf("TotalPages() = %d, want 3", p.TotalPages())
	}
	if p.HasPrev() {
		t.Fatalf("page 1 must not have prev")
	}

	p = p.Next().Next()
	if p.Page != 3 || p.HasNext() {
		t.Fatalf("page = %d, HasNext = %v, want last page unreachable forward", p.Page, p.HasNext())
	}

	// Next saturates on the last page.
	p = p.Next()
	if p.Page != 3 {
		t.Fatalf("Next() past the end moved to page %d", p.Page)
	}
	start, end := p.Window()
	if start != 40 || end != 45 {
		t.Fatalf("Window() = [%d, %d), want [40, 45)", start, end)
	}

	// Requested pages beyond totalPages clamp on construction too.
	p = NewPager(99, 20, 45)
	if p.Page != 3 {
		t.Fatalf("NewPager(99) page = %d, want 3", p.Page)
	}
	p = NewPager(-4, 20, 45)
	if p.Page != 1 {
		t.Fatalf("NewPager(-4) page = %d, want 1", p.Page)
	}
}

func TestPagerEmptyHistory(t *testing.T) {
	p := NewPager(1, 20, 0)
	if p.TotalPages() != 1 || p.HasNext() || p.HasPrev() {
		t.Fatalf("empty history pager = %+v", p)
	}
	start, end := p.Window()
	if start != 0 || end != 0 {
		t.Fatalf("Window() = [%d, %d), want [0, 0)", start, end)
	}
}

func TestHistoryClientPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("user_id") != "u1" || q.Get("page") != "2" || q.Get("page_size") != "10" {
			t.Errorf("query = %v", q)
		}
		_ = json.NewEncoder(w).Encode(HistoryPage{
			Transactions:   []Transaction{{ID: "t1", Kind: "purchase", Amount: Amount{OTT: 1150, USD: 99.99}}},
			TotalReceived:  Amount{OTT: 1150, USD: 99.99},
			BalanceSummary: Amount{OTT: 1150},
			TotalCount:     11,
		})
	}))
	defer srv.Close()

	page, err := NewHistoryClient(srv.URL).Page(context.Background(), "u1", 2, 10)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if page.TotalCount != 11 || len(page.Transactions) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Transactions[0].Amount.USD != 99.99 {
		t.Fatalf("amount = %+v", page.Transactions[0].Amount)
	}
}

func TestHistoryClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHistoryClient(srv.URL).Page(context.Background(), "u1", 1, 10); err == nil {
		t.Fatalf("Page() should fail on 503")
	}
}
