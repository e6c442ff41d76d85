package wallet

import "fmt"

// TokenPackage is one purchasable bundle of OTT tokens. The catalog is
// immutable reference data loaded at startup.
type TokenPackage struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	BaseTokens      int64   `json:"baseTokens"`
	BonusTokens     int64   `json:"bonusTokens"`
	EffectiveTokens int64   `json:"effectiveTokens"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
}

// Catalog holds the purchasable packages in display order.
type Catalog struct {
	packages []TokenPackage
	byID     map[string]TokenPackage
}

func NewCatalog(packages []TokenPackage) (*Catalog, error) {
	if len(packages) == 0 {
		packages = defaultPackages()
	}
	if err := ValidatePackages(packages); err != nil {
		return nil, err
	}
	byID := make(map[string]TokenPackage, len(packages))
	for _, p := range packages {
		byID[p.ID] = p
	}
	return &Catalog{packages: packages, byID: byID}, nil
}

func (c *Catalog) List() []TokenPackage {
	out := make([]TokenPackage, len(c.packages))
	copy(out, c.packages)
	return out
}

func (c *Catalog) Get(id string) (TokenPackage, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// ValidatePackages enforces the catalog consistency rule: effective tokens
// must equal base plus bonus for every entry.
func ValidatePackages(packages []TokenPackage) error {
	seen := make(map[string]struct{}, len(packages))
	for _, p := range packages {
		if p.ID == "" {
			return fmt.Errorf("package %q has no id", p.Name)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate package id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.BaseTokens <= 0 {
			return fmt.Errorf("package %q: base tokens must be positive", p.ID)
		}
		if p.BonusTokens < 0 {
			return fmt.Errorf("package %q: bonus tokens must not be negative", p.ID)
		}
		if p.EffectiveTokens != p.BaseTokens+p.BonusTokens {
			return fmt.Errorf("package %q: effective tokens %d != base %d + bonus %d",
				p.ID, p.EffectiveTokens, p.BaseTokens, p.BonusTokens)
		}
		if p.Price <= 0 {
			return fmt.Errorf("package %q: price must be positive", p.ID)
		}
	}
	return nil
}

func defaultPackages() []TokenPackage {
	return []TokenPackage{
		{ID: "starter", Name: "Starter", BaseTokens: 100, BonusTokens: 0, EffectiveTokens: 100, Price: 9.99, Currency: "usd"},
		{ID: "plus", Name: "Plus", BaseTokens: 500, BonusTokens: 50, EffectiveTokens: 550, Price: 49.99, Currency: "usd"},
		{ID: "pro", Name: "Pro", BaseTokens: 1000, BonusTokens: 150, EffectiveTokens: 1150, Price: 99.99, Currency: "usd"},
		{ID: "whale", Name: "Ultimate", BaseTokens: 5000, BonusTokens: 1250, EffectiveTokens: 6250, Price: 449.99, Currency: "usd"},
	}
}
