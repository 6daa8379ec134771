package types

import "testing"

func validProduct() Product {
	return Product{
		ID:           "nike-air-max",
		Name:         "Nike Air Max 270",
		Category:     "shoes",
		AnchorPrice:  12995,
		CostPrice:    7000,
		MinMargin:    0.10,
		TargetMargin: 0.30,
		Active:       true,
	}
}

func TestProductValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Product)
		wantErr bool
	}{
		{"valid", func(p *Product) {}, false},
		{"bad-id-chars", func(p *Product) { p.ID = "nike air max!" }, true},
		{"empty-id", func(p *Product) { p.ID = "" }, true},
		{"missing-name", func(p *Product) { p.Name = "" }, true},
		{"zero-anchor", func(p *Product) { p.AnchorPrice = 0 }, true},
		{"negative-cost", func(p *Product) { p.CostPrice = -1 }, true},
		{"cost-above-anchor", func(p *Product) { p.CostPrice = 13000 }, true},
		{"min-margin-out-of-range", func(p *Product) { p.MinMargin = 1.0 }, true},
		{"target-below-min", func(p *Product) { p.TargetMargin = 0.05 }, true},
		{"target-price-above-anchor", func(p *Product) { p.TargetMargin = 0.99 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.mutate(&p)

			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && KindOf(err) != KindBadInput {
				t.Errorf("Validate() kind = %s, want bad_input", KindOf(err))
			}
		})
	}
}

func TestIdentifierPatterns(t *testing.T) {
	if !SessionIDPattern.MatchString("0123456789abcdef0123456789abcdef") {
		t.Error("valid 32-hex session id rejected")
	}
	if SessionIDPattern.MatchString("0123456789ABCDEF0123456789ABCDEF") {
		t.Error("uppercase session id accepted")
	}
	if SessionIDPattern.MatchString("0123456789abcdef") {
		t.Error("short session id accepted")
	}
	if !ProductIDPattern.MatchString("iphone-15_pro") {
		t.Error("valid product id rejected")
	}
	if ProductIDPattern.MatchString("../etc/passwd") {
		t.Error("path-traversal product id accepted")
	}
}
