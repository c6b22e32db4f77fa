package canon

import (
	"testing"

	"statement-ledger/internal/models"
)

func TestOpensTransaction(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Purchase authorized on 06/10 Starbucks Card 5280", true},
		{"ATM Withdrawal authorized on 06/10 Main St Card 5280 40.00", true},
		{"Purchase with Cash Back $20.00 authorized on 06/10 Target Card 5280", true},
		{"Acme Corp Payroll 250610", true},
		{"Netflix.Com CA S385176584765712 Card 5280", false},
		{"Virginia Beach VA", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := OpensTransaction(tt.line); got != tt.want {
				t.Errorf("OpensTransaction(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestClassifyKind(t *testing.T) {
	tests := []struct {
		descriptor string
		kind       models.Kind
		ok         bool
	}{
		{"Purchase with Cash Back $60.00 authorized on 06/27 Food Lion Card 5280", models.KindCashbackPurchase, true},
		{"Acme Corp Payroll 250627 xxxxx1234", models.KindDeposit, true},
		{"Zelle From Jane Doe on 06/12 Ref # Pp0Abc", models.KindDeposit, true},
		{"Mobile Deposit : Ref Number :612345678", models.KindDeposit, true},
		{"Dominion Energy Billpay 250605", models.KindBillPayment, true},
		{"Verizon Wireless Payments 250605", models.KindBillPayment, true},
		{"Online Transfer to Savings xxxxxx1234 Ref #Ib0abc", models.KindBillPayment, true},
		{"Purchase authorized on 06/25 City of Norfolk Norfolk VA Card 5280", models.KindCardPurchase, true},
		{"Starbucks Store 1234 Card 5280", models.KindCardPurchase, true},
		{"Totals carried forward", "", false},
		{"Netflix.Com CA S385176584765712", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.descriptor, func(t *testing.T) {
			kind, ok := ClassifyKind(tt.descriptor)
			if !tt.ok {
				if ok {
					t.Errorf("did not expect a kind, got %s", kind)
				}
				return
			}
			if !ok || kind != tt.kind {
				t.Errorf("expected %s, got %s (ok=%v)", tt.kind, kind, ok)
			}
		})
	}
}

func TestIsCredit(t *testing.T) {
	tests := []struct {
		descriptor string
		credit     bool
	}{
		{"Purchase authorized on 06/25 City of Norfolk Norfolk VA Card 5280", false},
		{"Purchase Return authorized on 06/20 Target Card 5280", true},
		{"Online Transfer From Savings xxxxxx1234", true},
		{"Online Transfer to Savings xxxxxx1234", false},
		{"SSA Treas 310 Xxsoc Sec", true},
		{"Interest Payment", true},
		{"Chase Credit Crd Epay 250610", false},
		{"Acme Payroll ACH Credit", true},
		{"Verizon Wireless Payments", false},
	}

	for _, tt := range tests {
		t.Run(tt.descriptor, func(t *testing.T) {
			if got := IsCredit(tt.descriptor); got != tt.credit {
				t.Errorf("IsCredit(%q) = %v, want %v", tt.descriptor, got, tt.credit)
			}
		})
	}
}

func TestCanonicalMerchantOrder(t *testing.T) {
	tests := []struct {
		descriptor string
		name       string
		ok         bool
	}{
		{"Uber Eats Help.Uber.Com CA", "Uber Eats", true},
		{"Uber Trip Help.Uber.Com", "Uber", true},
		{"Sams Club #8201 Chesapeake VA", "Sam's Club", true},
		{"WM Supercenter #1234", "Walmart", true},
		{"AMZN Mktp US*2K4", "Amazon", true},
		{"Joe's Crab Shack", "", false},
	}

	for _, tt := range tests {
		name, ok := CanonicalMerchant(tt.descriptor)
		if ok != tt.ok || name != tt.name {
			t.Errorf("CanonicalMerchant(%q) = %q, %v; want %q, %v", tt.descriptor, name, ok, tt.name, tt.ok)
		}
	}
}

func TestSignalCategoryFor(t *testing.T) {
	tests := []struct {
		descriptor string
		category   string
	}{
		{"Acme Corp Payroll", "Income"},
		{"Zelle to John Payroll Share", models.CategoryUncategorized},
		{"Interest Payment", "Interest"},
		{"Monthly Service Fee", "Fees"},
		{"Corner Bistro", models.CategoryUncategorized},
	}

	for _, tt := range tests {
		if got := SignalCategoryFor(tt.descriptor); got != tt.category {
			t.Errorf("SignalCategoryFor(%q) = %q, want %q", tt.descriptor, got, tt.category)
		}
	}
}

func TestPatterns(t *testing.T) {
	if !InternalTransferPattern.MatchString("Online Transfer to Savings xxxxxx1234") {
		t.Error("expected internal transfer match")
	}
	if InternalTransferPattern.MatchString("Zelle to Jane Doe") {
		t.Error("zelle payments are not internal transfers")
	}
	if !StrongDepositPattern.MatchString("Acme Payroll") {
		t.Error("payroll is a strong deposit")
	}
	if StrongDepositPattern.MatchString("Zelle From Jane Doe") {
		t.Error("zelle credits are ambiguous, not strong deposits")
	}
	if !RecurringPattern.MatchString("Recurring Payment authorized on 06/03 Netflix.Com") {
		t.Error("expected recurring match")
	}
	m := CashbackAmountPattern.FindStringSubmatch("Purchase with Cash Back $60.00 authorized on 06/27")
	if m == nil || m[1] != "60.00" {
		t.Errorf("unexpected cashback amount match %v", m)
	}
	if !IsStopword("va") || !IsStopword("purchase") || IsStopword("lion") {
		t.Error("unexpected stopword membership")
	}
}
