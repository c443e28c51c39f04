package arbitrage

import "testing"

func TestGroupAcceptsBinaryYesNo(t *testing.T) {
	g := NewMarketGrouper(testLogger())
	m := RawMarket{
		MarketID: "m1",
		Question: "Will it rain tomorrow?",
		Outcomes: []RawOutcome{{TokenID: "t1", Label: "Yes"}, {TokenID: "t2", Label: "No"}},
	}
	pair, ok := g.Group(m)
	if !ok {
		t.Fatal("expected binary market to be grouped")
	}
	if pair.YesTokenID != "t1" || pair.NoTokenID != "t2" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}

func TestGroupRejectsResolved(t *testing.T) {
	g := NewMarketGrouper(testLogger())
	m := RawMarket{
		MarketID: "m1",
		Resolved: true,
		Outcomes: []RawOutcome{{TokenID: "t1", Label: "Yes"}, {TokenID: "t2", Label: "No"}},
	}
	if _, ok := g.Group(m); ok {
		t.Fatal("expected resolved market to be rejected")
	}
}

func TestGroupRejectsMultiOutcome(t *testing.T) {
	g := NewMarketGrouper(testLogger())
	m := RawMarket{
		MarketID: "m1",
		Outcomes: []RawOutcome{{TokenID: "t1", Label: "A"}, {TokenID: "t2", Label: "B"}, {TokenID: "t3", Label: "C"}},
	}
	if _, ok := g.Group(m); ok {
		t.Fatal("expected non-binary market to be rejected")
	}
}
