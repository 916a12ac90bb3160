package search

import "testing"

func TestQueryParser_Parse(t *testing.T) {
	p := NewQueryParser()
	q := p.Parse(`paper button kind:element owner:PolymerElements`)

	if len(q.Terms) != 2 || q.Terms[0] != "paper" || q.Terms[1] != "button" {
		t.Errorf("unexpected terms: %v", q.Terms)
	}
	if q.Kind != "element" {
		t.Errorf("expected kind filter element, got %q", q.Kind)
	}
	if q.Owner != "PolymerElements" {
		t.Errorf("expected owner filter, got %q", q.Owner)
	}
	if !q.HasFilters() {
		t.Error("expected HasFilters to be true")
	}
}

func TestQueryParser_UnknownFilterBecomesTerm(t *testing.T) {
	p := NewQueryParser()
	q := p.Parse(`color:red widget`)
	found := false
	for _, term := range q.Terms {
		if term == "color:red" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unknown filter to fall back to a term, got %v", q.Terms)
	}
}

func TestParsedQuery_ToTsQuery(t *testing.T) {
	p := NewQueryParser()
	q := p.Parse("paper button")
	got := q.ToTsQuery()
	want := "paper:* & button:*"
	if got != want {
		t.Errorf("ToTsQuery() = %q, want %q", got, want)
	}
}

func TestParsedQuery_ToTsQuery_Empty(t *testing.T) {
	p := NewQueryParser()
	q := p.Parse("kind:element")
	if got := q.ToTsQuery(); got != "" {
		t.Errorf("expected empty tsquery for a filter-only query, got %q", got)
	}
}
