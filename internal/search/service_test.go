package search

import (
	"errors"
	"testing"
)

type fakeBackend struct {
	healthy  bool
	searchFn func(q Query) ([]Result, int, error)
}

func (f *fakeBackend) Healthy() bool { return f.healthy }

func (f *fakeBackend) Search(q Query) ([]Result, int, error) {
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return nil, 0, nil
}

func hit(id, title string) Result {
	return Result{Type: ResultSuggestion, ID: id, Title: title, SuggestionID: id}
}

func TestSearchUsesPrimaryWhenHealthy(t *testing.T) {
	fallbackCalled := false
	primary := &fakeBackend{
		healthy: true,
		searchFn: func(q Query) ([]Result, int, error) {
			return []Result{hit("sug-1", "Reduce memory usage")}, 1, nil
		},
	}
	fallback := &fakeBackend{
		healthy: true,
		searchFn: func(q Query) ([]Result, int, error) {
			fallbackCalled = true
			return nil, 0, nil
		},
	}

	svc := NewService(primary, fallback, nil)
	resp := svc.Search(Query{Text: "memory"})

	if fallbackCalled {
		t.Fatal("expected fallback to stay idle while primary is healthy")
	}
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != "sug-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Query != "memory" {
		t.Fatalf("expected query echoed back, got %q", resp.Query)
	}
}

func TestSearchFallsBackWhenPrimaryUnhealthy(t *testing.T) {
	primary := &fakeBackend{
		healthy: false,
		searchFn: func(q Query) ([]Result, int, error) {
			t.Fatal("unhealthy primary must not be queried")
			return nil, 0, nil
		},
	}
	fallback := &fakeBackend{
		searchFn: func(q Query) ([]Result, int, error) {
			return []Result{hit("sug-2", "Add retry loop")}, 1, nil
		},
	}

	resp := NewService(primary, fallback, nil).Search(Query{Text: "retry"})

	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != "sug-2" {
		t.Fatalf("expected fallback result, got %+v", resp)
	}
}

func TestSearchFallsBackWhenPrimaryErrors(t *testing.T) {
	primary := &fakeBackend{
		healthy: true,
		searchFn: func(q Query) ([]Result, int, error) {
			return nil, 0, errors.New("index unavailable")
		},
	}
	fallback := &fakeBackend{
		searchFn: func(q Query) ([]Result, int, error) {
			return []Result{hit("sug-3", "Tune cache size")}, 1, nil
		},
	}

	resp := NewService(primary, fallback, nil).Search(Query{Text: "cache"})

	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != "sug-3" {
		t.Fatalf("expected fallback result after primary error, got %+v", resp)
	}
}

func TestSearchWithoutPrimaryUsesFallback(t *testing.T) {
	fallback := &fakeBackend{
		searchFn: func(q Query) ([]Result, int, error) {
			return []Result{hit("sug-4", "Split handler")}, 1, nil
		},
	}

	resp := NewService(nil, fallback, nil).Search(Query{Text: "handler"})

	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].ID != "sug-4" {
		t.Fatalf("expected fallback result, got %+v", resp)
	}
}

func TestSearchFallbackErrorYieldsEmptyResponse(t *testing.T) {
	fallback := &fakeBackend{
		searchFn: func(q Query) ([]Result, int, error) {
			return nil, 0, errors.New("connection refused")
		},
	}

	resp := NewService(nil, fallback, nil).Search(Query{Text: "anything"})

	if resp.Results == nil || len(resp.Results) != 0 || resp.Total != 0 {
		t.Fatalf("expected empty response, got %+v", resp)
	}
	if resp.Query != "anything" {
		t.Fatalf("expected query echoed back, got %q", resp.Query)
	}
}
