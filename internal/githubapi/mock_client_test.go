package githubapi

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockClient_FetchUserRepositories(t *testing.T) {
	client := NewMockClient(MockClientConfig{})

	repos, err := client.FetchUserRepositories(context.Background())
	if err != nil {
		t.Fatalf("FetchUserRepositories() error = %v", err)
	}
	if len(repos) != 3 {
		t.Fatalf("len(repos) = %d, want 3", len(repos))
	}
	if repos[0].FullName != "demo_user/awesome-project" {
		t.Errorf("repos[0].FullName = %q", repos[0].FullName)
	}
	if repos[2].StargazersCount != 22 {
		t.Errorf("repos[2].StargazersCount = %d, want 22", repos[2].StargazersCount)
	}
}

func TestMockClient_FetchContributionRepositories(t *testing.T) {
	client := NewMockClient(MockClientConfig{})

	repos, err := client.FetchContributionRepositories(context.Background())
	if err != nil {
		t.Fatalf("FetchContributionRepositories() error = %v", err)
	}
	total := 0
	for _, r := range repos {
		total += r.Contributions
	}
	if len(repos) != 3 || total != 25 {
		t.Errorf("got %d repos with %d contributions, want 3 and 25", len(repos), total)
	}
}

func TestMockClient_SearchRepositories(t *testing.T) {
	client := NewMockClient(MockClientConfig{})

	repos, err := client.SearchRepositories(context.Background(), "  chi ")
	if err != nil {
		t.Fatalf("SearchRepositories() error = %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("len(repos) = %d, want 2", len(repos))
	}
	if repos[0].Name != "chi-search-result-1" || repos[1].FullName != "organization/chi-library" {
		t.Errorf("unexpected results: %q, %q", repos[0].Name, repos[1].FullName)
	}
}

func TestMockClient_SearchRepositories_EmptyQuery(t *testing.T) {
	client := NewMockClient(MockClientConfig{})

	_, err := client.SearchRepositories(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("error = %v, want ErrEmptyQuery", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Errorf("error should be *FetchError, got %T", err)
	}
}

func TestMockClient_CancelledDuringDelay(t *testing.T) {
	client := NewMockClient(DefaultMockClientConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.FetchContributionRepositories(ctx)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, should wrap context.DeadlineExceeded", err)
	}
}
