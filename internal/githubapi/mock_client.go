package githubapi

import (
	"context"
	"strings"
	"time"

	"github.com/hitoshi/dcode/internal/model"
)

// MockClientConfig はMockClientの待ち時間の設定。
type MockClientConfig struct {
	UserReposDelay     time.Duration
	ContributionsDelay time.Duration
	SearchDelay        time.Duration
}

// DefaultMockClientConfig はMockClientの既定の待ち時間を返す。
func DefaultMockClientConfig() MockClientConfig {
	return MockClientConfig{
		UserReposDelay:     800 * time.Millisecond,
		ContributionsDelay: 1000 * time.Millisecond,
		SearchDelay:        600 * time.Millisecond,
	}
}

// MockClient は固定のデータを返すClient。
type MockClient struct {
	config MockClientConfig
}

// NewMockClient はMockClientを生成する。
func NewMockClient(config MockClientConfig) *MockClient {
	return &MockClient{config: config}
}

// FetchUserRepositories はユーザーのリポジトリ一覧を返す。
func (c *MockClient) FetchUserRepositories(ctx context.Context) ([]model.Repository, error) {
	if err := wait(ctx, c.config.UserReposDelay); err != nil {
		return nil, &FetchError{Op: "fetch repositories", Err: err}
	}

	owner := model.RepositoryOwner{Login: "demo_user", AvatarURL: "https://avatars.githubusercontent.com/u/12345?v=4"}
	return []model.Repository{
		{
			ID:              1,
			Name:            "awesome-project",
			FullName:        "demo_user/awesome-project",
			Description:     ptr("An awesome React project for learning"),
			HTMLURL:         "https://github.com/demo_user/awesome-project",
			Language:        ptr("TypeScript"),
			StargazersCount: 15,
			ForksCount:      3,
			UpdatedAt:       mustTime("2024-12-01T10:00:00Z"),
			Owner:           owner,
		},
		{
			ID:              2,
			Name:            "node-api-server",
			FullName:        "demo_user/node-api-server",
			Description:     ptr("RESTful API server built with Node.js and Express"),
			HTMLURL:         "https://github.com/demo_user/node-api-server",
			Language:        ptr("JavaScript"),
			StargazersCount: 8,
			ForksCount:      2,
			UpdatedAt:       mustTime("2024-11-28T14:30:00Z"),
			Owner:           owner,
		},
		{
			ID:              3,
			Name:            "python-data-analysis",
			FullName:        "demo_user/python-data-analysis",
			Description:     ptr("Data analysis scripts and notebooks"),
			HTMLURL:         "https://github.com/demo_user/python-data-analysis",
			Language:        ptr("Python"),
			StargazersCount: 22,
			ForksCount:      7,
			UpdatedAt:       mustTime("2024-11-25T09:15:00Z"),
			Owner:           owner,
		},
	}, nil
}

// FetchContributionRepositories はユーザーがコントリビュートしたリポジトリ一覧を返す。
func (c *MockClient) FetchContributionRepositories(ctx context.Context) ([]model.ContributionRepository, error) {
	if err := wait(ctx, c.config.ContributionsDelay); err != nil {
		return nil, &FetchError{Op: "fetch contribution repositories", Err: err}
	}

	return []model.ContributionRepository{
		{
			ID:               101,
			Name:             "open-source-project",
			FullName:         "opensource/open-source-project",
			Description:      ptr("A popular open source project"),
			HTMLURL:          "https://github.com/opensource/open-source-project",
			Language:         ptr("TypeScript"),
			Contributions:    12,
			LastContribution: mustTime("2024-11-30T16:20:00Z"),
			Owner:            model.RepositoryOwner{Login: "opensource", AvatarURL: "https://avatars.githubusercontent.com/u/101?v=4"},
		},
		{
			ID:               102,
			Name:             "react-components",
			FullName:         "community/react-components",
			Description:      ptr("Reusable React components library"),
			HTMLURL:          "https://github.com/community/react-components",
			Language:         ptr("JavaScript"),
			Contributions:    8,
			LastContribution: mustTime("2024-11-22T11:45:00Z"),
			Owner:            model.RepositoryOwner{Login: "community", AvatarURL: "https://avatars.githubusercontent.com/u/102?v=4"},
		},
		{
			ID:               103,
			Name:             "documentation-site",
			FullName:         "docs/documentation-site",
			Description:      ptr("Documentation website built with Next.js"),
			HTMLURL:          "https://github.com/docs/documentation-site",
			Language:         ptr("TypeScript"),
			Contributions:    5,
			LastContribution: mustTime("2024-11-18T08:30:00Z"),
			Owner:            model.RepositoryOwner{Login: "docs", AvatarURL: "https://avatars.githubusercontent.com/u/103?v=4"},
		},
	}, nil
}

// SearchRepositories はキーワードから生成した検索結果を返す。
// キーワードは前後の空白を除いて使用し、空の場合はErrEmptyQueryを返す。
func (c *MockClient) SearchRepositories(ctx context.Context, query string) ([]model.Repository, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &FetchError{Op: "search repositories", Err: ErrEmptyQuery}
	}
	if err := wait(ctx, c.config.SearchDelay); err != nil {
		return nil, &FetchError{Op: "search repositories", Err: err}
	}

	return []model.Repository{
		{
			ID:              201,
			Name:            query + "-search-result-1",
			FullName:        "user/" + query + "-search-result-1",
			Description:     ptr("Search result for " + query + " - first result"),
			HTMLURL:         "https://github.com/user/" + query + "-search-result-1",
			Language:        ptr("TypeScript"),
			StargazersCount: 156,
			ForksCount:      23,
			UpdatedAt:       mustTime("2024-12-01T12:00:00Z"),
			Owner:           model.RepositoryOwner{Login: "user", AvatarURL: "https://avatars.githubusercontent.com/u/201?v=4"},
		},
		{
			ID:              202,
			Name:            query + "-library",
			FullName:        "organization/" + query + "-library",
			Description:     ptr("A library for " + query + " functionality"),
			HTMLURL:         "https://github.com/organization/" + query + "-library",
			Language:        ptr("JavaScript"),
			StargazersCount: 89,
			ForksCount:      12,
			UpdatedAt:       mustTime("2024-11-29T15:30:00Z"),
			Owner:           model.RepositoryOwner{Login: "organization", AvatarURL: "https://avatars.githubusercontent.com/u/202?v=4"},
		},
	}, nil
}

// wait はdだけ待機する。ctxがキャンセルされた場合はその理由を返す。
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ptr(s string) *string {
	return &s
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// compile-time interface check
var _ Client = (*MockClient)(nil)
