package dashboard

import (
	"context"
	"strings"

	"github.com/hitoshi/dcode/internal/githubapi"
	"github.com/hitoshi/dcode/internal/model"
	"golang.org/x/sync/errgroup"
)

// FetchRecorder はリポジトリ情報取得の結果を記録するメトリクスのインターフェース。
type FetchRecorder interface {
	RecordDataFetch(operation string, err error)
}

// MyReposView は自分のリポジトリ一覧画面。
type MyReposView struct {
	User         *model.Identity    `json:"user"`
	Repositories []model.Repository `json:"repositories"`
}

// ContributedReposView はコントリビュートしたリポジトリ一覧画面。
// Queryが指定された場合は検索結果も含む。
type ContributedReposView struct {
	User          *model.Identity                `json:"user"`
	Contributions []model.ContributionRepository `json:"contributions"`
	Query         string                         `json:"query,omitempty"`
	SearchResults []model.Repository             `json:"search_results"`
}

// Service はリポジトリ情報を伴う画面を組み立てる。
type Service struct {
	client  githubapi.Client
	metrics FetchRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(client githubapi.Client, metrics FetchRecorder) *Service {
	return &Service{client: client, metrics: metrics}
}

// MyRepositories は自分のリポジトリ一覧画面を返す。
func (s *Service) MyRepositories(ctx context.Context, user *model.Identity) (*MyReposView, error) {
	repos, err := s.client.FetchUserRepositories(ctx)
	s.record("user_repositories", err)
	if err != nil {
		return nil, err
	}
	return &MyReposView{User: user, Repositories: repos}, nil
}

// ContributedRepositories はコントリビュートしたリポジトリ一覧画面を返す。
// queryが空でなければ検索を並行して行う。どちらかが失敗した場合はエラーを返す。
func (s *Service) ContributedRepositories(ctx context.Context, user *model.Identity, query string) (*ContributedReposView, error) {
	view := &ContributedReposView{
		User:          user,
		Query:         strings.TrimSpace(query),
		SearchResults: []model.Repository{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		repos, err := s.client.FetchContributionRepositories(gctx)
		s.record("contribution_repositories", err)
		if err != nil {
			return err
		}
		view.Contributions = repos
		return nil
	})
	if view.Query != "" {
		g.Go(func() error {
			repos, err := s.client.SearchRepositories(gctx, view.Query)
			s.record("search_repositories", err)
			if err != nil {
				return err
			}
			view.SearchResults = repos
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

// SearchRepositories はリポジトリを検索する。
func (s *Service) SearchRepositories(ctx context.Context, query string) ([]model.Repository, error) {
	repos, err := s.client.SearchRepositories(ctx, query)
	s.record("search_repositories", err)
	return repos, err
}

// UserRepositories は自分のリポジトリ一覧を返す。
func (s *Service) UserRepositories(ctx context.Context) ([]model.Repository, error) {
	repos, err := s.client.FetchUserRepositories(ctx)
	s.record("user_repositories", err)
	return repos, err
}

// ContributionRepositories はコントリビュートしたリポジトリ一覧を返す。
func (s *Service) ContributionRepositories(ctx context.Context) ([]model.ContributionRepository, error) {
	repos, err := s.client.FetchContributionRepositories(ctx)
	s.record("contribution_repositories", err)
	return repos, err
}

func (s *Service) record(operation string, err error) {
	if s.metrics != nil {
		s.metrics.RecordDataFetch(operation, err)
	}
}
