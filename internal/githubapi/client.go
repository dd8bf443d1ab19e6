// Package githubapi はダッシュボードが表示するリポジトリ情報の取得を提供する。
package githubapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/dcode/internal/model"
)

// ErrEmptyQuery は検索キーワードが空の場合のエラー。
var ErrEmptyQuery = errors.New("search query is empty")

// Client はリポジトリ情報を取得するインターフェース。
// いずれの操作もctxのキャンセルで中断し、失敗時は*FetchErrorを返す。
type Client interface {
	FetchUserRepositories(ctx context.Context) ([]model.Repository, error)
	FetchContributionRepositories(ctx context.Context) ([]model.ContributionRepository, error)
	SearchRepositories(ctx context.Context, query string) ([]model.Repository, error)
}

// FetchError はリポジトリ情報の取得失敗を表す。
type FetchError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}
