package model

import "time"

// RepositoryOwner はリポジトリ所有者の概要。
type RepositoryOwner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Repository はユーザーが所有または検索で見つけたリポジトリを表す。
type Repository struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	FullName        string          `json:"full_name"`
	Description     *string         `json:"description"`
	HTMLURL         string          `json:"html_url"`
	Language        *string         `json:"language"`
	StargazersCount int             `json:"stargazers_count"`
	ForksCount      int             `json:"forks_count"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Owner           RepositoryOwner `json:"owner"`
}

// ContributionRepository はユーザーがコントリビュートしたリポジトリを表す。
type ContributionRepository struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	FullName         string          `json:"full_name"`
	Description      *string         `json:"description"`
	HTMLURL          string          `json:"html_url"`
	Language         *string         `json:"language"`
	Contributions    int             `json:"contributions"`
	LastContribution time.Time       `json:"last_contribution"`
	Owner            RepositoryOwner `json:"owner"`
}

// LeaderboardEntry はリーダーボードの1行を表す。
// Changeは前回からの順位変動で、初登場の場合はnil。
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	Name           string `json:"name"`
	AvatarURL      string `json:"avatar_url"`
	XP             int    `json:"xp"`
	Change         *int   `json:"change"`
	LastSubmission string `json:"last_submission"`
	Initials       string `json:"initials"`
}
