// Package dashboard は役割ごとの画面に表示するデータを組み立てる。
package dashboard

import (
	"slices"
	"strings"

	"github.com/hitoshi/dcode/internal/model"
)

// StatCard はダッシュボードの集計カード。
type StatCard struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Trend string `json:"trend"`
}

// DashboardView は管理者・メンテナーのダッシュボード。
type DashboardView struct {
	Greeting string          `json:"greeting"`
	User     *model.Identity `json:"user"`
	Stats    []StatCard      `json:"stats"`
	Tools    []string        `json:"tools"`
}

// AdminDashboard は管理者ダッシュボードを返す。
func AdminDashboard(user *model.Identity) DashboardView {
	return DashboardView{
		Greeting: greeting(user),
		User:     user,
		Stats: []StatCard{
			{Title: "Total Users", Value: "1,234", Trend: "+20.1% from last month"},
			{Title: "Active Projects", Value: "89", Trend: "+12% from last month"},
			{Title: "System Health", Value: "Good", Trend: "All systems operational"},
		},
		Tools: []string{"User Management", "System Settings", "Analytics", "Security"},
	}
}

// MaintainerDashboard はメンテナーダッシュボードを返す。
func MaintainerDashboard(user *model.Identity) DashboardView {
	return DashboardView{
		Greeting: greeting(user),
		User:     user,
		Stats: []StatCard{
			{Title: "Open Pull Requests", Value: "23", Trend: "+3 from yesterday"},
			{Title: "Active Issues", Value: "47", Trend: "-5 from last week"},
			{Title: "Repository Stars", Value: "1,567", Trend: "+89 this month"},
		},
		Tools: []string{"Review PRs", "Manage Issues", "Branch Management", "Project Settings"},
	}
}

func greeting(user *model.Identity) string {
	if user == nil {
		return "Welcome back"
	}
	return "Welcome back, " + user.DisplayName()
}

// OnboardingOption はオンボーディングの選択肢。Nextは選択後の遷移先。
type OnboardingOption struct {
	Value       string `json:"value"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Next        string `json:"next"`
}

// OnboardingView はコントリビューターのオンボーディング画面。
type OnboardingView struct {
	User    *model.Identity    `json:"user"`
	Title   string             `json:"title"`
	Options []OnboardingOption `json:"options"`
}

// Onboarding はオンボーディング画面を返す。
func Onboarding(user *model.Identity) OnboardingView {
	return OnboardingView{
		User:  user,
		Title: "Let's get you started",
		Options: []OnboardingOption{
			{
				Value:       "contributed",
				Title:       "I have contributed before",
				Description: "I have experience contributing to open source projects",
				Next:        "/contributor/contributed-repos",
			},
			{
				Value:       "not-contributed",
				Title:       "I haven't contributed before",
				Description: "I'm new to open source contributions",
				Next:        "/contributor/my-repos",
			},
		},
	}
}

// RepoContribution はプロフィールに表示するリポジトリごとの貢献。
type RepoContribution struct {
	Repo             string `json:"repo"`
	PRCount          int    `json:"pr_count"`
	Merged           int    `json:"merged"`
	LastContribution string `json:"last_contribution"`
}

// AssignedIssue はアサインされたイシュー。
type AssignedIssue struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Repo       string `json:"repo"`
	State      string `json:"state"`
	AssignedAt string `json:"assigned_at"`
}

// Activity は最近の活動。
type Activity struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// ProfileView はコントリビューターのプロフィール画面。
type ProfileView struct {
	User          *model.Identity    `json:"user"`
	TotalPRs      int                `json:"total_prs"`
	TotalMerges   int                `json:"total_merges"`
	Contributions []RepoContribution `json:"contributions"`
	Issues        []AssignedIssue    `json:"issues"`
	Activity      []Activity         `json:"activity"`
}

// Profile はプロフィール画面を返す。
func Profile(user *model.Identity) ProfileView {
	return ProfileView{
		User:        user,
		TotalPRs:    22,
		TotalMerges: 17,
		Contributions: []RepoContribution{
			{Repo: "decode-man/Frontend-dcode", PRCount: 12, Merged: 10, LastContribution: "2025-09-28"},
			{Repo: "decode-man/Backend-dcode", PRCount: 7, Merged: 5, LastContribution: "2025-08-14"},
			{Repo: "oss/awesome-list", PRCount: 3, Merged: 2, LastContribution: "2025-07-02"},
		},
		Issues: []AssignedIssue{
			{ID: 341, Title: "Fix navbar responsiveness", Repo: "decode-man/Frontend-dcode", State: "open", AssignedAt: "2025-09-30"},
			{ID: 298, Title: "Improve auth flow error handling", Repo: "decode-man/Backend-dcode", State: "open", AssignedAt: "2025-09-12"},
			{ID: 215, Title: "Add tests for utils", Repo: "oss/awesome-list", State: "closed", AssignedAt: "2025-07-10"},
		},
		Activity: []Activity{
			{Time: "2 days ago", Text: "Merged PR #128 in decode-man/Frontend-dcode"},
			{Time: "6 days ago", Text: "Opened PR #45 in oss/awesome-list"},
			{Time: "3 weeks ago", Text: "Commented on issue #210 in decode-man/Backend-dcode"},
		},
	}
}

// LeaderboardView はリーダーボード画面。Podiumは上位3名。
type LeaderboardView struct {
	Query   string                   `json:"query,omitempty"`
	Podium  []model.LeaderboardEntry `json:"podium"`
	Entries []model.LeaderboardEntry `json:"entries"`
}

func intPtr(v int) *int {
	return &v
}

var leaderboard = []model.LeaderboardEntry{
	{Rank: 1, Name: "Abhishek Verma", AvatarURL: "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=100&h=100&fit=crop", XP: 1600, LastSubmission: "1 day ago", Initials: "AV"},
	{Rank: 2, Name: "DHRUV KUMAR", AvatarURL: "https://images.unsplash.com/photo-1500648767791-00dcc994a43e?w=100&h=100&fit=crop", XP: 1550, Change: intPtr(33), LastSubmission: "7 hrs 52 min ago", Initials: "DK"},
	{Rank: 3, Name: "Adityaraj Pal", AvatarURL: "https://images.unsplash.com/photo-1506794778202-cad84cf45f1d?w=100&h=100&fit=crop", XP: 1150, LastSubmission: "2 hrs 25 min ago", Initials: "AP"},
	{Rank: 4, Name: "Ansh Tomar", AvatarURL: "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=100&h=100&fit=crop", XP: 960, Change: intPtr(66), LastSubmission: "7 hrs 43 min ago", Initials: "AT"},
	{Rank: 5, Name: "Priya Sharma", AvatarURL: "https://images.unsplash.com/photo-1494790108377-be9c29b29330?w=100&h=100&fit=crop", XP: 875, Change: intPtr(12), LastSubmission: "3 hrs 15 min ago", Initials: "PS"},
	{Rank: 6, Name: "Rahul Singh", AvatarURL: "https://images.unsplash.com/photo-1519345182560-3f2917c472ef?w=100&h=100&fit=crop", XP: 820, Change: intPtr(-3), LastSubmission: "5 hrs 30 min ago", Initials: "RS"},
	{Rank: 28, Name: "Malhar Mahanwar", AvatarURL: "https://images.unsplash.com/photo-1535713875002-d1d0cf377fde?w=100&h=100&fit=crop", XP: 465, Change: intPtr(-6), LastSubmission: "1 day ago", Initials: "MM"},
}

// Leaderboard はリーダーボードを返す。
// queryが空でなければ名前に部分一致（大文字小文字を区別しない）する行のみを返す。
// 上位3名は絞り込みの対象外。
func Leaderboard(query string) LeaderboardView {
	query = strings.TrimSpace(query)

	podium := slices.Clone(leaderboard[:3])
	slices.SortFunc(podium, func(a, b model.LeaderboardEntry) int { return a.Rank - b.Rank })

	entries := make([]model.LeaderboardEntry, 0, len(leaderboard))
	needle := strings.ToLower(query)
	for _, e := range leaderboard {
		if needle == "" || strings.Contains(strings.ToLower(e.Name), needle) {
			entries = append(entries, e)
		}
	}

	return LeaderboardView{Query: query, Podium: podium, Entries: entries}
}
