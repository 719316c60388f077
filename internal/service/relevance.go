package service

import (
	"sort"
	"strings"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/shopspring/decimal"
)

var (
	scoreBase          = decimal.RequireFromString("0.5")
	scoreCategoryMatch = decimal.RequireFromString("0.3")
	scoreLocationMatch = decimal.RequireFromString("0.2")
	scoreCap           = decimal.NewFromInt(1)
)

// ScoredPlatform 排序后的候选平台
type ScoredPlatform struct {
	Platform string             `json:"platform"`
	Priority model.PriorityTier `json:"priority"`
	Score    float64            `json:"score"`
	// Reasons 命中的加分项，便于排查
	Reasons []string `json:"reasons,omitempty"`
}

// Score 单个平台的相关性得分，保留两位小数
func Score(record *model.BusinessRecord, profile model.PlatformProfile) (float64, []string) {
	score := scoreBase
	var reasons []string
	if bonus := profile.Priority.Bonus(); bonus > 0 {
		score = score.Add(decimal.NewFromFloat(bonus))
		reasons = append(reasons, "priority:"+strings.ToLower(string(profile.Priority)))
	}
	if categoryMatches(record, profile.Industries) {
		score = score.Add(scoreCategoryMatch)
		reasons = append(reasons, "category")
	}
	if locationMatches(record.Location, profile.Locations) {
		score = score.Add(scoreLocationMatch)
		reasons = append(reasons, "location")
	}
	if score.GreaterThan(scoreCap) {
		score = scoreCap
	}
	return score.Round(2).InexactFloat64(), reasons
}

func categoryMatches(record *model.BusinessRecord, industries []string) bool {
	for _, c := range record.Categories.All() {
		for _, ind := range industries {
			if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(ind)) {
				return true
			}
		}
	}
	return false
}

func locationMatches(loc *model.Location, locations []string) bool {
	if loc == nil {
		return false
	}
	formatted := strings.ToLower(loc.FormattedAddress)
	for _, l := range locations {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if strings.EqualFold(l, loc.City) || strings.EqualFold(l, loc.State) || strings.EqualFold(l, loc.Country) {
			return true
		}
		if formatted != "" && strings.Contains(formatted, strings.ToLower(l)) {
			return true
		}
	}
	return false
}

// Rank 按得分降序，其次优先级，最后平台名升序；相同输入总是得到相同顺序
func Rank(record *model.BusinessRecord, profiles []model.PlatformProfile) []ScoredPlatform {
	out := make([]ScoredPlatform, 0, len(profiles))
	for _, p := range profiles {
		score, reasons := Score(record, p)
		out = append(out, ScoredPlatform{
			Platform: p.Name,
			Priority: p.Priority,
			Score:    score,
			Reasons:  reasons,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return out[i].Platform < out[j].Platform
	})
	return out
}

// Filter 去掉得分低于 minScore 的平台，保持原顺序
func Filter(ranked []ScoredPlatform, minScore float64) []ScoredPlatform {
	out := make([]ScoredPlatform, 0, len(ranked))
	for _, s := range ranked {
		if s.Score >= minScore {
			out = append(out, s)
		}
	}
	return out
}

// Names 排序结果中的平台名
func Names(ranked []ScoredPlatform) []string {
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.Platform
	}
	return out
}
