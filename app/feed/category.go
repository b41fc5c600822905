package feed

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryAll      Category = "all"
	CategoryUsed     Category = "used"
	CategoryJob      Category = "job"
	CategoryTutoring Category = "tutoring"
	CategoryMeetup   Category = "meetup"
)

type CategoryInfo struct {
	Category        Category `json:"category"`
	Label           string   `json:"label"`
	DetailRoute     string   `json:"detail_route"`
	PlaceholderIcon string   `json:"placeholder_icon"`
}

var categories = []CategoryInfo{
	{Category: CategoryAll, Label: "전체", DetailRoute: "PostDetail", PlaceholderIcon: "📋"},
	{Category: CategoryUsed, Label: "중고거래", DetailRoute: "ItemDetail", PlaceholderIcon: "📦"},
	{Category: CategoryJob, Label: "알바/구인", DetailRoute: "JobDetail", PlaceholderIcon: "💼"},
	{Category: CategoryTutoring, Label: "과외/레슨", DetailRoute: "TutoringDetail", PlaceholderIcon: "📚"},
	{Category: CategoryMeetup, Label: "모임", DetailRoute: "MeetupDetail", PlaceholderIcon: "👥"},
}

// Categories returns every category in display order, starting with "all".
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categories))
	copy(out, categories)
	return out
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	for _, info := range categories {
		if info.Category == c {
			return true
		}
	}
	return false
}

func (c Category) Info() CategoryInfo {
	for _, info := range categories {
		if info.Category == c {
			return info
		}
	}
	return categories[0]
}
