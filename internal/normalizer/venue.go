package normalizer

import (
	"regexp"
	"strings"
)

var venueParenRe = regexp.MustCompile(`^(.*?)\s*\((.+)\)\s*$`)

// regionTokens are province/major-city names that mark the start of a
// trailing address fragment in a combined venue string.
var regionTokens = []string{
	"서울특별시", "부산광역시", "대구광역시", "인천광역시", "광주광역시", "대전광역시", "울산광역시", "세종특별자치시",
	"서울시", "서울", "부산", "대구", "인천", "광주", "대전", "울산", "세종",
	"경기도", "경기", "강원도", "강원", "충청북도", "충북", "충청남도", "충남",
	"전라북도", "전북", "전라남도", "전남", "경상북도", "경북", "경상남도", "경남", "제주도", "제주",
}

// ParseVenue splits venue text into name and address. A separately
// extracted address wins over anything embedded in the venue text.
func ParseVenue(venueText, addressText string) (name, address string) {
	venueText = strings.TrimSpace(venueText)
	addressText = strings.TrimSpace(addressText)

	if m := venueParenRe.FindStringSubmatch(venueText); m != nil {
		name = strings.TrimSpace(m[1])
		address = strings.TrimSpace(m[2])
	} else {
		name = venueText
	}
	if addressText != "" {
		address = addressText
		return name, address
	}
	if address != "" || name == "" {
		return name, address
	}

	// no parenthetical and no separate address: split on the first region
	// token that starts a trailing fragment
	for _, token := range regionTokens {
		idx := strings.Index(name, " "+token)
		if idx <= 0 {
			continue
		}
		address = strings.TrimSpace(name[idx:])
		name = strings.TrimSpace(name[:idx])
		break
	}
	return name, address
}
