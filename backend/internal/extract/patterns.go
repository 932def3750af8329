package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type pattern struct {
	re    *regexp.Regexp
	value string
}

func words(expr, value string) pattern {
	return pattern{re: regexp.MustCompile(`(?i)\b(?:` + expr + `)\b`), value: value}
}

var rolePatterns = []pattern{
	words(`cfo|chief financial officer`, "CFO"),
	words(`cmo|chief marketing officer`, "CMO"),
	words(`cto|chief technology officer`, "CTO"),
	words(`coo|chief operating officer`, "COO"),
	words(`cpo|chief product officer`, "CPO"),
	words(`hr director|head of hr|people director`, "HR Director"),
	words(`finance director|fd`, "Finance Director"),
	words(`marketing director|head of marketing`, "Marketing Director"),
}

var industryPatterns = []pattern{
	words(`tech|technology|software`, "Technology"),
	words(`fintech|financial technology`, "Fintech"),
	words(`healthcare|health`, "Healthcare"),
	words(`gaming|games|game`, "Gaming"),
	words(`saas|b2b`, "SaaS"),
	words(`ecommerce|e-commerce|retail`, "E-commerce"),
	words(`manufacturing`, "Manufacturing"),
	words(`media|entertainment`, "Media"),
}

var locationPatterns = []pattern{
	words(`london`, "London"),
	words(`manchester`, "Manchester"),
	words(`remote|remotely|work from home`, "Remote"),
	words(`hybrid`, "Hybrid"),
	words(`uk|united kingdom|britain`, "UK"),
}

var (
	availabilityRe = regexp.MustCompile(`(?i)(\d+)(?:\s*-\s*(\d+))?\s*days?(?:\s*(?:a|per)\s*week)?`)
	dayRateRe      = regexp.MustCompile(`(?i)[£$€]?\s*(\d{3,4})(?:\s*-\s*[£$€]?\s*(\d{3,4}))?\s*(?:per day|/day|a day)?`)
)

// minDayRate filters out numbers that are not plausible day rates
const minDayRate = 300

// rawTextLimit bounds the excerpt stored with list-style preferences
const rawTextLimit = 100

// PatternExtractor recognises a fixed vocabulary of roles, industries and
// locations, plus availability and day rates
type PatternExtractor struct{}

// Extract never fails
func (PatternExtractor) Extract(_ context.Context, transcript string) (*Result, error) {
	res := &Result{}
	raw := excerpt(transcript, rawTextLimit)

	for _, group := range []struct {
		prefType string
		patterns []pattern
	}{
		{TypeRole, rolePatterns},
		{TypeIndustry, industryPatterns},
		{TypeLocation, locationPatterns},
	} {
		if found := matchAll(transcript, group.patterns); len(found) > 0 {
			res.Preferences = append(res.Preferences, Preference{
				Type:       group.prefType,
				Values:     found,
				Confidence: ConfidenceHigh,
				RawText:    raw,
			})
		}
	}

	if m := availabilityRe.FindStringSubmatch(transcript); m != nil {
		value := m[1] + " days/week"
		if m[2] != "" {
			value = fmt.Sprintf("%s-%s days/week", m[1], m[2])
		}
		res.Preferences = append(res.Preferences, Preference{
			Type:       TypeAvailability,
			Values:     []string{value},
			Confidence: ConfidenceHigh,
			RawText:    m[0],
		})
	}

	for _, m := range dayRateRe.FindAllStringSubmatch(transcript, -1) {
		low, err := strconv.Atoi(m[1])
		if err != nil || low < minDayRate {
			continue
		}
		value := fmt.Sprintf("£%s/day", m[1])
		if m[2] != "" {
			value = fmt.Sprintf("£%s-%s/day", m[1], m[2])
		}
		res.Preferences = append(res.Preferences, Preference{
			Type:       TypeDayRate,
			Values:     []string{value},
			Confidence: ConfidenceMedium,
			RawText:    strings.TrimSpace(m[0]),
		})
		break
	}

	return res.finalize(), nil
}

func matchAll(text string, patterns []pattern) []string {
	var found []string
	for _, p := range patterns {
		if p.re.MatchString(text) {
			found = append(found, p.value)
		}
	}
	return found
}
