package language

import (
	"strings"
	"unicode"

	xlanguage "golang.org/x/text/language"
)

type entry struct {
	code    string   // ISO 639-1
	display string   // Human-readable name
	aliases []string // English names and legacy codes x/text rejects
}

var table = []entry{
	{"en", "English", []string{"english"}},
	{"es", "Spanish", []string{"spanish"}},
	{"fr", "French", []string{"french", "fre"}},
	{"de", "German", []string{"german", "ger"}},
	{"it", "Italian", []string{"italian"}},
	{"pt", "Portuguese", []string{"portuguese"}},
	{"ja", "Japanese", []string{"japanese"}},
	{"ko", "Korean", []string{"korean"}},
	{"zh", "Chinese", []string{"chinese", "chi", "mandarin"}},
	{"ru", "Russian", []string{"russian"}},
	{"ar", "Arabic", []string{"arabic"}},
	{"hi", "Hindi", []string{"hindi"}},
	{"nl", "Dutch", []string{"dutch", "dut"}},
	{"pl", "Polish", []string{"polish"}},
	{"sv", "Swedish", []string{"swedish"}},
	{"da", "Danish", []string{"danish"}},
	{"no", "Norwegian", []string{"norwegian"}},
	{"fi", "Finnish", []string{"finnish"}},
}

var (
	byCode  map[string]*entry
	byAlias map[string]*entry
)

func init() {
	byCode = make(map[string]*entry, len(table))
	byAlias = make(map[string]*entry, len(table)*2)
	for i := range table {
		e := &table[i]
		byCode[e.code] = e
		for _, alias := range e.aliases {
			byAlias[alias] = e
		}
	}
}

// Normalize resolves a user-supplied language to its ISO 639-1 code. It
// accepts two- and three-letter codes, BCP 47 tags, and English names.
// Unrecognized input and the "auto" placeholder yield "".
func Normalize(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "auto" {
		return ""
	}
	if e, ok := byAlias[value]; ok {
		return e.code
	}
	tag, err := xlanguage.Parse(value)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return ""
	}
	return base.String()
}

// DisplayName returns a human-readable name for a language code. Codes
// outside the known set come back uppercased rather than dropped.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if normalized := Normalize(trimmed); normalized != "" {
		if e, ok := byCode[normalized]; ok {
			return e.display
		}
		return strings.ToUpper(normalized)
	}
	return strings.ToUpper(trimmed)
}

// NormalizeList canonicalizes a subtitle language list. Plain names and
// three-letter codes collapse to ISO 639-1; patterns and subtagged codes
// (en.*, zh-Hans) pass through for yt-dlp to interpret. Duplicates collapse
// while preserving first-seen order.
func NormalizeList(values []string) []string {
	normalized := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		if !strings.ContainsAny(trimmed, "-.*") {
			if code := Normalize(trimmed); code != "" {
				trimmed = code
			}
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

// FromTitle guesses the spoken language from the script of a media title so
// transcription can skip its slow audio-based detection. Returns "" when the
// title's script is not distinctive.
func FromTitle(title string) string {
	sawHan := false
	for _, r := range title {
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			return "ja"
		case unicode.Is(unicode.Hangul, r):
			return "ko"
		case unicode.Is(unicode.Han, r):
			sawHan = true
		}
	}
	// Han without kana reads as Chinese; with kana the loop already
	// answered Japanese.
	if sawHan {
		return "zh"
	}
	return ""
}
