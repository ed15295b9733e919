package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Gender of a catalog voice.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Voice is one entry in an engine's static catalog.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   Gender `json:"gender"`
}

// voicePrefixes maps a voice-ID prefix to its language and gender. The
// convention comes from the Kokoro voice pack naming: a=American,
// b=British, h=Hindi; m/f for gender.
var voicePrefixes = map[string]struct {
	Language string
	Gender   Gender
}{
	"am_": {"en-us", GenderMale},
	"af_": {"en-us", GenderFemale},
	"bm_": {"en-gb", GenderMale},
	"bf_": {"en-gb", GenderFemale},
	"hm_": {"hi", GenderMale},
	"hf_": {"hi", GenderFemale},
}

// LanguageForVoice resolves a prefixed voice ID to its language code.
func LanguageForVoice(id string) (string, bool) {
	for prefix, info := range voicePrefixes {
		if strings.HasPrefix(id, prefix) {
			return info.Language, true
		}
	}
	return "", false
}

// ValidateCatalog checks every prefixed voice against the prefix table.
// Adapters call this at construction so a mislabeled catalog fails fast
// instead of surfacing as wrong-language speech.
func ValidateCatalog(voices []Voice) error {
	if len(voices) == 0 {
		return fmt.Errorf("voice catalog is empty")
	}
	for _, v := range voices {
		for prefix, info := range voicePrefixes {
			if !strings.HasPrefix(v.ID, prefix) {
				continue
			}
			if v.Language != info.Language {
				return fmt.Errorf("voice %s: prefix %s implies language %s, catalog says %s",
					v.ID, prefix, info.Language, v.Language)
			}
			if v.Gender != info.Gender {
				return fmt.Errorf("voice %s: prefix %s implies gender %s, catalog says %s",
					v.ID, prefix, info.Gender, v.Gender)
			}
		}
	}
	return nil
}

// HasVoice reports whether id appears in the catalog.
func HasVoice(voices []Voice, id string) bool {
	for _, v := range voices {
		if v.ID == id {
			return true
		}
	}
	return false
}

// GroupVoices buckets a catalog by language and gender: "male",
// "female" (English), "hindi_male", "hindi_female", plus "all". IDs in
// each group are sorted.
func GroupVoices(voices []Voice) map[string][]string {
	groups := map[string][]string{
		"male": {}, "female": {}, "hindi_male": {}, "hindi_female": {}, "all": {},
	}
	for _, v := range voices {
		groups["all"] = append(groups["all"], v.ID)
		key := string(v.Gender)
		if v.Language == "hi" {
			key = "hindi_" + key
		}
		if _, ok := groups[key]; ok {
			groups[key] = append(groups[key], v.ID)
		}
	}
	for k := range groups {
		sort.Strings(groups[k])
	}
	return groups
}
