package search

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Filters is the persona a tenant searches for. Every field is optional.
type Filters struct {
	Titles       []string `json:"titles,omitempty"`
	Seniority    []string `json:"seniority,omitempty"`
	Industries   []string `json:"industries,omitempty"`
	Locations    []string `json:"locations,omitempty"`
	CompanySizes []string `json:"company_sizes,omitempty"`
	Keywords     string   `json:"keywords,omitempty"`
}

// translate maps filters to provider query parameters. Empty arrays and
// blank strings are dropped entirely; the provider treats a present-but-empty
// key as "match nothing", so absent criteria must never be sent.
func (f Filters) translate() map[string]any {
	params := make(map[string]any)
	put := func(key string, values []string) {
		cleaned := make([]string, 0, len(values))
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				cleaned = append(cleaned, v)
			}
		}
		if len(cleaned) > 0 {
			params[key] = cleaned
		}
	}
	put("job_title", f.Titles)
	put("seniority", f.Seniority)
	put("industry", f.Industries)
	put("location", f.Locations)
	put("company_size", f.CompanySizes)
	if kw := strings.TrimSpace(f.Keywords); kw != "" {
		params["keyword"] = kw
	}
	return params
}

// fingerprint returns a stable digest of the filters plus page coordinates,
// used as the cache identifier. json.Marshal emits struct fields in
// declaration order, so equal filters always hash the same.
func (f Filters) fingerprint(page, pageSize int) string {
	raw, _ := json.Marshal(f)
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%d:%d", hex.EncodeToString(sum[:]), page, pageSize)
}
