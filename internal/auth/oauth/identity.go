package oauth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smallbiznis/authr/internal/auth/domain"
)

// UserInfo is the subset of the Google v2 userinfo payload we consume.
type UserInfo struct {
	ID            json.RawMessage `json:"id"`
	Email         string          `json:"email"`
	VerifiedEmail bool            `json:"verified_email"`
	Name          string          `json:"name"`
	GivenName     string          `json:"given_name"`
	FamilyName    string          `json:"family_name"`
	Picture       string          `json:"picture"`
}

// Normalize maps a provider payload to an Identity. The GUID is
// "<provider>/<id>"; unverified emails are dropped.
func Normalize(provider string, info UserInfo) (domain.Identity, error) {
	id := rawID(info.ID)
	if id == "" {
		return domain.Identity{}, fmt.Errorf("%w: userinfo has no id", domain.ErrUpstreamAuth)
	}

	email := strings.TrimSpace(info.Email)
	if !info.VerifiedEmail {
		email = ""
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = strings.TrimSpace(strings.TrimSpace(info.GivenName) + " " + strings.TrimSpace(info.FamilyName))
	}
	if name == "" {
		name = email
	}
	if name == "" {
		name = id
	}

	return domain.Identity{
		ExternalGUID: provider + "/" + id,
		DisplayName:  name,
		Email:        email,
		AvatarURL:    strings.TrimSpace(info.Picture),
	}, nil
}

// rawID accepts both string and numeric ids.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
