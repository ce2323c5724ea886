package service

import (
	"time"

	"carmarket/backend/internal/model"
)

// ProfileField names a profile attribute and its display label.
type ProfileField struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

type profileAttr struct {
	ProfileField
	filled func(u *model.User) bool
}

func filledStr(s *string) bool { return s != nil && *s != "" }

var profileAttrs = []profileAttr{
	{ProfileField{"name", "Username"}, func(u *model.User) bool { return u.Name != "" }},
	{ProfileField{"email", "Email"}, func(u *model.User) bool { return u.Email != "" }},
	{ProfileField{"first_name", "First Name"}, func(u *model.User) bool { return filledStr(u.FirstName) }},
	{ProfileField{"last_name", "Last Name"}, func(u *model.User) bool { return filledStr(u.LastName) }},
	{ProfileField{"phone", "Phone"}, func(u *model.User) bool { return filledStr(u.Phone) }},
	{ProfileField{"bio", "Bio"}, func(u *model.User) bool { return filledStr(u.Bio) }},
	{ProfileField{"address", "Address"}, func(u *model.User) bool { return filledStr(u.Address) }},
	{ProfileField{"city", "City"}, func(u *model.User) bool { return filledStr(u.City) }},
	{ProfileField{"state", "State"}, func(u *model.User) bool { return filledStr(u.State) }},
	{ProfileField{"postal_code", "Postal Code"}, func(u *model.User) bool { return filledStr(u.PostalCode) }},
	{ProfileField{"country", "Country"}, func(u *model.User) bool { return filledStr(u.Country) }},
	{ProfileField{"date_of_birth", "Date of Birth"}, func(u *model.User) bool { return u.DateOfBirth != nil && !u.DateOfBirth.IsZero() }},
	{ProfileField{"gender", "Gender"}, func(u *model.User) bool { return u.Gender != nil && *u.Gender != "" }},
	{ProfileField{"company_name", "Company Name"}, func(u *model.User) bool { return filledStr(u.CompanyName) }},
	{ProfileField{"profile_image_path", "Profile Picture"}, func(u *model.User) bool { return filledStr(u.ProfileImagePath) }},
}

// ProfileCompletion is floor(100 * filled / 15).
func ProfileCompletion(u *model.User) int {
	filled := 0
	for _, a := range profileAttrs {
		if a.filled(u) {
			filled++
		}
	}
	return 100 * filled / len(profileAttrs)
}

// MissingProfileFields lists the empty attributes in display order.
func MissingProfileFields(u *model.User) []ProfileField {
	missing := make([]ProfileField, 0, len(profileAttrs))
	for _, a := range profileAttrs {
		if !a.filled(u) {
			missing = append(missing, a.ProfileField)
		}
	}
	return missing
}

// ApplyProfileCompletion recomputes the stored percentage and drops the
// verification flag when completion falls under the threshold. It reports
// whether anything changed.
func ApplyProfileCompletion(u *model.User) bool {
	pct := ProfileCompletion(u)
	changed := pct != u.ProfileCompletePercent
	u.ProfileCompletePercent = pct
	if pct < model.VerificationThreshold && u.IsVerified {
		u.IsVerified = false
		u.VerifiedAt = nil
		changed = true
	}
	return changed
}

// completionColumns is the column set written after a recompute.
func completionColumns(u *model.User) map[string]interface{} {
	return map[string]interface{}{
		"profile_complete_percent": u.ProfileCompletePercent,
		"is_verified":              u.IsVerified,
		"verified_at":              u.VerifiedAt,
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
