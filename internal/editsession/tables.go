package editsession

import (
	"strings"

	"devon-cli/internal/model"
)

const minPasswordLen = 8

var AuthorTable = Table[model.Author]{
	Kind: model.KindAuthor,
	Fields: []Field{
		{Name: "full_name", Label: "Full name", Type: Text, Required: true},
		{Name: "birth_year", Label: "Birth year", Type: Year},
		{Name: "death_year", Label: "Death year", Type: Year},
		{Name: "biography_md", Label: "Biography", Type: LongText, Draft: true},
		{Name: "is_published", Label: "Published", Type: Bool},
	},
	Defaults: Values{"is_published": true},
	Extract: func(a model.Author) Values {
		return Values{
			"full_name":    a.FullName,
			"birth_year":   a.BirthYear,
			"death_year":   a.DeathYear,
			"biography_md": a.BiographyMD,
			"is_published": a.IsPublished,
		}
	},
	ID:         func(a model.Author) int64 { return a.ID },
	Check:      checkYears,
	Attachment: "photo",
}

var PoemTable = Table[model.Poem]{
	Kind: model.KindPoem,
	Fields: []Field{
		{Name: "title", Label: "Title", Type: Text, Required: true},
		{Name: "author_id", Label: "Author", Type: Ref, Required: true},
		{Name: "text", Label: "Text", Type: LongText, Required: true, Draft: true},
		{Name: "is_published", Label: "Published", Type: Bool},
	},
	Defaults: Values{"is_published": true},
	Extract: func(p model.Poem) Values {
		return Values{
			"title":        p.Title,
			"author_id":    p.Author.ID,
			"text":         p.Text,
			"is_published": p.IsPublished,
		}
	},
	ID: func(p model.Poem) int64 { return p.ID },
}

var RoleTable = Table[model.Role]{
	Kind: model.KindRole,
	Fields: []Field{
		{Name: "name", Label: "Name", Type: Text, Required: true},
		{Name: "is_active", Label: "Active", Type: Bool},
		{Name: "permissions", Label: "Permissions", Type: Permissions},
		{Name: "employee_ids", Label: "Employees", Type: RefSet},
	},
	Defaults: Values{"is_active": true, "permissions": model.DefaultPermissionRows()},
	Extract: func(r model.Role) Values {
		return Values{
			"name":         r.Name,
			"is_active":    r.IsActive,
			"permissions":  r.Permissions,
			"employee_ids": r.EmployeeIDs(),
		}
	},
	ID: func(r model.Role) int64 { return r.ID },
}

var EmployeeTable = Table[model.Employee]{
	Kind: model.KindEmployee,
	Fields: []Field{
		{Name: "full_name", Label: "Full name", Type: Text, Required: true},
		{Name: "email", Label: "Email", Type: Text, Required: true},
		{Name: "role_id", Label: "Role", Type: Ref, Required: true},
		{Name: "is_active", Label: "Active", Type: Bool},
		{Name: "password", Label: "Password", Type: Secret, Required: true, CreateOnly: true},
		{Name: "password_confirm", Label: "Confirm password", Type: Secret, Required: true, CreateOnly: true},
	},
	Defaults: Values{"is_active": true},
	Extract: func(e model.Employee) Values {
		v := Values{
			"full_name": e.FullName,
			"email":     e.Email,
			"is_active": e.IsActive,
		}
		if e.Role != nil {
			v["role_id"] = e.Role.ID
		}
		return v
	},
	ID:    func(e model.Employee) int64 { return e.ID },
	Check: checkPasswords,
}

var SiteSettingsTable = Table[model.SiteSettings]{
	Kind: model.KindSiteSettings,
	Fields: []Field{
		{Name: "seo_title", Label: "SEO title", Type: Text},
		{Name: "seo_description", Label: "SEO description", Type: Text},
		{Name: "contacts_phone", Label: "Phone", Type: Text},
		{Name: "contacts_email", Label: "Email", Type: Text},
		{Name: "contacts_address", Label: "Address", Type: Text},
		{Name: "contacts_telegram", Label: "Telegram", Type: Text},
		{Name: "about_markdown", Label: "About", Type: LongText, Draft: true},
		{Name: "analytics_google_analytics_tag", Label: "Google Analytics", Type: Text},
		{Name: "analytics_google_search_console_tag", Label: "Google Search Console", Type: Text},
		{Name: "analytics_yandex_metrica_tag", Label: "Yandex Metrica", Type: Text},
		{Name: "analytics_yandex_webmaster_tag", Label: "Yandex Webmaster", Type: Text},
	},
	Extract: func(s model.SiteSettings) Values {
		return Values{
			"seo_title":                           s.SEOTitle,
			"seo_description":                     s.SEODescription,
			"contacts_phone":                      s.ContactsPhone,
			"contacts_email":                      s.ContactsEmail,
			"contacts_address":                    s.ContactsAddress,
			"contacts_telegram":                   s.ContactsTelegram,
			"about_markdown":                      s.AboutMarkdown,
			"analytics_google_analytics_tag":      s.AnalyticsGoogleAnalyticsTag,
			"analytics_google_search_console_tag": s.AnalyticsGoogleSearchConsoleTag,
			"analytics_yandex_metrica_tag":        s.AnalyticsYandexMetricaTag,
			"analytics_yandex_webmaster_tag":      s.AnalyticsYandexWebmasterTag,
		}
	},
	// The singleton always exists, so a session on it never creates.
	ID:         func(s model.SiteSettings) int64 { return max(s.ID, 1) },
	Attachment: "logo",
}

func checkYears(v Values, _ bool) error {
	for _, name := range []string{"birth_year", "death_year"} {
		s := strings.TrimSpace(v.String(name))
		if s == "" {
			continue
		}
		if n := asInt64(s); n <= 0 || asString(n) != s {
			return &ValidationError{Field: name, Reason: "must be a positive year"}
		}
	}
	b, d := v.Int64("birth_year"), v.Int64("death_year")
	if b > 0 && d > 0 && d < b {
		return &ValidationError{Field: "death_year", Reason: "must not be before birth year"}
	}
	return nil
}

func checkPasswords(v Values, creating bool) error {
	if !creating {
		return nil
	}
	pw, confirm := v.String("password"), v.String("password_confirm")
	if len([]rune(pw)) < minPasswordLen {
		return &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	if pw != confirm {
		return &ValidationError{Field: "password_confirm", Reason: "passwords do not match"}
	}
	return nil
}

// CheckNewPassword validates a password change or reset before it is sent.
func CheckNewPassword(pw, confirm string) error {
	return checkPasswords(Values{"password": pw, "password_confirm": confirm}, true)
}
