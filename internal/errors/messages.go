package errors

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

var supportedLanguages = []language.Tag{
	language.Hebrew, // first entry is the fallback
	language.English,
}

var matcher = language.NewMatcher(supportedLanguages)

var messages = map[language.Tag]map[string]string{
	language.Hebrew: {
		ErrCodeUnauthorized:         "נא להתחבר למערכת",
		ErrCodeInvalidCredentials:   "אימייל או סיסמה שגויים",
		ErrCodeAccountDisabled:      "החשבון שלך הושבת",
		ErrCodeOrganizationRequired: "יש לבחור ארגון",
		ErrCodeForbidden:            "אין לך הרשאה לבצע פעולה זו",
		ErrCodeValidation:           "בקשה לא תקינה",
		ErrCodeNotFound:             "המשאב לא נמצא",
		ErrCodeConflict:             "הערך כבר קיים",
		ErrCodeInternalError:        "שגיאת שרת פנימית",
		ErrCodeServiceUnavailable:   "השירות אינו זמין כרגע",
	},
	language.English: {
		ErrCodeUnauthorized:         "Please authenticate",
		ErrCodeInvalidCredentials:   "Invalid email or password",
		ErrCodeAccountDisabled:      "Your account has been disabled",
		ErrCodeOrganizationRequired: "You must select an organization",
		ErrCodeForbidden:            "You do not have permission to perform this action",
		ErrCodeValidation:           "Invalid request",
		ErrCodeNotFound:             "Resource not found",
		ErrCodeConflict:             "Value already exists",
		ErrCodeInternalError:        "Internal server error",
		ErrCodeServiceUnavailable:   "Service temporarily unavailable",
	},
}

// Language picks the response language from the Accept-Language header.
// A header naming no supported language falls back to Hebrew.
func Language(c *gin.Context) language.Tag {
	tags, _, _ := language.ParseAcceptLanguage(c.GetHeader("Accept-Language"))
	_, index, conf := matcher.Match(tags...)
	if conf == language.No || !requested(tags, supportedLanguages[index]) {
		return supportedLanguages[0]
	}
	return supportedLanguages[index]
}

// requested reports whether one of tags shares the base language of match.
// The matcher can return a low-confidence guess for unrelated languages.
func requested(tags []language.Tag, match language.Tag) bool {
	want, _ := match.Base()
	for _, tag := range tags {
		if base, _ := tag.Base(); base == want {
			return true
		}
	}
	return false
}

// Message returns the localized default message for code.
func Message(c *gin.Context, code string) string {
	if msg, ok := messages[Language(c)][code]; ok {
		return msg
	}
	return messages[language.English][code]
}
