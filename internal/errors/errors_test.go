package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func testContext(acceptLanguage string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if acceptLanguage != "" {
		c.Request.Header.Set("Accept-Language", acceptLanguage)
	}
	return c, w
}

func TestForbiddenRequirement(t *testing.T) {
	c, w := testContext("en-US,en;q=0.9")

	ForbiddenRequirement(c, "rocks:delete", "MEMBER")

	require.Equal(t, http.StatusForbidden, w.Code)
	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Forbidden", body.Code)
	require.Equal(t, "rocks:delete", body.Required)
	require.Equal(t, "MEMBER", body.UserRole)
	require.Equal(t, "You do not have permission to perform this action", body.Message)
}

func TestMessage_DefaultsToHebrew(t *testing.T) {
	c, _ := testContext("")
	require.Equal(t, "יש לבחור ארגון", Message(c, ErrCodeOrganizationRequired))

	c, _ = testContext("fr-FR")
	require.Equal(t, "יש לבחור ארגון", Message(c, ErrCodeOrganizationRequired))
}

func TestLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   language.Tag
	}{
		{"", language.Hebrew},
		{"fr-FR", language.Hebrew},
		{"de-DE,ja;q=0.8", language.Hebrew},
		{"he-IL", language.Hebrew},
		{"en-GB", language.English},
		{"fr-FR,en;q=0.5", language.English},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			c, _ := testContext(tt.header)
			require.Equal(t, tt.want, Language(c))
		})
	}
}

func TestConflict_IncludesField(t *testing.T) {
	c, w := testContext("en")

	Conflict(c, "slug", "")

	require.Equal(t, http.StatusConflict, w.Code)
	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "slug", body.Field)
	require.Equal(t, "Value already exists", body.Message)
}

func TestExplicitMessageWins(t *testing.T) {
	c, w := testContext("en")

	NotFound(c, "Rock not found")

	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Rock not found", body.Message)
}
