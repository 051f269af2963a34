package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "Claim Status Update - UNDER_REVIEW", Subject(StatusEmail{Status: "under_review"}))
	assert.Equal(t, "Custom", Subject(StatusEmail{Subject: "Custom", Status: "approved"}))
}

func TestRenderStatusHTML(t *testing.T) {
	html, err := RenderStatusHTML(StatusEmail{
		ClaimID:  "c-1",
		Status:   "under_review",
		Remarks:  "<script>alert(1)</script>",
		UserName: "Sita",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Dear Sita,")
	assert.Contains(t, html, statusMessages["under_review"])
	assert.Contains(t, html, "UNDER REVIEW")
	assert.Contains(t, html, `status-badge under_review`)
	assert.Contains(t, html, "Official Remarks")
	assert.NotContains(t, html, "<script>")

	html, err = RenderStatusHTML(StatusEmail{ClaimID: "c-2", Status: "archived", UserName: "Ravi"})
	require.NoError(t, err)
	assert.Contains(t, html, defaultStatusMessage)
	assert.NotContains(t, html, "Official Remarks")
}

func TestClient_SendStatusUpdate(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "re_test", "FRA Claims <onboarding@resend.dev>", srv.Client())
	res, err := c.SendStatusUpdate(context.Background(), StatusEmail{
		To: "citizen@example.com", ClaimID: "c-1", Status: "approved", UserName: "Asha",
	})
	require.NoError(t, err)
	assert.Equal(t, "email_123", res.ID)
	assert.Equal(t, []string{"citizen@example.com"}, got.To)
	assert.Equal(t, "Claim Status Update - APPROVED", got.Subject)
	assert.Equal(t, "FRA Claims <onboarding@resend.dev>", got.From)
	assert.Contains(t, got.HTML, "approved")
}

func TestClient_Errors(t *testing.T) {
	_, err := NewClient("http://unused", "", "from", nil).SendStatusUpdate(context.Background(), StatusEmail{To: "a@b.c"})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid from"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err = NewClient(srv.URL, "k", "from", srv.Client()).SendStatusUpdate(context.Background(), StatusEmail{To: "a@b.c", Status: "pending"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}
