package template

import (
	"testing"

	"github.com/notify-dispatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute_KnownParams(t *testing.T) {
	out := Substitute("Hello, ${recipientEmail}", map[string]string{"recipientEmail": "alice@example.com"})
	assert.Equal(t, "Hello, alice@example.com", out)
}

func TestSubstitute_UnknownParamsStayVerbatim(t *testing.T) {
	params := map[string]string{"recipientEmail": "alice@example.com"}
	out := Substitute("WEB: ${recipientEmail} ${unknownParam}", params)
	assert.Equal(t, "WEB: alice@example.com ${unknownParam}", out)
}

func TestSubstitute_NoParams(t *testing.T) {
	assert.Equal(t, "plain ${x}", Substitute("plain ${x}", nil))
}

func TestRender_DoesNotMutateInput(t *testing.T) {
	mt := &domain.MethodTemplate{
		Enabled: true,
		Subject: "Subject: ${recipientTitle}",
		Body:    "Body: ${recipientTitle}",
		Button:  &domain.TemplateButton{Enabled: true, Text: "Go ${recipientTitle}", Link: "https://${recipientTitle}"},
	}
	params := map[string]string{"recipientTitle": "Alice Smith"}

	out := Render(mt, params)

	require.NotSame(t, mt, out)
	assert.Equal(t, "Subject: Alice Smith", out.Subject)
	assert.Equal(t, "Body: Alice Smith", out.Body)
	assert.Equal(t, "Go Alice Smith", out.Button.Text)
	assert.Equal(t, "https://Alice Smith", out.Button.Link)

	assert.Equal(t, "Subject: ${recipientTitle}", mt.Subject)
	assert.Equal(t, "Go ${recipientTitle}", mt.Button.Text)
}

func TestRender_Idempotent(t *testing.T) {
	mt := &domain.MethodTemplate{Enabled: true, Subject: "S ${a}", Body: "B ${a} ${b}"}
	params := map[string]string{"a": "1"}

	first := Render(mt, params)
	second := Render(mt, params)

	assert.Equal(t, first, second)
	assert.Equal(t, "B 1 ${b}", first.Body)
}

func TestParams_LaterMapsWin(t *testing.T) {
	merged := Params(
		map[string]string{"recipientTitle": "user", "entityType": "Device"},
		map[string]string{"recipientTitle": "channel"},
	)
	assert.Equal(t, "channel", merged["recipientTitle"])
	assert.Equal(t, "Device", merged["entityType"])
}
