package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAssigned(t *testing.T) {
	out, err := RenderAssigned(AssignedData{
		TicketCode:  "T1X",
		Subject:     "Fan noisy",
		Reporter:    "student@example.com",
		Description: "Rattles",
		Deadline:    "2025-03-03T09:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "[Issue Desk] New Ticket T1X: Fan noisy", out.Subject)
	assert.Contains(t, out.Body, "Reported by : student@example.com")
}

func TestRenderExtensionOmitsDeadlineWhenRejected(t *testing.T) {
	out, err := RenderExtension(ExtensionData{TicketCode: "T1X", Decision: "rejected", ExtraHours: 12})
	require.NoError(t, err)
	assert.Equal(t, "TAT Extension rejected: T1X", out.Subject)
	assert.NotContains(t, out.Body, "New TAT")

	out, err = RenderExtension(ExtensionData{TicketCode: "T1X", Decision: "approved", ExtraHours: 12, Deadline: "later"})
	require.NoError(t, err)
	assert.Contains(t, out.Body, "New TAT : later")
}
