package client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stadtportal/be-mm-reports/internal/repository"
)

func testReport() *repository.Report {
	return &repository.Report{
		ID:         "report-001",
		TicketCode: "MU-20260830-ABCDE",
		Category:   repository.CategoryTrash,
		Latitude:   52.52,
		Longitude:  13.405,
		Comment:    "überquellender Container",
		Urgency:    repository.UrgencyMedium,
		Status:     repository.StatusSubmitted,
		CreatedAt:  time.Now(),
	}
}

func TestNotifierSimulatedMode(t *testing.T) {
	ctx := context.Background()
	n := NewNotifier(nil, time.Second, zerolog.Nop())

	t.Run("acknowledges report notifications with a demo delivery ID", func(t *testing.T) {
		deliveryID, err := n.SendReportNotification(ctx, testReport(), "Müllabfuhr", "muell@stadt.example.de")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(deliveryID, "demo-"))
	})

	t.Run("acknowledges status notifications with a demo delivery ID", func(t *testing.T) {
		report := testReport()
		email := "buerger@example.com"
		report.ContactEmail = &email

		deliveryID, err := n.SendStatusNotification(ctx, report, repository.StatusDone)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(deliveryID, "demo-"))
	})

	t.Run("skips status notifications without a contact email", func(t *testing.T) {
		deliveryID, err := n.SendStatusNotification(ctx, testReport(), repository.StatusDone)
		require.NoError(t, err)
		assert.Empty(t, deliveryID)
	})
}
