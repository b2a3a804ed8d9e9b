package cli

import (
	"fmt"
	"strings"

	"github.com/fernwick/ledgerloom/internal/ingest"
	"github.com/fernwick/ledgerloom/internal/model"
)

// RenderReviewQueue renders the open review items as a styled table.
func RenderReviewQueue(items []model.ReviewItem) string {
	if len(items) == 0 {
		return FormatSuccess("Review queue is empty")
	}

	var b strings.Builder
	b.WriteString(FormatTitle(fmt.Sprintf("Review queue (%d items)", len(items))))
	b.WriteString("\n")
	b.WriteString(TableHeaderStyle.Render(
		TableCellStyle.Render("DATE") +
			TableCellStyle.Render("AMOUNT") +
			TableCellStyle.Render("REASON") +
			"DETAIL"))
	b.WriteString("\n")

	for _, item := range items {
		row := TableCellStyle.Render(item.CreatedAt.Format("2006-01-02")) +
			TableCellStyle.Render(ingest.FormatAmountMinor(item.AmountMinor)) +
			TableCellStyle.Render(string(item.Reason)) +
			item.Detail
		if len(item.OrderIDs) > 0 {
			row += SubtleStyle.Render(" [" + strings.Join(item.OrderIDs, ", ") + "]")
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSyncSummary renders plan execution stats.
func RenderSyncSummary(created, recreated, skipped, conflicts, deferred int) string {
	var parts []string
	parts = append(parts, FormatSuccess(fmt.Sprintf("%d created", created)))
	if recreated > 0 {
		parts = append(parts, SuccessStyle.Render(fmt.Sprintf("%d recreated", recreated)))
	}
	parts = append(parts, SubtleStyle.Render(fmt.Sprintf("%d skipped", skipped)))
	if conflicts > 0 {
		parts = append(parts, FormatWarning(fmt.Sprintf("%d conflicts", conflicts)))
	}
	if deferred > 0 {
		parts = append(parts, FormatWarning(fmt.Sprintf("%d deferred", deferred)))
	}
	return strings.Join(parts, "  ")
}
