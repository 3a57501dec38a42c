package pipeline

import (
	"fmt"
	"strings"

	"github.com/bdobrica/Cinematic/internal/cinematic/catalog"
	"github.com/bdobrica/Cinematic/internal/cinematic/executor"
	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

// renderResult turns an execution result into the chat reply. Search results
// are listed with their library state; everything else uses the executor's
// one-line summary.
func renderResult(action media.ActionKind, result *executor.Result) string {
	if action == media.ActionSearch && len(result.Entries) > 0 {
		var b strings.Builder
		b.WriteString(result.Message)
		for _, entry := range result.Entries {
			fmt.Fprintf(&b, "\n• %s — %s", entryLabel(entry), entryState(entry.Status))
		}
		return b.String()
	}
	if result.Deduped {
		return result.Message + " (I had just done this, so nothing happened twice.)"
	}
	return result.Message
}

func entryLabel(entry catalog.Entry) string {
	if entry.Year > 0 {
		return fmt.Sprintf("%s (%d)", entry.Title, entry.Year)
	}
	return entry.Title
}

func entryState(status catalog.Status) string {
	switch status {
	case catalog.StatusPresent:
		return "in the library"
	case catalog.StatusRequested:
		return "requested"
	default:
		return "not in the library"
	}
}
