package fetch

import "fmt"

// DefaultSubject names the cached data in warnings when a request sets none.
const DefaultSubject = "snapshot"

func staleWarning(subject string) string {
	return fmt.Sprintf("Showing last cached %s. Click Refresh view to fetch newer data.", subject)
}

func emptyWarning(subject string) string {
	return fmt.Sprintf("No cached %s yet. Click Refresh view to load data.", subject)
}

func rateLimitedWarning(subject string) string {
	return fmt.Sprintf("Rate limited. Showing last cached %s.", subject)
}

func quotaWarning(subject string) string {
	return fmt.Sprintf("Quota reached. Showing last cached %s. Try Refresh view after reset.", subject)
}

func unavailableWarning(subject string) string {
	return fmt.Sprintf("Toggl is unavailable. Showing last cached %s.", subject)
}
