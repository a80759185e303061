package service

import (
	"fmt"
	"regexp"

	"github.com/crpaas/repo-custodian/internal/naming"
)

var (
	// repoURLPattern accepts http(s) and git scheme URLs as well as scp
	// style git@host:path addresses, all ending in .git.
	repoURLPattern = regexp.MustCompile(`^((https?|git)://.+?|git@.+?:.+?)\.git$`)

	// schedulePattern is a 24 hour HH:MM time. Single digit hours and
	// minutes are accepted.
	schedulePattern = regexp.MustCompile(`^(2[0-3]|[01]?[0-9]):([0-5]?[0-9])$`)
)

const (
	msgInvalidRepoURL = "Invalid 'repo_url'. It must be a valid Git URL ending in .git " +
		"(e.g., 'https://...', 'git://...', or 'git@...')."

	msgInvalidProjectName = "Invalid 'project_name'. It must consist of lowercase alphanumeric " +
		"characters or '-', and start and end with an alphanumeric character."

	msgScheduleRequired = "auto_sync_schedule is required when auto_sync_enabled is true"
)

func validateRepoURL(repoURL string) error {
	if !repoURLPattern.MatchString(repoURL) {
		return invalidInput(msgInvalidRepoURL)
	}
	return nil
}

// validateProjectName requires the name to already be a DNS-safe label,
// since it becomes a directory name and part of Job names unchanged.
func validateProjectName(name string) error {
	if name == "" || naming.SanitizeDNS(name) != name {
		return invalidInput(msgInvalidProjectName)
	}
	return nil
}

// validateAutoSync checks the flag and schedule combination and returns
// the schedule to store. Disabling never fails: any schedule passed along
// is discarded instead.
func validateAutoSync(enabled bool, schedule *string) (*string, error) {
	if !enabled {
		return nil, nil
	}
	if schedule == nil || *schedule == "" {
		return nil, invalidInput(msgScheduleRequired)
	}
	if !schedulePattern.MatchString(*schedule) {
		return nil, invalidInput(fmt.Sprintf(
			"Invalid 'auto_sync_schedule'. It must be a daily time in 24-hour HH:MM format, got '%s'.", *schedule))
	}
	return schedule, nil
}

func validateRetentionDays(days *int) error {
	if days != nil && *days < 0 {
		return invalidInput("Invalid 'retention_days'. It must be greater than or equal to 0.")
	}
	return nil
}
