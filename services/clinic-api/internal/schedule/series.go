package schedule

import "fmt"

// ValidateSeries checks the recurring-plan sequencing metadata on a create
// request. sessionNumber and totalSessions are advisory and may appear
// independently; when both are present the session number must not exceed
// the plan total.
func ValidateSeries(sessionNumber, totalSessions *int) error {
	if sessionNumber != nil && *sessionNumber < 1 {
		return fmt.Errorf("sessionNumber must be a positive integer")
	}
	if totalSessions != nil && *totalSessions < 1 {
		return fmt.Errorf("totalSessions must be a positive integer")
	}
	if sessionNumber != nil && totalSessions != nil && *sessionNumber > *totalSessions {
		return fmt.Errorf("sessionNumber %d exceeds totalSessions %d", *sessionNumber, *totalSessions)
	}
	return nil
}
