package validation

import (
	"regexp"
	"strings"

	"catalogue-order/types/order"
)

// Errors maps a field name to its validation message.
type Errors map[string]string

// emailPattern requires local@domain.tld: a non-whitespace, non-@ run,
// an @, another run, a literal dot, then one more run.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether the address has the local@domain.tld shape.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// ValidateUserInfo checks the Info phase record. Pure and deterministic:
// no network access, no side effects.
func ValidateUserInfo(info order.UserInfo) Errors {
	errs := Errors{}

	if strings.TrimSpace(info.Name) == "" {
		errs["name"] = "Name is required"
	}
	if strings.TrimSpace(info.Email) == "" {
		errs["email"] = "Email is required"
	} else if !IsValidEmail(info.Email) {
		errs["email"] = "Please enter a valid email address"
	}
	if strings.TrimSpace(info.Department) == "" {
		errs["department"] = "Department is required"
	}
	if strings.TrimSpace(info.Hub) == "" {
		errs["hub"] = "Hub is required"
	}
	if strings.TrimSpace(info.BackupName) == "" {
		errs["backupName"] = "Backup contact name is required"
	}
	if strings.TrimSpace(info.BackupEmail) == "" {
		errs["backupEmail"] = "Backup contact email is required"
	} else if !IsValidEmail(info.BackupEmail) {
		errs["backupEmail"] = "Please enter a valid email address"
	}

	return errs
}

// ValidatePhase1 checks the requirements record. StorageSize is required
// only while SharedStorage is set.
func ValidatePhase1(data order.Phase1Data) Errors {
	errs := Errors{}

	if strings.TrimSpace(data.Footprint) == "" {
		errs["footprint"] = "Footprint is required"
	}
	if data.SharedStorage && strings.TrimSpace(data.StorageSize) == "" {
		errs["storageSize"] = "Storage size is required when shared storage is requested"
	}

	return errs
}
