// util/validation_util.go

package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flowgate/api/model"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

func (v *ValidationUtil) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func (v *ValidationUtil) ValidateChatflowID(chatflowID string) error {
	if strings.TrimSpace(chatflowID) == "" {
		return fmt.Errorf("chatflow id cannot be empty")
	}
	return nil
}

func (v *ValidationUtil) ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	return nil
}

func (v *ValidationUtil) ValidateCleanupAction(action model.CleanupAction) error {
	if !model.ValidCleanupAction(action) {
		return fmt.Errorf("unknown cleanup action: %s", action)
	}
	return nil
}
