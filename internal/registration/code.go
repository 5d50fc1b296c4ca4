package registration

import (
	"context"
	"strings"

	"waste_portal_backend/internal/platform/crypto"

	"go.uber.org/zap"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

// ValidCodeFormat reports whether code is exactly six ASCII digits.
func ValidCodeFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func newCode() (string, error) {
	return crypto.GenerateNumericCode(CodeLength)
}

// CodeSender delivers verification codes by email or SMS.
type CodeSender interface {
	SendCode(ctx context.Context, channel Channel, identifier, code string) error
}

// LogCodeSender writes codes to the log. It stands in for a mail or SMS gateway.
type LogCodeSender struct {
	logger *zap.Logger
}

// NewLogCodeSender creates a sender that only logs.
func NewLogCodeSender(logger *zap.Logger) *LogCodeSender {
	return &LogCodeSender{logger: logger.Named("CodeSender")}
}

func (s *LogCodeSender) SendCode(_ context.Context, channel Channel, identifier, code string) error {
	s.logger.Info("Verification code issued",
		zap.String("channel", string(channel)),
		zap.String("identifier", maskIdentifier(identifier)),
		zap.String("code", code),
	)
	return nil
}

func maskIdentifier(identifier string) string {
	if at := strings.IndexByte(identifier, '@'); at > 0 {
		return identifier[:1] + strings.Repeat("*", at-1) + identifier[at:]
	}
	if len(identifier) > 4 {
		return strings.Repeat("*", len(identifier)-4) + identifier[len(identifier)-4:]
	}
	return identifier
}
