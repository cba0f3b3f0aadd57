package race

import (
	"errors"
	"fmt"
)

// ErrNegativeDuration is returned when formatting a negative duration.
var ErrNegativeDuration = errors.New("race: duration cannot be negative")

// FormatDuration renders whole seconds as HH:MM:SS, MM:SS or SS depending on
// magnitude. Fractions are truncated.
func FormatDuration(seconds float64) (string, error) {
	h, m, s, err := split(seconds)
	if err != nil {
		return "", err
	}
	switch {
	case h > 0:
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s), nil
	case m > 0:
		return fmt.Sprintf("%02d:%02d", m, s), nil
	default:
		return fmt.Sprintf("%02d", s), nil
	}
}

// FormatDurationPretty always renders three fields, padding the empty ones
// with "--". An unresolved (zero) duration renders as "--:--:--".
func FormatDurationPretty(seconds float64) (string, error) {
	h, m, s, err := split(seconds)
	if err != nil {
		return "", err
	}
	switch {
	case h == 0 && m == 0 && s == 0:
		return "--:--:--", nil
	case h > 0:
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s), nil
	case m > 0:
		return fmt.Sprintf("--:%02d:%02d", m, s), nil
	default:
		return fmt.Sprintf("--:--:%02d", s), nil
	}
}

func split(seconds float64) (h, m, s int, err error) {
	if seconds < 0 {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrNegativeDuration, seconds)
	}
	total := int(seconds)
	return total / 3600, (total % 3600) / 60, total % 60, nil
}
