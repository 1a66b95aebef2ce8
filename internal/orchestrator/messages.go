package orchestrator

import (
	"fmt"
	"time"
)

func exhaustedMessage(pause time.Duration) string {
	return "⚠️ Բոլոր հաշիվները հասել են օրվա սահմանաչափին։ Ստուգումները դադարեցվեցին " + pauseText(pause) + "։"
}

// pauseText renders d in the largest whole unit (3m -> "3 րոպեով").
func pauseText(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d ժամով", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d րոպեով", d/time.Minute)
	default:
		return fmt.Sprintf("%d վայրկյանով", (d+time.Second/2)/time.Second)
	}
}

func slotMessage(day string, slots int, first string) string {
	return fmt.Sprintf("🚨 Nearest date available: %s\nAvailable slots: %d\nFirst slot: %s", day, slots, first)
}

func switchMessage(limited, next string) string {
	return fmt.Sprintf("⚠️ Account %s hit daily limit. Switched to account %s.", limited, next)
}
